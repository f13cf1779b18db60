package services

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/lovedoctor-backend/internal/metrics"
	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// EventTracker records analytics events. Track must never block the caller.
type EventTracker interface {
	Track(e models.AnalyticsEvent)
}

const analyticsWriteTimeout = 5 * time.Second

// MongoTracker persists events to a MongoDB collection in the background.
type MongoTracker struct {
	col *mongo.Collection
	log *zap.Logger
	wg  sync.WaitGroup
}

func NewMongoTracker(db *mongo.Database, collection string, log *zap.Logger) *MongoTracker {
	return &MongoTracker{col: db.Collection(collection), log: log}
}

// EnsureIndexes configures the event collection indexes. Called on startup
// after Mongo has connected.
func (t *MongoTracker) EnsureIndexes(ctx context.Context) error {
	idx := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "name", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_name_created"),
		},
		{
			Keys:    bson.D{{Key: "distinct_id", Value: 1}},
			Options: options.Index().SetName("idx_distinct_id"),
		},
	}
	_, err := t.col.Indexes().CreateMany(ctx, idx)
	return err
}

func (t *MongoTracker) Track(e models.AnalyticsEvent) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	t.wg.Add(1)
	go func(ev models.AnalyticsEvent) {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), analyticsWriteTimeout)
		defer cancel()

		if _, err := t.col.InsertOne(ctx, ev); err != nil {
			metrics.AnalyticsDropped.Inc()
			t.log.Warn("analytics event dropped", zap.String("event", ev.Name), zap.Error(err))
		}
	}(e)
}

// Wait blocks until in-flight writes finish. Used on shutdown.
func (t *MongoTracker) Wait() {
	t.wg.Wait()
}

// LogTracker only logs events. Used when MongoDB is unavailable.
type LogTracker struct {
	log *zap.Logger
}

func NewLogTracker(log *zap.Logger) *LogTracker {
	return &LogTracker{log: log}
}

func (t *LogTracker) Track(e models.AnalyticsEvent) {
	t.log.Info("analytics event",
		zap.String("event", e.Name),
		zap.String("distinct_id", e.DistinctID),
		zap.String("source", e.Source),
		zap.Any("properties", e.Properties),
	)
}

// IPHasher pseudonymises client addresses with a keyed BLAKE2b hash.
type IPHasher struct {
	key []byte
}

func NewIPHasher(salt string) *IPHasher {
	key := []byte(salt)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	return &IPHasher{key: key}
}

func (h *IPHasher) Hash(ip string) string {
	if ip == "" {
		return ""
	}
	mac, err := blake2b.New256(h.key)
	if err != nil {
		return ""
	}
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil)[:16])
}

// NewLeadDistinctID returns an anonymous id of the form user_<unix-ms>_<random>.
func NewLeadDistinctID(now time.Time) string {
	id := strings.ToLower(ulid.Make().String())
	return fmt.Sprintf("user_%d_%s", now.UnixMilli(), id[len(id)-9:])
}
