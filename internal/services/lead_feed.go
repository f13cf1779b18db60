package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/AnshRaj112/lovedoctor-backend/internal/metrics"
	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	leadChannelPrefix  = "leads:coach:"
	leadChannelPattern = leadChannelPrefix + "*"
	leadPublishTimeout = 5 * time.Second
)

// LeadConn is the minimal interface a lead feed connection must satisfy.
type LeadConn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// LeadPublisher announces new leads to coaches.
type LeadPublisher interface {
	PublishAsync(ev models.LeadEvent)
}

type leadSubscriber struct {
	conn LeadConn
	mu   sync.Mutex
}

func (s *leadSubscriber) write(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// LeadFeed fans lead events out to connected coaches. With a Redis client
// events travel through pub/sub so every instance sees them; without one
// they are delivered to local connections only.
type LeadFeed struct {
	mu      sync.RWMutex
	subs    map[string]map[*leadSubscriber]struct{}
	redis   *redis.Client
	log     *zap.Logger
	started sync.Once
}

func NewLeadFeed(client *redis.Client, log *zap.Logger) *LeadFeed {
	return &LeadFeed{
		subs:  make(map[string]map[*leadSubscriber]struct{}),
		redis: client,
		log:   log,
	}
}

// Subscribe registers conn for the leads of one coach. The returned func
// removes it.
func (f *LeadFeed) Subscribe(coachUID string, conn LeadConn) func() {
	sub := &leadSubscriber{conn: conn}

	f.mu.Lock()
	if f.subs[coachUID] == nil {
		f.subs[coachUID] = make(map[*leadSubscriber]struct{})
	}
	f.subs[coachUID][sub] = struct{}{}
	f.mu.Unlock()
	metrics.LeadFeedConnections.Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs[coachUID], sub)
			if len(f.subs[coachUID]) == 0 {
				delete(f.subs, coachUID)
			}
			f.mu.Unlock()
			metrics.LeadFeedConnections.Dec()
		})
	}
}

// Deliver sends an event to the local connections of its coach.
func (f *LeadFeed) Deliver(ev models.LeadEvent) {
	if ev.CoachUID == "" {
		return
	}

	f.mu.RLock()
	targets := make([]*leadSubscriber, 0, len(f.subs[ev.CoachUID]))
	for s := range f.subs[ev.CoachUID] {
		targets = append(targets, s)
	}
	f.mu.RUnlock()

	for _, s := range targets {
		if err := s.write(ev); err != nil {
			f.log.Debug("lead feed write failed", zap.String("coach_uid", ev.CoachUID), zap.Error(err))
		}
	}
}

func (f *LeadFeed) Publish(ctx context.Context, ev models.LeadEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if f.redis == nil {
		f.Deliver(ev)
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return f.redis.Publish(ctx, leadChannelPrefix+ev.CoachUID, data).Err()
}

func (f *LeadFeed) PublishAsync(ev models.LeadEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), leadPublishTimeout)
		defer cancel()
		if err := f.Publish(ctx, ev); err != nil {
			f.log.Warn("lead event publish failed", zap.String("coach_uid", ev.CoachUID), zap.Error(err))
		}
	}()
}

// Start runs the shared Redis listener for this instance until ctx is done.
func (f *LeadFeed) Start(ctx context.Context) {
	if f.redis == nil {
		return
	}
	f.started.Do(func() {
		go f.listen(ctx)
	})
}

func (f *LeadFeed) listen(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		pubsub := f.redis.PSubscribe(ctx, leadChannelPattern)
		f.log.Info("✅ Lead feed subscriber started", zap.String("pattern", leadChannelPattern))

		for {
			msg, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					f.log.Warn("lead feed subscriber error", zap.Error(err), zap.Duration("backoff", backoff))
				}
				break
			}
			backoff = time.Second

			var ev models.LeadEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				f.log.Warn("bad lead event payload", zap.Error(err))
				continue
			}
			f.Deliver(ev)
		}
		pubsub.Close()

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}
