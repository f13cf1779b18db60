package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLeadFeed_DeliversToCoachOnly(t *testing.T) {
	feed := NewLeadFeed(nil, zap.NewNop())
	priya, arjun := &fakeConn{}, &fakeConn{}

	unsubPriya := feed.Subscribe("coach-priya-sharma", priya)
	defer feed.Subscribe("coach-arjun-mehta", arjun)()

	require.NoError(t, feed.Publish(context.Background(), models.LeadEvent{Type: models.LeadEventNew, CoachUID: "coach-priya-sharma", Name: "Ann"}))
	assert.Equal(t, 1, priya.count())
	assert.Equal(t, 0, arjun.count())

	ev := priya.written[0].(models.LeadEvent)
	assert.Equal(t, "Ann", ev.Name)
	assert.False(t, ev.Timestamp.IsZero())

	unsubPriya()
	unsubPriya()
	require.NoError(t, feed.Publish(context.Background(), models.LeadEvent{CoachUID: "coach-priya-sharma"}))
	assert.Equal(t, 1, priya.count())
}

func TestLeadFeed_PublishAsync(t *testing.T) {
	feed := NewLeadFeed(nil, zap.NewNop())
	conn := &fakeConn{}
	defer feed.Subscribe("coach-a", conn)()

	feed.PublishAsync(models.LeadEvent{CoachUID: "coach-a"})
	assert.Eventually(t, func() bool { return conn.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestLeadFeed_IgnoresEventsWithoutCoach(t *testing.T) {
	feed := NewLeadFeed(nil, zap.NewNop())
	conn := &fakeConn{}
	defer feed.Subscribe("", conn)()

	feed.Deliver(models.LeadEvent{})
	assert.Equal(t, 0, conn.count())
}

func TestIPHasher(t *testing.T) {
	h := NewIPHasher("salt")
	a := h.Hash("10.0.0.1")
	assert.Len(t, a, 32)
	assert.Equal(t, a, h.Hash("10.0.0.1"))
	assert.NotEqual(t, a, h.Hash("10.0.0.2"))
	assert.NotEqual(t, a, NewIPHasher("pepper").Hash("10.0.0.1"))
	assert.Empty(t, h.Hash(""))

	long := NewIPHasher(strings.Repeat("k", 100))
	assert.Len(t, long.Hash("10.0.0.1"), 32)
}

func TestNewLeadDistinctID(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := NewLeadDistinctID(now)
	assert.True(t, strings.HasPrefix(id, "user_1700000000123_"), id)
	assert.Len(t, id, len("user_1700000000123_")+9)
	assert.NotEqual(t, id, NewLeadDistinctID(now))
}

func TestLogTracker(t *testing.T) {
	var tracker EventTracker = NewLogTracker(zap.NewNop())
	tracker.Track(models.AnalyticsEvent{Name: models.EventLeadFormSubmit, DistinctID: "d"})
}
