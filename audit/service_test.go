package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kasuganosora/vkrpg/model"
	"github.com/kasuganosora/vkrpg/testutil"
)

func TestLog_EnqueuedAndFlushed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())

	playerID := int64(7)
	svc.Log(AuditEntry{
		TraceID:    "trace-123",
		PlayerID:   &playerID,
		Action:     "market.buy",
		Request:    map[string]int64{"listing_id": 3},
		Response:   map[string]int64{"gold": 94},
		IP:         "127.0.0.1",
		DurationMs: 42,
	})

	// Stop flushes remaining entries.
	svc.Stop(context.Background())

	var logs []model.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "trace-123", logs[0].TraceID)
	require.NotNil(t, logs[0].PlayerID)
	assert.Equal(t, int64(7), *logs[0].PlayerID)
	assert.Equal(t, "market.buy", logs[0].Action)
	assert.JSONEq(t, `{"listing_id":3}`, string(logs[0].Request))
	assert.JSONEq(t, `{"gold":94}`, string(logs[0].Response))
	assert.Equal(t, 42, logs[0].DurationMs)
}

func TestLog_BatchFlush(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())

	for i := 0; i < 250; i++ {
		svc.Log(AuditEntry{Action: "batch", IP: "10.0.0.1"})
	}
	svc.Stop(context.Background())

	var count int64
	db.Model(&model.AuditLog{}).Count(&count)
	assert.Equal(t, int64(250), count)
}

func TestLog_TimerFlush(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop(), WithFlushInterval(20*time.Millisecond))
	defer svc.Stop(context.Background())

	svc.Log(AuditEntry{Action: "timer_test"})

	assert.Eventually(t, func() bool {
		var count int64
		db.Model(&model.AuditLog{}).Count(&count)
		return count == 1
	}, time.Second, 20*time.Millisecond)
}

func TestLog_NilFields(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())

	svc.Log(AuditEntry{Action: "anonymous"})
	svc.Stop(context.Background())

	var logs []model.AuditLog
	db.Find(&logs)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].PlayerID)
	assert.Empty(t, logs[0].Request)
}

func TestNilServiceDiscards(t *testing.T) {
	var svc *Service
	assert.NotPanics(t, func() { svc.Log(AuditEntry{Action: "x"}) })
}

func TestStop_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())
	svc.Stop(context.Background())
	assert.NotPanics(t, func() { svc.Stop(context.Background()) })
}

func TestLog_DropsWhenFull(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())

	for i := 0; i < queueSize+50; i++ {
		svc.Log(AuditEntry{Action: "flood"})
	}
	svc.Stop(context.Background())

	var count int64
	db.Model(&model.AuditLog{}).Count(&count)
	assert.LessOrEqual(t, count, int64(queueSize+50))
	assert.Positive(t, count)
}
