package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
)

func newTestLog() *Log {
	return NewLog(common.NewSilentLogger(), common.NewFrozenClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestRecord_StampsTimestampWhenZero(t *testing.T) {
	l := newTestLog()
	ctx := context.Background()
	event := &models.AuditEvent{Kind: models.AuditWebhookReceived, Description: "webhook received"}
	require.NoError(t, l.Record(ctx, event))

	got, err := l.List(ctx, time.Time{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestLogPlatformApiCall(t *testing.T) {
	l := newTestLog()
	ctx := context.Background()
	require.NoError(t, l.LogPlatformApiCall(ctx, "CreatePullRequest", 150*time.Millisecond, true, ""))

	got, err := l.List(ctx, time.Time{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.AuditPlatformApiCall, got[0].Kind)
	assert.Equal(t, "success", got[0].Result)
	assert.EqualValues(t, 150, *got[0].DurationMs)
}

func TestList_OrderedMostRecentFirst(t *testing.T) {
	l := newTestLog()
	ctx := context.Background()
	require.NoError(t, l.Record(ctx, &models.AuditEvent{Kind: models.AuditWebhookReceived, Description: "a", Timestamp: time.Now()}))
	require.NoError(t, l.Record(ctx, &models.AuditEvent{Kind: models.AuditWebhookReceived, Description: "b", Timestamp: time.Now().Add(time.Minute)}))

	got, err := l.List(ctx, time.Time{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Description)
}

func TestDeleteOlderThan(t *testing.T) {
	l := newTestLog()
	ctx := context.Background()
	old := time.Now().Add(-100 * 24 * time.Hour)
	require.NoError(t, l.Record(ctx, &models.AuditEvent{Kind: models.AuditWebhookReceived, Description: "old", Timestamp: old}))
	require.NoError(t, l.Record(ctx, &models.AuditEvent{Kind: models.AuditWebhookReceived, Description: "new", Timestamp: time.Now()}))

	removed, err := l.DeleteOlderThan(ctx, time.Now().Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, _ := l.List(ctx, time.Time{}, 0, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Description)
}
