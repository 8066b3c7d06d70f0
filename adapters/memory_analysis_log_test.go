package adapters

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/fixit/server/domain"
	"github.com/satriahrh/fixit/server/domain/entities"
)

func record(requestID string, createdAt time.Time) *entities.AnalysisRecord {
	r := entities.NewAnalysisRecord(entities.AnalysisRequest{RequestID: requestID, Query: "slow wifi"})
	r.CreatedAt = createdAt
	return r
}

func TestMemoryAnalysisLog_CreateAndGet(t *testing.T) {
	log := NewMemoryAnalysisLog(10)
	ctx := context.Background()

	r := record("req-1", time.Now())
	r.AnswerType = entities.AnswerTroubleshootSteps
	require.NoError(t, log.Create(ctx, r))

	got, err := log.GetByRequestID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, entities.AnswerTroubleshootSteps, got.AnswerType)

	// stored records are copies
	got.Query = "changed"
	again, err := log.GetByRequestID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "slow wifi", again.Query)

	_, err = log.GetByRequestID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestMemoryAnalysisLog_RejectsInvalidRecords(t *testing.T) {
	log := NewMemoryAnalysisLog(10)
	ctx := context.Background()

	assert.Error(t, log.Create(ctx, nil))
	assert.Error(t, log.Create(ctx, record("", time.Now())))

	require.NoError(t, log.Create(ctx, record("req-1", time.Now())))
	assert.Error(t, log.Create(ctx, record("req-1", time.Now())))
}

func TestMemoryAnalysisLog_ListRecent(t *testing.T) {
	log := NewMemoryAnalysisLog(3)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, log.Create(ctx, record(fmt.Sprintf("req-%d", i), base.Add(time.Duration(i)*time.Minute))))
	}

	records, err := log.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "req-4", records[0].RequestID)
	assert.Equal(t, "req-2", records[2].RequestID)

	records, err = log.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "req-4", records[0].RequestID)

	_, err = log.GetByRequestID(ctx, "req-0")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}
