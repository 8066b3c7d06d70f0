package adapters

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/satriahrh/fixit/server/domain"
	"github.com/satriahrh/fixit/server/domain/entities"
	"github.com/satriahrh/fixit/server/domain/repositories"
)

const defaultMemoryLogCapacity = 1000

// MemoryAnalysisLog is an in-memory implementation of AnalysisLog, used when
// MongoDB is not configured. It keeps the most recent records only.
type MemoryAnalysisLog struct {
	mu       sync.RWMutex
	records  map[string]*entities.AnalysisRecord // request_id -> record
	order    []string                            // request_ids, oldest first
	capacity int
}

var _ repositories.AnalysisLog = (*MemoryAnalysisLog)(nil)

// NewMemoryAnalysisLog creates a log holding at most capacity records
func NewMemoryAnalysisLog(capacity int) *MemoryAnalysisLog {
	if capacity <= 0 {
		capacity = defaultMemoryLogCapacity
	}
	return &MemoryAnalysisLog{
		records:  make(map[string]*entities.AnalysisRecord),
		capacity: capacity,
	}
}

// Create implements AnalysisLog interface
func (m *MemoryAnalysisLog) Create(ctx context.Context, record *entities.AnalysisRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[record.RequestID]; exists {
		return errors.New("record already exists")
	}

	stored := *record
	m.records[record.RequestID] = &stored
	m.order = append(m.order, record.RequestID)

	for len(m.order) > m.capacity {
		delete(m.records, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

// GetByRequestID implements AnalysisLog interface
func (m *MemoryAnalysisLog) GetByRequestID(ctx context.Context, requestID string) (*entities.AnalysisRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, exists := m.records[requestID]
	if !exists {
		return nil, domain.ErrRecordNotFound
	}
	cp := *record
	return &cp, nil
}

// ListRecent implements AnalysisLog interface
func (m *MemoryAnalysisLog) ListRecent(ctx context.Context, limit int) ([]*entities.AnalysisRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*entities.AnalysisRecord, 0, len(m.records))
	for _, r := range m.records {
		cp := *r
		records = append(records, &cp)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
