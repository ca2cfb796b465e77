package store

import (
	"context"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Memory — потокобезопасное in-memory хранилище. Используется в тестах
// и как режим по умолчанию при пустом DBURL.
type Memory struct {
	mu      sync.RWMutex
	data    map[string]map[string]*Record // collection -> id -> запись
	entropy io.Reader
}

func NewMemory() *Memory {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Memory{
		data:    make(map[string]map[string]*Record),
		entropy: ulid.Monotonic(src, 0),
	}
}

func (m *Memory) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), m.entropy).String()
}

func (m *Memory) Insert(_ context.Context, col string, data map[string]any) (*Record, error) {
	now := time.Now().UTC()
	rec := &Record{
		ID:        m.newID(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		Data:      data,
	}
	m.mu.Lock()
	if m.data[col] == nil {
		m.data[col] = make(map[string]*Record)
	}
	m.data[col][rec.ID] = rec
	m.mu.Unlock()
	return copyRecord(rec), nil
}

func (m *Memory) Get(_ context.Context, col, id string) (*Record, error) {
	m.mu.RLock()
	rec := m.data[col][id]
	m.mu.RUnlock()
	if rec == nil || rec.Deleted {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (m *Memory) Put(_ context.Context, col, id string, data map[string]any) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.data[col][id]
	if rec == nil || rec.Deleted {
		return nil, ErrNotFound
	}
	rec.Data = data
	rec.Version++
	rec.UpdatedAt = time.Now().UTC()
	return copyRecord(rec), nil
}

func (m *Memory) Patch(_ context.Context, col, id string, patch map[string]any) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.data[col][id]
	if rec == nil || rec.Deleted {
		return nil, ErrNotFound
	}
	for k, v := range patch {
		rec.Data[k] = v
	}
	rec.Version++
	rec.UpdatedAt = time.Now().UTC()
	return copyRecord(rec), nil
}

func (m *Memory) SoftDelete(_ context.Context, col, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.data[col][id]
	if rec == nil || rec.Deleted {
		return ErrNotFound
	}
	rec.Deleted = true
	rec.Version++
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) Restore(_ context.Context, col, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.data[col][id]
	if rec == nil {
		return ErrNotFound
	}
	if rec.Deleted {
		rec.Deleted = false
		rec.Version++
		rec.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *Memory) List(_ context.Context, col string, q Query) ([]*Record, int, error) {
	m.mu.RLock()
	all := make([]*Record, 0, len(m.data[col]))
	for _, rec := range m.data[col] {
		if rec.Deleted && !q.IncludeDeleted {
			continue
		}
		if q.matches(rec) {
			all = append(all, copyRecord(rec))
		}
	}
	m.mu.RUnlock()

	sortRecords(all, q.Sort)
	total := len(all)
	return paginate(all, q.Limit, q.Offset), total, nil
}

func (m *Memory) FindOne(_ context.Context, col, field, value string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.data[col] {
		if rec.Deleted {
			continue
		}
		if strings.EqualFold(stringify(rec.Data[field]), value) {
			return copyRecord(rec), nil
		}
	}
	return nil, ErrNotFound
}

// copyRecord отдаёт наружу копию с неглубоко скопированным Data,
// чтобы хендлеры не мутировали хранилище мимо Put/Patch.
func copyRecord(rec *Record) *Record {
	out := *rec
	out.Data = make(map[string]any, len(rec.Data))
	for k, v := range rec.Data {
		out.Data[k] = v
	}
	return &out
}
