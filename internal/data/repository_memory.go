package data

import (
	"context"
	"sync"
	"time"

	"adminconsole/internal/value"
)

// MemoryRepository implements Repository in process memory. It is the
// default backend for development and the backend used by handler tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	tables map[string]*memoryTable
	now    func() time.Time
}

type memoryTable struct {
	order []string
	docs  map[string]*Document
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tables: make(map[string]*memoryTable),
		now:    time.Now,
	}
}

func (m *MemoryRepository) table(name string) *memoryTable {
	t, ok := m.tables[name]
	if !ok {
		t = &memoryTable{docs: make(map[string]*Document)}
		m.tables[name] = t
	}
	return t
}

// Insert implements Repository.Insert.
func (m *MemoryRepository) Insert(ctx context.Context, table string, fields value.Record) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc := &Document{
		ID:           newDocumentID(),
		CreationTime: creationTime(m.now()),
		Fields:       value.APIToStorage(fields),
	}
	t := m.table(table)
	t.docs[doc.ID] = doc
	t.order = append(t.order, doc.ID)

	return doc.clone(), nil
}

// Get implements Repository.Get.
func (m *MemoryRepository) Get(ctx context.Context, table, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[table]
	if !ok {
		return nil, nil
	}
	doc, ok := t.docs[id]
	if !ok {
		return nil, nil
	}
	return doc.clone(), nil
}

// List implements Repository.List.
func (m *MemoryRepository) List(ctx context.Context, table string) ([]*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[table]
	if !ok {
		return []*Document{}, nil
	}
	docs := make([]*Document, 0, len(t.order))
	for _, id := range t.order {
		docs = append(docs, t.docs[id].clone())
	}
	return docs, nil
}

// Replace implements Repository.Replace.
func (m *MemoryRepository) Replace(ctx context.Context, table, id string, fields value.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		return ErrRecordNotFound
	}
	doc, ok := t.docs[id]
	if !ok {
		return ErrRecordNotFound
	}
	doc.Fields = value.APIToStorage(fields)
	return nil
}

// Delete implements Repository.Delete.
func (m *MemoryRepository) Delete(ctx context.Context, table, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		return nil
	}
	if _, ok := t.docs[id]; !ok {
		return nil
	}
	delete(t.docs, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

// FindByField implements Repository.FindByField with a linear scan.
func (m *MemoryRepository) FindByField(ctx context.Context, table, field string, v value.Value) ([]*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []*Document
	t, ok := m.tables[table]
	if !ok {
		return docs, nil
	}
	for _, id := range t.order {
		doc := t.docs[id]
		if doc.Fields.Get(field).Equal(v) {
			docs = append(docs, doc.clone())
		}
	}
	return docs, nil
}

// EnsureIndex implements Repository.EnsureIndex. Memory lookups scan, so
// there is nothing to build.
func (m *MemoryRepository) EnsureIndex(ctx context.Context, table, field string) error {
	return nil
}

// Health implements Repository.Health.
func (m *MemoryRepository) Health(ctx context.Context) (map[string]interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, t := range m.tables {
		count += len(t.docs)
	}
	return map[string]interface{}{
		"status":    "healthy",
		"backend":   "memory",
		"documents": count,
	}, nil
}

// Close implements Repository.Close.
func (m *MemoryRepository) Close() error {
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
