package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-dashboards/internal/models"
	"github.com/platformbuilds/mirador-dashboards/internal/monitoring"
)

// MemoryBlockStore is a BlockStore kept in process memory.
type MemoryBlockStore struct {
	mu     sync.RWMutex
	blocks map[int64]*models.Block
	nextID int64
	now    func() time.Time
}

var _ BlockStore = (*MemoryBlockStore)(nil)

func NewMemoryBlockStore() *MemoryBlockStore {
	return &MemoryBlockStore{blocks: make(map[int64]*models.Block), nextID: 1, now: time.Now}
}

func blockNotFound(id int64) error {
	return fmt.Errorf("%w: block %d", models.ErrNotFound, id)
}

func (s *MemoryBlockStore) CreateBlock(_ context.Context, b *models.Block) (*models.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := b.Clone()
	c.ID = s.nextID
	s.nextID++
	now := s.now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	s.blocks[c.ID] = c
	monitoring.RecordStoreOperation("create", "blocks", true)
	return c.Clone(), nil
}

func (s *MemoryBlockStore) GetBlock(_ context.Context, id int64) (*models.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[id]
	if !ok {
		return nil, blockNotFound(id)
	}
	return b.Clone(), nil
}

func (s *MemoryBlockStore) MutateBlock(_ context.Context, id int64, fn func(*models.Block) error) (*models.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[id]
	if !ok {
		return nil, blockNotFound(id)
	}
	c := b.Clone()
	if err := fn(c); err != nil {
		monitoring.RecordStoreOperation("update", "blocks", false)
		return nil, err
	}
	c.ID = id
	c.CreatedAt = b.CreatedAt
	c.UpdatedAt = s.now().UTC()
	s.blocks[id] = c
	monitoring.RecordStoreOperation("update", "blocks", true)
	return c.Clone(), nil
}

func (s *MemoryBlockStore) DeleteBlock(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blocks[id]; !ok {
		return blockNotFound(id)
	}
	delete(s.blocks, id)
	monitoring.RecordStoreOperation("delete", "blocks", true)
	return nil
}

func (s *MemoryBlockStore) ListBlocks(_ context.Context, q BlockQuery) ([]*models.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Block, 0, len(s.blocks))
	for _, b := range s.blocks {
		if q.ActionID != 0 && b.ClientActionID != q.ActionID {
			continue
		}
		if q.ActiveOnly && !b.Active {
			continue
		}
		if q.OwnerID != 0 && b.OwnerID != q.OwnerID {
			continue
		}
		if !q.nameMatches(b.Name) {
			continue
		}
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryBlockStore) DetachAction(_ context.Context, actionID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.blocks {
		if b.ClientActionID == actionID {
			b.ClientActionID = 0
			b.UpdatedAt = s.now().UTC()
			n++
		}
	}
	return n, nil
}
