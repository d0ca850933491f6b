package butler

import (
	"context"
	"image"
	"sync"

	"github.com/banshee-data/lcviewer/internal/pixel"
	"github.com/banshee-data/lcviewer/internal/wcs"
)

// MemoryStore keeps exposures in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	exposures map[DataID]Exposure
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{exposures: make(map[DataID]Exposure)}
}

// Put adds or replaces an exposure.
func (s *MemoryStore) Put(ctx context.Context, e Exposure) error {
	if err := e.Validate(); err != nil {
		return err
	}
	e.ID = e.ID.WithDefaults()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exposures[e.ID] = e
	return nil
}

func (s *MemoryStore) get(id DataID) (Exposure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.exposures[id.WithDefaults()]
	if !ok {
		return Exposure{}, ErrNotFound
	}
	return e, nil
}

func (s *MemoryStore) WCS(ctx context.Context, id DataID) (wcs.Frame, error) {
	e, err := s.get(id)
	return e.Frame, err
}

func (s *MemoryStore) DetectorBBox(ctx context.Context, id DataID) (image.Rectangle, error) {
	e, err := s.get(id)
	return e.BBox, err
}

func (s *MemoryStore) Image(ctx context.Context, id DataID, box image.Rectangle) (pixel.Grid, error) {
	e, err := s.get(id)
	if err != nil {
		return pixel.Grid{}, err
	}
	return e.sub(box)
}
