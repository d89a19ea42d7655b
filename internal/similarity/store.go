// Package similarity keeps a per-owner, in-process index of embedded world
// sections and answers nearest-neighbour queries by cosine similarity.
//
// The index is a linear scan over one owner's records. That is fine because
// an owner has at most a few dozen sections; it is not a general search
// index. Each process holds its own index and loses it on restart; callers
// rebuild it from persisted worlds.
package similarity

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/writing-studio/studio/internal/ai"
	"github.com/writing-studio/studio/internal/utils"
)

const (
	DefaultDimensions = 768
	DefaultTimeout    = 15 * time.Second
	DefaultLimit      = 5

	// RelevanceFloor is the similarity a record must exceed to be returned.
	RelevanceFloor = 0.1
)

var ErrEmptyOwner = errors.New("owner id is required")

type ownerIndex struct {
	order   []string
	records map[string]Record
}

type Store struct {
	embedder  ai.Embedder
	generator ai.Generator
	dims      int
	timeout   time.Duration
	now       func() time.Time

	mu     sync.RWMutex
	owners map[string]*ownerIndex
}

type Option func(*Store)

func WithDimensions(dims int) Option {
	return func(s *Store) {
		if dims > 0 {
			s.dims = dims
		}
	}
}

// WithTimeout bounds every call to the embedder or generator.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore builds an empty index. embedder and generator may be nil, in which
// case the local fallbacks are always used.
func NewStore(embedder ai.Embedder, generator ai.Generator, opts ...Option) *Store {
	s := &Store{
		embedder:  embedder,
		generator: generator,
		dims:      DefaultDimensions,
		timeout:   DefaultTimeout,
		now:       time.Now,
		owners:    make(map[string]*ownerIndex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Dimensions() int { return s.dims }

// Upsert inserts records or replaces existing ones with the same owner and
// ID. A replaced record keeps its original position in insertion order.
func (s *Store) Upsert(records ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		idx, ok := s.owners[rec.OwnerID]
		if !ok {
			idx = &ownerIndex{records: make(map[string]Record)}
			s.owners[rec.OwnerID] = idx
		}
		if _, exists := idx.records[rec.ID]; !exists {
			idx.order = append(idx.order, rec.ID)
		}

		vec := make([]float32, len(rec.Vector))
		copy(vec, rec.Vector)
		rec.Vector = vec
		idx.records[rec.ID] = rec
	}
}

// Records returns a deep copy of the owner's records in insertion order.
func (s *Store) Records(ownerID string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.owners[ownerID]
	if !ok {
		return nil
	}
	out := make([]Record, 0, len(idx.order))
	for _, id := range idx.order {
		rec := idx.records[id]
		rec.Vector = append([]float32(nil), rec.Vector...)
		out = append(out, rec)
	}
	return out
}

// Clear drops every record of the owner.
func (s *Store) Clear(ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.owners, ownerID)
}

func (s *Store) Len(ownerID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx, ok := s.owners[ownerID]; ok {
		return len(idx.order)
	}
	return 0
}

// Owners lists owners that have at least one record, sorted.
func (s *Store) Owners() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.owners))
	for id := range s.owners {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// embed asks the embedder for a vector and falls back to the local hashed
// embedding on any failure, so it never returns an error.
func (s *Store) embed(ctx context.Context, text string) []float32 {
	if s.embedder == nil {
		return utils.FallbackEmbedding(text, s.dims)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		log.Printf("Embedding request failed, using fallback embedding: %v", err)
		return utils.FallbackEmbedding(text, s.dims)
	}
	if len(vec) != s.dims {
		log.Printf("Embedding has %d dimensions, want %d; using fallback embedding", len(vec), s.dims)
		return utils.FallbackEmbedding(text, s.dims)
	}
	return vec
}
