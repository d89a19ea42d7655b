package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/writing-studio/studio/internal/similarity"
	"github.com/writing-studio/studio/internal/store"
)

// WorldService persists worlds and keeps their sections in the similarity
// index. Each world is its own index owner, keyed by world ID.
type WorldService struct {
	dbStore *store.SQLiteStore
	index   *similarity.Store
}

func NewWorldService(db *store.SQLiteStore, index *similarity.Store) *WorldService {
	return &WorldService{dbStore: db, index: index}
}

func validateWorld(content similarity.WorldContent) error {
	if strings.TrimSpace(content.Name) == "" && strings.TrimSpace(content.Description) == "" {
		return invalidf("a world needs a name or a description")
	}
	if err := maxLength("name", content.Name, maxNameLength); err != nil {
		return err
	}
	sections := map[string]string{
		"description":      content.Description,
		"magic_system":     content.MagicSystem,
		"political_system": content.PoliticalSystem,
		"culture":          content.Culture,
		"geography":        content.Geography,
		"history":          content.History,
		"technology":       content.Technology,
	}
	for field, text := range sections {
		if err := maxLength(field, text, maxSectionLength); err != nil {
			return err
		}
	}
	if len(content.Characters) > maxCharacters {
		return invalidf("a world takes at most %d characters", maxCharacters)
	}
	for _, ch := range content.Characters {
		for _, err := range []error{
			maxLength("character id", ch.ID, maxNameLength),
			maxLength("character name", ch.Name, maxNameLength),
			maxLength("character role", ch.Role, maxNameLength),
			maxLength("character description", ch.Description, maxLongField),
		} {
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *WorldService) CreateWorld(ctx context.Context, userID int64, content similarity.WorldContent) (*store.World, error) {
	if err := validateWorld(content); err != nil {
		return nil, err
	}

	world := &store.World{UserID: userID, Name: store.WorldName(content), Content: content}
	if err := s.dbStore.CreateWorld(world); err != nil {
		return nil, err
	}
	s.indexWorld(ctx, world)
	return world, nil
}

// SaveGeneratedWorld persists a generated world together with the generation
// that produced it, so neither is stored without the other, then indexes the
// world.
func (s *WorldService) SaveGeneratedWorld(ctx context.Context, content similarity.WorldContent, gen *store.Generation) (*store.World, error) {
	if err := validateWorld(content); err != nil {
		return nil, err
	}

	world := &store.World{UserID: gen.UserID, Name: store.WorldName(content), Content: content}
	if err := s.dbStore.CreateWorldWithGeneration(world, gen); err != nil {
		return nil, err
	}
	s.indexWorld(ctx, world)
	return world, nil
}

// UpdateWorld replaces the world's content and re-indexes it. Sections that
// were removed keep their old index records until ClearEmbeddings.
func (s *WorldService) UpdateWorld(ctx context.Context, userID int64, worldID string, content similarity.WorldContent) (*store.World, error) {
	if err := validateWorld(content); err != nil {
		return nil, err
	}

	world, err := s.dbStore.GetWorld(worldID, userID)
	if err != nil {
		return nil, err
	}
	world.Name = store.WorldName(content)
	world.Content = content
	if err := s.dbStore.UpdateWorld(world); err != nil {
		return nil, err
	}
	s.indexWorld(ctx, world)
	return world, nil
}

func (s *WorldService) GetWorld(userID int64, worldID string) (*store.World, error) {
	return s.dbStore.GetWorld(worldID, userID)
}

func (s *WorldService) ListWorlds(userID int64) ([]store.World, error) {
	return s.dbStore.ListWorlds(userID)
}

func (s *WorldService) DeleteWorld(userID int64, worldID string) error {
	if err := s.dbStore.DeleteWorld(worldID, userID); err != nil {
		return err
	}
	s.index.Clear(worldID)
	return nil
}

// QueryWorld answers a free-text question about one of the user's worlds.
func (s *WorldService) QueryWorld(ctx context.Context, userID int64, worldID, query string, limit int) (similarity.Result, error) {
	query = strings.TrimSpace(query)
	if err := required("query", query); err != nil {
		return similarity.Result{}, err
	}
	if err := maxLength("query", query, maxQueryLength); err != nil {
		return similarity.Result{}, err
	}
	if limit < 0 || limit > maxQueryLimit {
		return similarity.Result{}, invalidf("limit must be between 0 and %d (0 = default)", maxQueryLimit)
	}

	if _, err := s.dbStore.GetWorld(worldID, userID); err != nil {
		return similarity.Result{}, err
	}
	return s.index.Retrieve(ctx, worldID, query, limit), nil
}

// WorldContext returns the summary of the world sections relevant to query,
// or "" when none pass the relevance floor. Unlike QueryWorld it never asks
// the generator for suggestions.
func (s *WorldService) WorldContext(ctx context.Context, userID int64, worldID, query string) (string, error) {
	if _, err := s.dbStore.GetWorld(worldID, userID); err != nil {
		return "", err
	}
	res := s.index.Search(ctx, worldID, query, 0)
	if len(res.RelevantRecords) == 0 {
		return "", nil
	}
	return res.Summary, nil
}

// Embeddings returns the index records currently held for the world.
func (s *WorldService) Embeddings(userID int64, worldID string) ([]similarity.Record, error) {
	if _, err := s.dbStore.GetWorld(worldID, userID); err != nil {
		return nil, err
	}
	records := s.index.Records(worldID)
	if records == nil {
		records = []similarity.Record{}
	}
	return records, nil
}

func (s *WorldService) ClearEmbeddings(userID int64, worldID string) error {
	if _, err := s.dbStore.GetWorld(worldID, userID); err != nil {
		return err
	}
	s.index.Clear(worldID)
	return nil
}

// ReindexWorld drops the world's index records and rebuilds them from the
// persisted content.
func (s *WorldService) ReindexWorld(ctx context.Context, userID int64, worldID string) (int, error) {
	world, err := s.dbStore.GetWorld(worldID, userID)
	if err != nil {
		return 0, err
	}
	s.index.Clear(worldID)
	return s.indexWorld(ctx, world), nil
}

// WarmIndex indexes every persisted world. It is run at start-up because the
// similarity index lives only in memory.
func (s *WorldService) WarmIndex(ctx context.Context) (int, error) {
	worlds, err := s.dbStore.AllWorlds()
	if err != nil {
		return 0, fmt.Errorf("failed to load worlds for indexing: %w", err)
	}

	indexed := 0
	for i := range worlds {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		s.indexWorld(ctx, &worlds[i])
		indexed++
	}
	log.Printf("Warmed similarity index with %d worlds", indexed)
	return indexed, nil
}

// indexWorld never fails the caller: the world is already persisted and can be
// re-indexed later.
func (s *WorldService) indexWorld(ctx context.Context, world *store.World) int {
	n, err := s.index.IndexDocument(ctx, world.ID, world.Content)
	if err != nil {
		log.Printf("Failed to index world %s: %v", world.ID, err)
		return 0
	}
	log.Printf("Indexed %d sections of world %s", n, world.ID)
	return n
}
