package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/writing-studio/studio/internal/similarity"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "studio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestUser(t *testing.T, s *SQLiteStore, externalID string) *User {
	t.Helper()
	u, err := s.CreateUser(externalID, "hash")
	require.NoError(t, err)
	return u
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)

	u := newTestUser(t, s, "alice")
	assert.NotZero(t, u.ID)

	byExt, err := s.GetUserByExternalID("alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byExt.ID)
	assert.Equal(t, "hash", byExt.PasswordHash)

	byID, err := s.GetUserByID(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.ExternalUserID)

	_, err = s.CreateUser("alice", "other")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = s.GetUserByExternalID("bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfiles(t *testing.T) {
	s := newTestStore(t)
	u := newTestUser(t, s, "alice")

	empty, err := s.GetProfile(u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, empty.UserID)
	assert.Empty(t, empty.DisplayName)
	assert.NotNil(t, empty.FavoriteGenres)

	require.NoError(t, s.UpsertProfile(&Profile{
		UserID:         u.ID,
		DisplayName:    "Alice",
		Bio:            "Writes cosy mysteries",
		FavoriteGenres: []string{"mystery", "fantasy"},
		WritingGoals:   "Finish a novella",
	}))
	require.NoError(t, s.UpsertProfile(&Profile{
		UserID:         u.ID,
		DisplayName:    "Alice L.",
		FavoriteGenres: []string{"mystery"},
	}))

	got, err := s.GetProfile(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice L.", got.DisplayName)
	assert.Empty(t, got.Bio)
	assert.Equal(t, []string{"mystery"}, got.FavoriteGenres)
	assert.WithinDuration(t, time.Now(), got.UpdatedAt, time.Minute)
}

func TestGenerations(t *testing.T) {
	s := newTestStore(t)
	alice := newTestUser(t, s, "alice")
	bob := newTestUser(t, s, "bob")

	kinds := []GenerationKind{KindStoryIdea, KindCharacter, KindStoryIdea}
	var ids []string
	for _, k := range kinds {
		gen := &Generation{UserID: alice.ID, Kind: k, Prompt: "a lighthouse", Content: "text", Params: map[string]string{"genre": "gothic"}}
		require.NoError(t, s.CreateGeneration(gen))
		assert.NotEmpty(t, gen.ID)
		ids = append(ids, gen.ID)
		time.Sleep(2 * time.Millisecond)
	}

	got, err := s.GetGeneration(ids[0], alice.ID)
	require.NoError(t, err)
	assert.Equal(t, KindStoryIdea, got.Kind)
	assert.Equal(t, "gothic", got.Params["genre"])
	assert.Nil(t, got.WorldID)

	_, err = s.GetGeneration(ids[0], bob.ID)
	assert.ErrorIs(t, err, ErrNotFound, "generations are scoped to their owner")

	all, err := s.ListGenerations(alice.ID, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID, "newest first")

	ideas, err := s.ListGenerations(alice.ID, KindStoryIdea, 10, 0)
	require.NoError(t, err)
	assert.Len(t, ideas, 2)

	page, err := s.ListGenerations(alice.ID, "", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].ID)

	none, err := s.ListGenerations(bob.ID, "", 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	assert.ErrorIs(t, s.DeleteGeneration(ids[0], bob.ID), ErrNotFound)
	require.NoError(t, s.DeleteGeneration(ids[0], alice.ID))
	assert.ErrorIs(t, s.DeleteGeneration(ids[0], alice.ID), ErrNotFound)
}

func TestWorlds(t *testing.T) {
	s := newTestStore(t)
	alice := newTestUser(t, s, "alice")
	bob := newTestUser(t, s, "bob")

	world := &World{
		UserID: alice.ID,
		Name:   "Aetheria",
		Content: similarity.WorldContent{
			Name:        "Aetheria",
			Description: "Sky islands",
			Characters:  []similarity.CharacterEntry{{ID: "c1", Name: "Mara", Role: "captain"}},
		},
	}
	require.NoError(t, s.CreateWorld(world))
	require.NotEmpty(t, world.ID)

	gen := &Generation{UserID: alice.ID, Kind: KindWorld, Prompt: "sky", Content: "{}", WorldID: &world.ID}
	require.NoError(t, s.CreateGeneration(gen))

	got, err := s.GetWorld(world.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, world.Content, got.Content)

	_, err = s.GetWorld(world.ID, bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got.Content.History = "The Great Fall"
	require.NoError(t, s.UpdateWorld(got))
	updated, err := s.GetWorld(world.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Great Fall", updated.Content.History)

	stolen := *got
	stolen.UserID = bob.ID
	assert.ErrorIs(t, s.UpdateWorld(&stolen), ErrNotFound)

	second := &World{UserID: bob.ID, Name: "Dunes"}
	require.NoError(t, s.CreateWorld(second))

	mine, err := s.ListWorlds(alice.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := s.AllWorlds()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.DeleteWorld(world.ID, alice.ID))
	assert.ErrorIs(t, s.DeleteWorld(world.ID, alice.ID), ErrNotFound)

	detached, err := s.GetGeneration(gen.ID, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, detached.WorldID)
}

func TestCreateWorldWithGeneration(t *testing.T) {
	s := newTestStore(t)
	alice := newTestUser(t, s, "alice")

	world := &World{UserID: alice.ID, Name: "Aetheria", Content: similarity.WorldContent{Name: "Aetheria"}}
	gen := &Generation{UserID: alice.ID, Kind: KindWorld, Prompt: "sky islands", Content: "{}"}
	require.NoError(t, s.CreateWorldWithGeneration(world, gen))
	require.NotNil(t, gen.WorldID)
	assert.Equal(t, world.ID, *gen.WorldID)

	stored, err := s.GetGeneration(gen.ID, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.WorldID)
	assert.Equal(t, world.ID, *stored.WorldID)
}

func TestCreateWorldWithGeneration_RollsBackWorld(t *testing.T) {
	s := newTestStore(t)
	alice := newTestUser(t, s, "alice")

	_, err := s.db.Exec(`CREATE TRIGGER reject_generations BEFORE INSERT ON generations
		BEGIN SELECT RAISE(ABORT, 'generations are read-only'); END;`)
	require.NoError(t, err)

	world := &World{UserID: alice.ID, Name: "Aetheria", Content: similarity.WorldContent{Name: "Aetheria"}}
	gen := &Generation{UserID: alice.ID, Kind: KindWorld, Prompt: "sky islands", Content: "{}"}
	err = s.CreateWorldWithGeneration(world, gen)
	require.Error(t, err)
	assert.Nil(t, gen.WorldID)

	worlds, err := s.ListWorlds(alice.ID)
	require.NoError(t, err)
	assert.Empty(t, worlds, "the world insert is rolled back with the generation")
}

func TestWorldName(t *testing.T) {
	assert.Equal(t, "Aetheria", WorldName(similarity.WorldContent{Name: " Aetheria "}))
	assert.Equal(t, "Untitled World", WorldName(similarity.WorldContent{}))
}
