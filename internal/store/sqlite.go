package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/writing-studio/studio/internal/similarity"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; serialising here avoids "database is locked".
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        external_user_id TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS profiles (
        user_id INTEGER PRIMARY KEY,
        display_name TEXT NOT NULL DEFAULT '',
        bio TEXT NOT NULL DEFAULT '',
        favorite_genres_json TEXT NOT NULL DEFAULT '[]',
        writing_goals TEXT NOT NULL DEFAULT '',
        updated_at DATETIME NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS worlds (
        id TEXT PRIMARY KEY, -- UUID
        user_id INTEGER NOT NULL,
        name TEXT NOT NULL,
        content_json TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS generations (
        id TEXT PRIMARY KEY, -- UUID
        user_id INTEGER NOT NULL,
        kind TEXT NOT NULL CHECK (kind IN ('story_idea', 'character', 'dialogue', 'plot', 'world')),
        prompt TEXT NOT NULL,
        params_json TEXT NOT NULL DEFAULT '{}',
        content TEXT NOT NULL,
        world_id TEXT,
        created_at DATETIME NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE INDEX IF NOT EXISTS idx_generations_user ON generations (user_id, created_at);
    CREATE INDEX IF NOT EXISTS idx_worlds_user ON worlds (user_id, updated_at);
    `
	_, err := s.db.Exec(schema)
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// User methods
func (s *SQLiteStore) CreateUser(externalUserID, passwordHash string) (*User, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec("INSERT INTO users (external_user_id, password_hash, created_at) VALUES (?, ?, ?)", externalUserID, passwordHash, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %q: %w", externalUserID, ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read user id: %w", err)
	}
	return &User{ID: id, ExternalUserID: externalUserID, PasswordHash: passwordHash, CreatedAt: now}, nil
}

func (s *SQLiteStore) GetUserByExternalID(externalUserID string) (*User, error) {
	return s.scanUser(s.db.QueryRow("SELECT id, external_user_id, password_hash, created_at FROM users WHERE external_user_id = ?", externalUserID))
}

func (s *SQLiteStore) GetUserByID(id int64) (*User, error) {
	return s.scanUser(s.db.QueryRow("SELECT id, external_user_id, password_hash, created_at FROM users WHERE id = ?", id))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.ExternalUserID, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// Profile methods

// GetProfile returns the user's profile, or an empty one if it was never saved.
func (s *SQLiteStore) GetProfile(userID int64) (*Profile, error) {
	profile := Profile{UserID: userID, FavoriteGenres: []string{}}
	var genresJSON string
	err := s.db.QueryRow("SELECT display_name, bio, favorite_genres_json, writing_goals, updated_at FROM profiles WHERE user_id = ?", userID).
		Scan(&profile.DisplayName, &profile.Bio, &genresJSON, &profile.WritingGoals, &profile.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &profile, nil
		}
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	if err := json.Unmarshal([]byte(genresJSON), &profile.FavoriteGenres); err != nil {
		log.Printf("Warning: bad favorite_genres_json for user %d: %v", userID, err)
		profile.FavoriteGenres = []string{}
	}
	return &profile, nil
}

func (s *SQLiteStore) UpsertProfile(profile *Profile) error {
	if profile.FavoriteGenres == nil {
		profile.FavoriteGenres = []string{}
	}
	genresJSON, err := json.Marshal(profile.FavoriteGenres)
	if err != nil {
		return fmt.Errorf("failed to marshal favorite genres: %w", err)
	}
	profile.UpdatedAt = time.Now().UTC()

	_, err = s.db.Exec(`
        INSERT INTO profiles (user_id, display_name, bio, favorite_genres_json, writing_goals, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET
            display_name = excluded.display_name,
            bio = excluded.bio,
            favorite_genres_json = excluded.favorite_genres_json,
            writing_goals = excluded.writing_goals,
            updated_at = excluded.updated_at`,
		profile.UserID, profile.DisplayName, profile.Bio, string(genresJSON), profile.WritingGoals, profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// Generation methods
// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) CreateGeneration(gen *Generation) error {
	return insertGeneration(s.db, gen)
}

func insertGeneration(ex execer, gen *Generation) error {
	gen.ID = uuid.NewString()
	gen.CreatedAt = time.Now().UTC()

	params := gen.Params
	if params == nil {
		params = map[string]string{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal generation params: %w", err)
	}

	_, err = ex.Exec("INSERT INTO generations (id, user_id, kind, prompt, params_json, content, world_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		gen.ID, gen.UserID, string(gen.Kind), gen.Prompt, string(paramsJSON), gen.Content, gen.WorldID, gen.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute generation insert: %w", err)
	}
	return nil
}

const generationColumns = "id, user_id, kind, prompt, params_json, content, world_id, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row rowScanner) (*Generation, error) {
	var gen Generation
	var kind, paramsJSON string
	var worldID sql.NullString
	if err := row.Scan(&gen.ID, &gen.UserID, &kind, &gen.Prompt, &paramsJSON, &gen.Content, &worldID, &gen.CreatedAt); err != nil {
		return nil, err
	}
	gen.Kind = GenerationKind(kind)
	if worldID.Valid {
		gen.WorldID = &worldID.String
	}
	if paramsJSON != "" && paramsJSON != "{}" {
		if err := json.Unmarshal([]byte(paramsJSON), &gen.Params); err != nil {
			log.Printf("Warning: bad params_json for generation %s: %v", gen.ID, err)
		}
	}
	return &gen, nil
}

func (s *SQLiteStore) GetGeneration(id string, userID int64) (*Generation, error) {
	row := s.db.QueryRow("SELECT "+generationColumns+" FROM generations WHERE id = ? AND user_id = ?", id, userID)
	gen, err := scanGeneration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("generation %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}
	return gen, nil
}

// ListGenerations returns the user's generations newest first. An empty kind
// matches every kind.
func (s *SQLiteStore) ListGenerations(userID int64, kind GenerationKind, limit, offset int) ([]Generation, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var b strings.Builder
	b.WriteString("SELECT " + generationColumns + " FROM generations WHERE user_id = ?")
	args := []any{userID}
	if kind != "" {
		b.WriteString(" AND kind = ?")
		args = append(args, string(kind))
	}
	b.WriteString(" ORDER BY created_at DESC, id LIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	rows, err := s.db.Query(b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	generations := []Generation{}
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation row: %w", err)
		}
		generations = append(generations, *gen)
	}
	return generations, rows.Err()
}

func (s *SQLiteStore) DeleteGeneration(id string, userID int64) error {
	res, err := s.db.Exec("DELETE FROM generations WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete generation: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("generation %s: %w", id, ErrNotFound)
	}
	return nil
}

// World methods
func (s *SQLiteStore) CreateWorld(world *World) error {
	return insertWorld(s.db, world)
}

// CreateWorldWithGeneration stores a generated world and the generation that
// produced it in one transaction; gen.WorldID is set to the new world.
func (s *SQLiteStore) CreateWorldWithGeneration(world *World, gen *Generation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertWorld(tx, world); err != nil {
		return err
	}
	gen.WorldID = &world.ID
	if err := insertGeneration(tx, gen); err != nil {
		gen.WorldID = nil
		return err
	}
	if err := tx.Commit(); err != nil {
		gen.WorldID = nil
		return fmt.Errorf("failed to commit world generation: %w", err)
	}
	return nil
}

func insertWorld(ex execer, world *World) error {
	contentJSON, err := json.Marshal(world.Content)
	if err != nil {
		return fmt.Errorf("failed to marshal world content: %w", err)
	}
	world.ID = uuid.NewString()
	world.CreatedAt = time.Now().UTC()
	world.UpdatedAt = world.CreatedAt

	_, err = ex.Exec("INSERT INTO worlds (id, user_id, name, content_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		world.ID, world.UserID, world.Name, string(contentJSON), world.CreatedAt, world.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert world: %w", err)
	}
	return nil
}

const worldColumns = "id, user_id, name, content_json, created_at, updated_at"

func scanWorld(row rowScanner) (*World, error) {
	var world World
	var contentJSON string
	if err := row.Scan(&world.ID, &world.UserID, &world.Name, &contentJSON, &world.CreatedAt, &world.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(contentJSON), &world.Content); err != nil {
		return nil, fmt.Errorf("failed to unmarshal content of world %s: %w", world.ID, err)
	}
	return &world, nil
}

func (s *SQLiteStore) GetWorld(id string, userID int64) (*World, error) {
	world, err := scanWorld(s.db.QueryRow("SELECT "+worldColumns+" FROM worlds WHERE id = ? AND user_id = ?", id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("world %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get world: %w", err)
	}
	return world, nil
}

func (s *SQLiteStore) ListWorlds(userID int64) ([]World, error) {
	return s.queryWorlds("SELECT "+worldColumns+" FROM worlds WHERE user_id = ? ORDER BY updated_at DESC, id", userID)
}

// AllWorlds returns every persisted world; used to rebuild the similarity index.
func (s *SQLiteStore) AllWorlds() ([]World, error) {
	return s.queryWorlds("SELECT " + worldColumns + " FROM worlds ORDER BY created_at, id")
}

func (s *SQLiteStore) queryWorlds(query string, args ...any) ([]World, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query worlds: %w", err)
	}
	defer rows.Close()

	worlds := []World{}
	for rows.Next() {
		world, err := scanWorld(rows)
		if err != nil {
			log.Printf("Skipping unreadable world row: %v", err)
			continue
		}
		worlds = append(worlds, *world)
	}
	return worlds, rows.Err()
}

func (s *SQLiteStore) UpdateWorld(world *World) error {
	contentJSON, err := json.Marshal(world.Content)
	if err != nil {
		return fmt.Errorf("failed to marshal world content: %w", err)
	}
	world.UpdatedAt = time.Now().UTC()

	res, err := s.db.Exec("UPDATE worlds SET name = ?, content_json = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		world.Name, string(contentJSON), world.UpdatedAt, world.ID, world.UserID)
	if err != nil {
		return fmt.Errorf("failed to update world: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("world %s: %w", world.ID, ErrNotFound)
	}
	return nil
}

// DeleteWorld removes the world and detaches generations that produced it.
func (s *SQLiteStore) DeleteWorld(id string, userID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM worlds WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete world: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("world %s: %w", id, ErrNotFound)
	}

	if _, err := tx.Exec("UPDATE generations SET world_id = NULL WHERE world_id = ? AND user_id = ?", id, userID); err != nil {
		return fmt.Errorf("failed to detach generations: %w", err)
	}
	return tx.Commit()
}

// WorldName picks a display name for content, falling back to a placeholder.
func WorldName(content similarity.WorldContent) string {
	if name := strings.TrimSpace(content.Name); name != "" {
		return name
	}
	return "Untitled World"
}
