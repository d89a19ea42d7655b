package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/writing-studio/studio/internal/config"
	"github.com/writing-studio/studio/internal/core"
	"github.com/writing-studio/studio/internal/ratelimit"
	"github.com/writing-studio/studio/internal/similarity"
	"github.com/writing-studio/studio/internal/store"
)

type stubGenerator struct {
	out string
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.out, nil
}

type testServer struct {
	handler  http.Handler
	gen      *stubGenerator
	limiters *ratelimit.Limiters
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	prev := config.AppConfig
	config.AppConfig.JWTSecret = "api-test-secret"
	config.AppConfig.JWTTTL = time.Hour
	t.Cleanup(func() { config.AppConfig = prev })

	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gen := &stubGenerator{out: "A lighthouse that only shines for ghosts."}
	index := similarity.NewStore(nil, nil, similarity.WithDimensions(128))
	worlds := core.NewWorldService(db, index)
	h := NewAPIHandler(core.NewUserService(db), core.NewStudioService(db, gen, worlds, time.Second), worlds)
	limiters := ratelimit.NewLimiters()

	return &testServer{handler: NewRouter(h, limiters), gen: gen, limiters: limiters}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.10:5555"
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, userID string) string {
	t.Helper()
	creds := map[string]string{"user_id": userID, "password": "password123"}
	rec := s.do(t, http.MethodPost, "/api/signup", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["token"])
	return resp["token"]
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "writer")

	rec := s.do(t, http.MethodPost, "/api/signup", "", map[string]string{"user_id": "writer", "password": "password123"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/login", "", map[string]string{"user_id": "writer", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/profile", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/profile", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRateLimit(t *testing.T) {
	s := newTestServer(t)
	body := map[string]string{"user_id": "ghost", "password": "password123"}

	for i := 0; i < ratelimit.Authentication.MaxRequests; i++ {
		rec := s.do(t, http.MethodPost, "/api/login", "", body)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, strconv.Itoa(ratelimit.Authentication.MaxRequests-i-1), rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := s.do(t, http.MethodPost, "/api/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))

	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retry, 0)
	assert.LessOrEqual(t, retry, 300)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "Too many requests")
}

func TestProfileRoutes(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "writer")

	rec := s.do(t, http.MethodPut, "/api/profile", token, map[string]any{
		"display_name":    "Writer",
		"favorite_genres": []string{"Noir", "noir"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	profile := decode[store.Profile](t, s.do(t, http.MethodGet, "/api/profile", token, nil))
	assert.Equal(t, "Writer", profile.DisplayName)
	assert.Equal(t, []string{"noir"}, profile.FavoriteGenres)

	req := httptest.NewRequest(http.MethodPut, "/api/profile", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateAndGenerations(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "writer")

	rec := s.do(t, http.MethodPost, "/api/generate/story-idea", token, map[string]string{"prompt": "a haunted lighthouse"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	gen := decode[store.Generation](t, rec)
	assert.Equal(t, store.KindStoryIdea, gen.Kind)
	assert.Equal(t, s.gen.out, gen.Content)

	rec = s.do(t, http.MethodPost, "/api/generate/sonnet", token, map[string]string{"prompt": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/generate/plot", token, map[string]string{"prompt": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	list := decode[[]store.Generation](t, s.do(t, http.MethodGet, "/api/generations?kind=story-idea", token, nil))
	require.Len(t, list, 1)
	assert.Equal(t, gen.ID, list[0].ID)

	rec = s.do(t, http.MethodGet, "/api/generations?limit=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/generations/"+gen.ID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	other := s.login(t, "other")
	rec = s.do(t, http.MethodGet, "/api/generations/"+gen.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/generations/"+gen.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/generations/"+gen.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateRateLimit(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "writer")

	for i := 0; i < ratelimit.AIGeneration.MaxRequests; i++ {
		rec := s.do(t, http.MethodPost, "/api/generate/plot", token, map[string]string{"prompt": "heist"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := s.do(t, http.MethodPost, "/api/generate/plot", token, map[string]string{"prompt": "heist"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = s.do(t, http.MethodGet, "/api/generations", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "other routes keep their own quota")
}

func TestWorldWritesShareAIRateLimit(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "writer")

	for i := 0; i < ratelimit.AIGeneration.MaxRequests; i++ {
		rec := s.do(t, http.MethodPost, "/api/worlds", token, similarity.WorldContent{Name: "World " + strconv.Itoa(i)})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := s.do(t, http.MethodPost, "/api/worlds", token, similarity.WorldContent{Name: "One too many"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	worlds := decode[[]store.World](t, s.do(t, http.MethodGet, "/api/worlds", token, nil))
	require.Len(t, worlds, ratelimit.AIGeneration.MaxRequests)
	id := worlds[0].ID

	rec = s.do(t, http.MethodPut, "/api/worlds/"+id, token, similarity.WorldContent{Name: "Renamed"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/worlds/"+id+"/embeddings", token, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/generate/plot", token, map[string]string{"prompt": "heist"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestWorldRoutes(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "writer")

	rec := s.do(t, http.MethodPost, "/api/worlds", token, similarity.WorldContent{
		Name:        "Aetheria",
		Description: "A floating city of brass and steam",
		Characters:  []similarity.CharacterEntry{{ID: "mara", Name: "Mara", Role: "captain"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	world := decode[store.World](t, rec)

	rec = s.do(t, http.MethodPost, "/api/worlds", token, similarity.WorldContent{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	worlds := decode[[]store.World](t, s.do(t, http.MethodGet, "/api/worlds", token, nil))
	require.Len(t, worlds, 1)

	res := decode[similarity.Result](t, s.do(t, http.MethodPost, "/api/worlds/"+world.ID+"/query", token,
		QueryWorldRequest{Query: "steam-powered transportation", Limit: 3}))
	require.NotEmpty(t, res.RelevantRecords)
	assert.Equal(t, world.ID+"_overview", res.RelevantRecords[0].ID)
	assert.Len(t, res.Suggestions, 3)

	emb := decode[EmbeddingsResponse](t, s.do(t, http.MethodGet, "/api/worlds/"+world.ID+"/embeddings", token, nil))
	assert.Equal(t, 2, emb.Count)
	assert.Equal(t, 128, emb.Records[0].Dimensions)

	world.Content.History = "The Great Fall"
	rec = s.do(t, http.MethodPut, "/api/worlds/"+world.ID, token, world.Content)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodDelete, "/api/worlds/"+world.ID+"/embeddings", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	res = decode[similarity.Result](t, s.do(t, http.MethodPost, "/api/worlds/"+world.ID+"/query", token, QueryWorldRequest{Query: "steam"}))
	assert.Equal(t, similarity.NoContextSummary, res.Summary)
	assert.Empty(t, res.RelevantRecords)

	reindexed := decode[map[string]any](t, s.do(t, http.MethodPost, "/api/worlds/"+world.ID+"/embeddings", token, nil))
	assert.EqualValues(t, 3, reindexed["indexed"])

	other := s.login(t, "other")
	rec = s.do(t, http.MethodGet, "/api/worlds/"+world.ID, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/worlds/"+world.ID+"/query", other, QueryWorldRequest{Query: "steam"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/worlds/"+world.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/worlds/"+world.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateWorld(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "writer")
	s.gen.out = `{"name":"Glassreach","description":"A desert of singing glass","geography":"Dunes of fused sand"}`

	rec := s.do(t, http.MethodPost, "/api/generate/world", token, map[string]string{"prompt": "glass desert"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	gen := decode[store.Generation](t, rec)
	require.NotNil(t, gen.WorldID)

	world := decode[store.World](t, s.do(t, http.MethodGet, "/api/worlds/"+*gen.WorldID, token, nil))
	assert.Equal(t, "Glassreach", world.Name)
	assert.Equal(t, "Dunes of fused sand", world.Content.Geography)
}
