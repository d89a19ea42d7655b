package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/writing-studio/studio/internal/core"
	"github.com/writing-studio/studio/internal/similarity"
)

type APIHandler struct {
	users  *core.UserService
	studio *core.StudioService
	worlds *core.WorldService
}

func NewAPIHandler(users *core.UserService, studio *core.StudioService, worlds *core.WorldService) *APIHandler {
	return &APIHandler{users: users, studio: studio, worlds: worlds}
}

type CredentialsRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.users.Signup(req.UserID, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.UserID == "" || req.Password == "" {
		writeErrorMessage(w, http.StatusBadRequest, "User ID and password are required")
		return
	}

	token, err := h.users.Login(req.UserID, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *APIHandler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	profile, err := h.users.Profile(user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *APIHandler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	var req core.ProfileUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	profile, err := h.users.UpdateProfile(user.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *APIHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	kind, err := core.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req core.GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Kind = kind

	gen, err := h.studio.Generate(r.Context(), user.ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, gen)
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.ErrInvalidInput
	}
	return n, nil
}

func (h *APIHandler) ListGenerationsHandler(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "limit must be a number")
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "offset must be a number")
		return
	}

	generations, err := h.studio.ListGenerations(user.ID, r.URL.Query().Get("kind"), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, generations)
}

func (h *APIHandler) GetGenerationHandler(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	gen, err := h.studio.GetGeneration(user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gen)
}

func (h *APIHandler) DeleteGenerationHandler(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	if err := h.studio.DeleteGeneration(user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) CreateWorldHandler(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	var content similarity.WorldContent
	if err := decodeJSON(w, r, &content); err != nil {
		writeError(w, r, err)
		return
	}

	world, err := h.worlds.CreateWorld(r.Context(), user.ID, content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, world)
}

func (h *APIHandler) ListWorldsHandler(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	worlds, err := h.worlds.ListWorlds(user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, worlds)
}

func (h *APIHandler) GetWorldHandler(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	world, err := h.worlds.GetWorld(user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, world)
}

func (h *APIHandler) UpdateWorldHandler(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	var content similarity.WorldContent
	if err := decodeJSON(w, r, &content); err != nil {
		writeError(w, r, err)
		return
	}

	world, err := h.worlds.UpdateWorld(r.Context(), user.ID, chi.URLParam(r, "id"), content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, world)
}

func (h *APIHandler) DeleteWorldHandler(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	if err := h.worlds.DeleteWorld(user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type QueryWorldRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

func (h *APIHandler) QueryWorldHandler(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	var req QueryWorldRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.worlds.QueryWorld(r.Context(), user.ID, chi.URLParam(r, "id"), req.Query, req.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// embeddingView omits the vector itself, which is large and opaque to clients.
type embeddingView struct {
	ID         string              `json:"id"`
	Label      string              `json:"label"`
	Text       string              `json:"text"`
	Category   similarity.Category `json:"category"`
	Importance float64             `json:"importance"`
	Dimensions int                 `json:"dimensions"`
	CreatedAt  time.Time           `json:"created_at"`
}

type EmbeddingsResponse struct {
	WorldID string          `json:"world_id"`
	Count   int             `json:"count"`
	Records []embeddingView `json:"records"`
}

func (h *APIHandler) ListEmbeddingsHandler(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	worldID := chi.URLParam(r, "id")
	records, err := h.worlds.Embeddings(user.ID, worldID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := EmbeddingsResponse{WorldID: worldID, Count: len(records), Records: make([]embeddingView, 0, len(records))}
	for _, rec := range records {
		resp.Records = append(resp.Records, embeddingView{
			ID:         rec.ID,
			Label:      rec.Label,
			Text:       rec.Text,
			Category:   rec.Category,
			Importance: rec.Importance,
			Dimensions: len(rec.Vector),
			CreatedAt:  rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) ReindexWorldHandler(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	worldID := chi.URLParam(r, "id")
	n, err := h.worlds.ReindexWorld(r.Context(), user.ID, worldID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"world_id": worldID, "indexed": n})
}

func (h *APIHandler) ClearEmbeddingsHandler(w http.ResponseWriter, r *http.Request) {
	user := mustUser(r)
	if err := h.worlds.ClearEmbeddings(user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
