package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/writing-studio/studio/internal/core"
	"github.com/writing-studio/studio/internal/store"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps service errors to status codes. Unexpected errors are
// logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidInput), errors.Is(err, core.ErrUnknownKind):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrInvalidCredentials):
		writeErrorMessage(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, store.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, "Not found")
	case errors.Is(err, store.ErrAlreadyExists):
		writeErrorMessage(w, http.StatusConflict, "Already exists")
	case errors.Is(err, core.ErrGenerationFailed):
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeErrorMessage(w, http.StatusBadGateway, "The AI provider could not complete the request, please try again")
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeErrorMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", core.ErrInvalidInput, err)
	}
	return nil
}
