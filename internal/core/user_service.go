package core

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/writing-studio/studio/internal/auth"
	"github.com/writing-studio/studio/internal/store"
)

type UserService struct {
	dbStore *store.SQLiteStore
}

func NewUserService(db *store.SQLiteStore) *UserService {
	return &UserService{dbStore: db}
}

func (s *UserService) Signup(externalUserID, password string) (*store.User, error) {
	if !validExternalID(externalUserID) {
		return nil, invalidf("user_id must be 3-64 characters of letters, digits, '_', '-', '.' or '@'")
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return nil, invalidf("password must be %d-%d characters", minPasswordLength, maxPasswordLength)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user, err := s.dbStore.CreateUser(externalUserID, hash)
	if err != nil {
		return nil, err
	}
	log.Printf("Created user %s (id %d)", user.ExternalUserID, user.ID)
	return user, nil
}

// Login checks the password and returns a signed token for the user.
func (s *UserService) Login(externalUserID, password string) (string, error) {
	user, err := s.dbStore.GetUserByExternalID(externalUserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	token, err := auth.GenerateJWT(user.ExternalUserID)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}

func (s *UserService) GetUserByExternalID(externalUserID string) (*store.User, error) {
	return s.dbStore.GetUserByExternalID(externalUserID)
}

func (s *UserService) Profile(userID int64) (*store.Profile, error) {
	return s.dbStore.GetProfile(userID)
}

type ProfileUpdate struct {
	DisplayName    string   `json:"display_name"`
	Bio            string   `json:"bio"`
	FavoriteGenres []string `json:"favorite_genres"`
	WritingGoals   string   `json:"writing_goals"`
}

// UpdateProfile replaces the user's profile. Genres are trimmed, lower-cased
// and de-duplicated in order.
func (s *UserService) UpdateProfile(userID int64, upd ProfileUpdate) (*store.Profile, error) {
	upd.DisplayName = strings.TrimSpace(upd.DisplayName)
	for _, err := range []error{
		maxLength("display_name", upd.DisplayName, maxNameLength),
		maxLength("bio", upd.Bio, maxLongField),
		maxLength("writing_goals", upd.WritingGoals, maxLongField),
	} {
		if err != nil {
			return nil, err
		}
	}

	genres := make([]string, 0, len(upd.FavoriteGenres))
	seen := make(map[string]bool)
	for _, g := range upd.FavoriteGenres {
		g = strings.ToLower(strings.TrimSpace(g))
		if g == "" || seen[g] {
			continue
		}
		if err := maxLength("genre", g, maxShortField); err != nil {
			return nil, err
		}
		seen[g] = true
		genres = append(genres, g)
	}
	if len(genres) > maxGenres {
		return nil, invalidf("at most %d favorite genres are allowed", maxGenres)
	}

	profile := &store.Profile{
		UserID:         userID,
		DisplayName:    upd.DisplayName,
		Bio:            strings.TrimSpace(upd.Bio),
		FavoriteGenres: genres,
		WritingGoals:   strings.TrimSpace(upd.WritingGoals),
	}
	if err := s.dbStore.UpsertProfile(profile); err != nil {
		return nil, err
	}
	return profile, nil
}
