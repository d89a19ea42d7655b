package store

import (
	"time"

	"github.com/writing-studio/studio/internal/similarity"
)

type User struct {
	ID             int64     `json:"id"`
	ExternalUserID string    `json:"external_user_id"`
	PasswordHash   string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

type Profile struct {
	UserID         int64     `json:"user_id"`
	DisplayName    string    `json:"display_name"`
	Bio            string    `json:"bio"`
	FavoriteGenres []string  `json:"favorite_genres"`
	WritingGoals   string    `json:"writing_goals"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type GenerationKind string

const (
	KindStoryIdea GenerationKind = "story_idea"
	KindCharacter GenerationKind = "character"
	KindDialogue  GenerationKind = "dialogue"
	KindPlot      GenerationKind = "plot"
	KindWorld     GenerationKind = "world"
)

var Kinds = []GenerationKind{KindStoryIdea, KindCharacter, KindDialogue, KindPlot, KindWorld}

func (k GenerationKind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Generation is one piece of generated writing. Params holds the optional
// request knobs (genre, tone, ...) that shaped the prompt.
type Generation struct {
	ID        string            `json:"id"` // UUID
	UserID    int64             `json:"user_id"`
	Kind      GenerationKind    `json:"kind"`
	Prompt    string            `json:"prompt"`
	Params    map[string]string `json:"params,omitempty"`
	Content   string            `json:"content"`
	WorldID   *string           `json:"world_id,omitempty"` // set for world generations
	CreatedAt time.Time         `json:"created_at"`
}

type World struct {
	ID        string                  `json:"id"` // UUID
	UserID    int64                   `json:"user_id"`
	Name      string                  `json:"name"`
	Content   similarity.WorldContent `json:"content"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}
