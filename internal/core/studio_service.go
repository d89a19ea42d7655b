package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/writing-studio/studio/internal/ai"
	"github.com/writing-studio/studio/internal/similarity"
	"github.com/writing-studio/studio/internal/store"
)

const defaultGenerationTimeout = 20 * time.Second

type GenerateRequest struct {
	Kind   store.GenerationKind `json:"-"`
	Prompt string               `json:"prompt"`
	Genre  string               `json:"genre,omitempty"`
	Tone   string               `json:"tone,omitempty"`
	// WorldID grounds non-world generations in one of the user's worlds.
	WorldID string `json:"world_id,omitempty"`
	// Characters names the speakers of a dialogue.
	Characters []string `json:"characters,omitempty"`
}

func (r GenerateRequest) params() map[string]string {
	params := map[string]string{}
	if r.Genre != "" {
		params["genre"] = r.Genre
	}
	if r.Tone != "" {
		params["tone"] = r.Tone
	}
	if r.WorldID != "" {
		params["world_id"] = r.WorldID
	}
	if len(r.Characters) > 0 {
		params["characters"] = strings.Join(r.Characters, ", ")
	}
	return params
}

type StudioService struct {
	dbStore   *store.SQLiteStore
	generator ai.Generator
	worlds    *WorldService
	timeout   time.Duration
}

func NewStudioService(db *store.SQLiteStore, generator ai.Generator, worlds *WorldService, timeout time.Duration) *StudioService {
	if timeout <= 0 {
		timeout = defaultGenerationTimeout
	}
	return &StudioService{dbStore: db, generator: generator, worlds: worlds, timeout: timeout}
}

func (s *StudioService) validate(req *GenerateRequest) error {
	if !req.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	req.Genre = strings.TrimSpace(req.Genre)
	req.Tone = strings.TrimSpace(req.Tone)

	if err := required("prompt", req.Prompt); err != nil {
		return err
	}
	for _, err := range []error{
		maxLength("prompt", req.Prompt, maxPromptLength),
		maxLength("genre", req.Genre, maxShortField),
		maxLength("tone", req.Tone, maxShortField),
	} {
		if err != nil {
			return err
		}
	}
	if len(req.Characters) > 6 {
		return invalidf("a dialogue takes at most 6 characters")
	}
	for _, c := range req.Characters {
		if err := maxLength("character", c, maxNameLength); err != nil {
			return err
		}
	}
	if req.Kind == store.KindWorld && req.WorldID != "" {
		return invalidf("world_id cannot be used when generating a new world")
	}
	return nil
}

// Generate builds the prompt for req.Kind, calls the generator and stores the
// result. World generations are also persisted as a World and indexed.
func (s *StudioService) Generate(ctx context.Context, userID int64, req GenerateRequest) (*store.Generation, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	if req.Genre == "" {
		req.Genre = s.favoriteGenre(userID)
	}

	worldContext := ""
	if req.WorldID != "" {
		summary, err := s.worlds.WorldContext(ctx, userID, req.WorldID, truncate(req.Prompt, maxQueryLength))
		if err != nil {
			return nil, err
		}
		worldContext = summary
	}

	prompt := buildPrompt(req, worldContext)

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	text, err := s.generator.Generate(genCtx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response from model", ErrGenerationFailed)
	}

	gen := &store.Generation{
		UserID:  userID,
		Kind:    req.Kind,
		Prompt:  req.Prompt,
		Params:  req.params(),
		Content: text,
	}

	if req.Kind == store.KindWorld {
		if _, err := s.worlds.SaveGeneratedWorld(ctx, ParseWorldContent(text, req.Prompt), gen); err != nil {
			return nil, fmt.Errorf("failed to save generated world: %w", err)
		}
		return gen, nil
	}

	if err := s.dbStore.CreateGeneration(gen); err != nil {
		return nil, fmt.Errorf("failed to save generation: %w", err)
	}
	return gen, nil
}

func (s *StudioService) ListGenerations(userID int64, kind string, limit, offset int) ([]store.Generation, error) {
	var k store.GenerationKind
	if kind != "" {
		parsed, err := ParseKind(kind)
		if err != nil {
			return nil, err
		}
		k = parsed
	}
	if limit < 0 || offset < 0 {
		return nil, invalidf("limit and offset must not be negative")
	}
	return s.dbStore.ListGenerations(userID, k, limit, offset)
}

func (s *StudioService) GetGeneration(userID int64, id string) (*store.Generation, error) {
	return s.dbStore.GetGeneration(id, userID)
}

func (s *StudioService) DeleteGeneration(userID int64, id string) error {
	return s.dbStore.DeleteGeneration(id, userID)
}

func (s *StudioService) favoriteGenre(userID int64) string {
	profile, err := s.dbStore.GetProfile(userID)
	if err != nil {
		log.Printf("Could not load profile for user %d, generating without a default genre: %v", userID, err)
		return ""
	}
	if len(profile.FavoriteGenres) == 0 {
		return ""
	}
	return profile.FavoriteGenres[0]
}

// ParseWorldContent reads the model's JSON world description. Output that
// is not valid JSON becomes the world's description.
func ParseWorldContent(text, prompt string) similarity.WorldContent {
	var content similarity.WorldContent
	if err := json.Unmarshal([]byte(ai.ExtractJSON(text)), &content); err != nil {
		log.Printf("Model returned a world that is not JSON, storing it as a description: %v", err)
		content = similarity.WorldContent{Description: strings.TrimSpace(text)}
	}
	if strings.TrimSpace(content.Name) == "" {
		content.Name = titleFromPrompt(prompt)
	}
	content.Name = truncate(content.Name, maxNameLength)
	return content
}

func titleFromPrompt(prompt string) string {
	words := strings.Fields(prompt)
	if len(words) > 6 {
		words = words[:6]
	}
	return strings.Join(words, " ")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

var kindInstructions = map[store.GenerationKind]string{
	store.KindStoryIdea: "Generate an original story idea. Give it a title, a one-sentence logline, " +
		"the protagonist, the central conflict and two possible twists.",
	store.KindCharacter: "Create a detailed character profile. Include name, age, appearance, " +
		"personality, backstory, motivation, a secret and a flaw.",
	store.KindDialogue: "Write a dialogue scene. Keep each line short, give every speaker a distinct voice " +
		"and end the scene on a turn that changes the situation.",
	store.KindPlot: "Outline a plot in three acts. For each act list the key events, " +
		"the turning point and how the stakes rise.",
	store.KindWorld: `Design a fictional world. Respond with a single JSON object and nothing else, using these keys:
{"name": string, "description": string, "characters": [{"id": string, "name": string, "role": string, "description": string}],
 "magic_system": string, "political_system": string, "culture": string, "geography": string, "history": string, "technology": string}
Leave a key out if it does not apply.`,
}

func buildPrompt(req GenerateRequest, worldContext string) string {
	var b strings.Builder
	b.WriteString(kindInstructions[req.Kind])
	b.WriteString("\n\n")

	if req.Genre != "" {
		fmt.Fprintf(&b, "Genre: %s\n", req.Genre)
	}
	if req.Tone != "" {
		fmt.Fprintf(&b, "Tone: %s\n", req.Tone)
	}
	if len(req.Characters) > 0 {
		fmt.Fprintf(&b, "Speakers: %s\n", strings.Join(req.Characters, ", "))
	}
	if worldContext != "" {
		fmt.Fprintf(&b, "\nStay consistent with this established world:\n%s\n", worldContext)
	}

	fmt.Fprintf(&b, "\nWriter's request:\n%s", req.Prompt)
	return b.String()
}
