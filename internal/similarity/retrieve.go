package similarity

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/writing-studio/studio/internal/ai"
	"github.com/writing-studio/studio/internal/utils"
)

const (
	NoContextSummary = "No world context available."
	NoMatchSummary   = "No closely related world details were found."

	suggestionCount = 3
)

// FallbackSuggestions are returned whenever the generator cannot supply its own.
var FallbackSuggestions = []string{
	"Expand on the world's history and how it shapes the present day.",
	"Develop a character whose goals clash with the world's power structure.",
	"Describe a location that shows how ordinary people live here.",
}

// Retrieve returns the owner's records most similar to query, a summary of
// them and three follow-up suggestions. It never fails: embedding and
// suggestion errors are replaced by local fallbacks.
func (s *Store) Retrieve(ctx context.Context, ownerID, query string, limit int) Result {
	relevant, summary, ok := s.search(ctx, ownerID, query, limit)
	if !ok {
		return Result{
			RelevantRecords: []ScoredRecord{},
			Summary:         NoContextSummary,
			Suggestions:     []string{},
		}
	}
	return Result{
		RelevantRecords: relevant,
		Summary:         summary,
		Suggestions:     s.suggest(ctx, summary, query),
	}
}

// Search ranks the owner's records against query like Retrieve but never
// calls the generator. Suggestions is always empty.
func (s *Store) Search(ctx context.Context, ownerID, query string, limit int) Result {
	relevant, summary, ok := s.search(ctx, ownerID, query, limit)
	if !ok {
		return Result{RelevantRecords: []ScoredRecord{}, Summary: NoContextSummary, Suggestions: []string{}}
	}
	return Result{RelevantRecords: relevant, Summary: summary, Suggestions: []string{}}
}

// search reports ok=false for an owner with no records, without embedding
// the query.
func (s *Store) search(ctx context.Context, ownerID, query string, limit int) ([]ScoredRecord, string, bool) {
	records := s.Records(ownerID)
	if len(records) == 0 {
		return nil, "", false
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	queryVec := s.embed(ctx, query)
	relevant := rank(records, queryVec, limit)
	return relevant, summarize(relevant), true
}

// rank scores every record, keeps the top limit and then drops anything at
// or below RelevanceFloor.
func rank(records []Record, queryVec []float32, limit int) []ScoredRecord {
	scored := make([]ScoredRecord, 0, len(records))
	for _, rec := range records {
		scored = append(scored, ScoredRecord{
			Record:     rec,
			Similarity: utils.CosineSimilarity(queryVec, rec.Vector),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	out := make([]ScoredRecord, 0, len(scored))
	for _, sr := range scored {
		if sr.Similarity > RelevanceFloor {
			out = append(out, sr)
		}
	}
	return out
}

func summarize(records []ScoredRecord) string {
	if len(records) == 0 {
		return NoMatchSummary
	}
	parts := make([]string, 0, len(records))
	for _, r := range records {
		parts = append(parts, r.Label+": "+r.Text)
	}
	return strings.Join(parts, "\n\n")
}

func (s *Store) suggest(ctx context.Context, summary, query string) []string {
	if s.generator == nil {
		return fallbackSuggestions()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := fmt.Sprintf("World context:\n%s\n\nThe writer asked: %q\n\n"+
		"Suggest exactly %d short, actionable next steps for developing this world further. "+
		"Respond with a JSON array of %d strings and nothing else.",
		summary, query, suggestionCount, suggestionCount)

	out, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		log.Printf("Suggestion request failed, using fallback suggestions: %v", err)
		return fallbackSuggestions()
	}

	suggestions := ParseSuggestions(out)
	if len(suggestions) < suggestionCount {
		log.Printf("Model returned %d usable suggestions, using fallback suggestions", len(suggestions))
		return fallbackSuggestions()
	}
	return suggestions
}

func fallbackSuggestions() []string {
	out := make([]string, len(FallbackSuggestions))
	copy(out, FallbackSuggestions)
	return out
}

// ParseSuggestions reads up to three suggestions from model output, which may
// be a JSON array of strings or a bulleted/numbered list. Lines without a
// list marker are ignored, so prose such as a refusal yields nothing.
func ParseSuggestions(text string) []string {
	var arr []string
	if err := json.Unmarshal([]byte(ai.ExtractJSON(text)), &arr); err == nil {
		return clean(arr)
	}

	var items []string
	for _, line := range strings.Split(text, "\n") {
		if item, ok := stripListMarker(line); ok {
			items = append(items, item)
		}
	}
	return clean(items)
}

func clean(items []string) []string {
	out := make([]string, 0, suggestionCount)
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" || strings.HasPrefix(it, "```") {
			continue
		}
		out = append(out, it)
		if len(out) == suggestionCount {
			break
		}
	}
	return out
}

// stripListMarker removes a leading "-", "*", "•", "N." or "N)" marker and
// reports whether the line had one.
func stripListMarker(line string) (string, bool) {
	line = strings.TrimSpace(line)
	for _, m := range []string{"-", "*", "•"} {
		if strings.HasPrefix(line, m) {
			return strings.TrimSpace(strings.TrimPrefix(line, m)), true
		}
	}
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:]), true
	}
	return "", false
}
