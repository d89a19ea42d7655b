package similarity

import "time"

// Category tags the semantic role of an indexed section.
type Category string

const (
	CategoryOverview   Category = "overview"
	CategoryCharacter  Category = "character"
	CategoryLocation   Category = "location"
	CategoryCulture    Category = "culture"
	CategoryHistory    Category = "history"
	CategoryMagic      Category = "magic"
	CategoryPolitics   Category = "politics"
	CategoryTechnology Category = "technology"
)

// Record is one embedded section of an owner's document. Records are never
// mutated after they are stored; re-indexing replaces them by ID.
type Record struct {
	OwnerID  string    `json:"owner_id"`
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Text     string    `json:"text"`
	Vector   []float32 `json:"vector"`
	Category Category  `json:"category"`
	// Importance is kept for callers that want it; ranking ignores it.
	Importance float64   `json:"importance"`
	CreatedAt  time.Time `json:"created_at"`
}

// WorldContent is the structured document indexed for an owner. Every
// section is optional.
type WorldContent struct {
	Name            string           `json:"name,omitempty"`
	Description     string           `json:"description,omitempty"`
	Characters      []CharacterEntry `json:"characters,omitempty"`
	MagicSystem     string           `json:"magic_system,omitempty"`
	PoliticalSystem string           `json:"political_system,omitempty"`
	Culture         string           `json:"culture,omitempty"`
	Geography       string           `json:"geography,omitempty"`
	History         string           `json:"history,omitempty"`
	Technology      string           `json:"technology,omitempty"`
}

type CharacterEntry struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Role        string `json:"role,omitempty"`
	Description string `json:"description,omitempty"`
}

// ScoredRecord is a Record with its similarity to a query.
type ScoredRecord struct {
	Record
	Similarity float64 `json:"similarity"`
}

// Result is the answer to Retrieve.
type Result struct {
	RelevantRecords []ScoredRecord `json:"relevant_records"`
	Summary         string         `json:"summary"`
	Suggestions     []string       `json:"suggestions"`
}
