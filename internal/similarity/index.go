package similarity

import (
	"context"
	"fmt"
	"strings"
)

type section struct {
	key        string
	label      string
	text       string
	category   Category
	importance float64
}

// IndexDocument embeds every present section of content and stores one
// record per section under ownerID. Existing records with the same derived ID
// are overwritten; records for sections that disappeared are left in place.
// It returns the number of records written.
func (s *Store) IndexDocument(ctx context.Context, ownerID string, content WorldContent) (int, error) {
	if strings.TrimSpace(ownerID) == "" {
		return 0, ErrEmptyOwner
	}

	sections := worldSections(content)
	if len(sections) == 0 {
		return 0, nil
	}

	now := s.now()
	records := make([]Record, 0, len(sections))
	for _, sec := range sections {
		records = append(records, Record{
			OwnerID:    ownerID,
			ID:         ownerID + "_" + sec.key,
			Label:      sec.label,
			Text:       sec.text,
			Vector:     s.embed(ctx, sec.label+": "+sec.text),
			Category:   sec.category,
			Importance: sec.importance,
			CreatedAt:  now,
		})
	}

	s.Upsert(records...)
	return len(records), nil
}

func worldSections(c WorldContent) []section {
	var out []section
	add := func(key, label, text string, cat Category, importance float64) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		out = append(out, section{key: key, label: label, text: text, category: cat, importance: importance})
	}

	add("overview", "World Overview", c.Description, CategoryOverview, 1.0)

	for i, ch := range c.Characters {
		id := characterKey(ch, i)
		if id == "" {
			continue
		}
		add("character_"+id, "Character", characterText(ch), CategoryCharacter, 0.8)
	}

	add("magic", "Magic System", c.MagicSystem, CategoryMagic, 0.7)
	add("politics", "Political System", c.PoliticalSystem, CategoryPolitics, 0.6)
	add("culture", "Culture", c.Culture, CategoryCulture, 0.6)
	add("geography", "Geography", c.Geography, CategoryLocation, 0.7)
	add("history", "History", c.History, CategoryHistory, 0.5)
	add("technology", "Technology", c.Technology, CategoryTechnology, 0.6)

	return out
}

// characterKey prefers the entry's own ID, then a slug of its name, then its
// position.
func characterKey(ch CharacterEntry, pos int) string {
	if id := strings.TrimSpace(ch.ID); id != "" {
		return id
	}
	if slug := slugify(ch.Name); slug != "" {
		return slug
	}
	if strings.TrimSpace(ch.Description) != "" {
		return fmt.Sprintf("%d", pos)
	}
	return ""
}

func characterText(ch CharacterEntry) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(ch.Name))
	if role := strings.TrimSpace(ch.Role); role != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("(" + role + ")")
	}
	if desc := strings.TrimSpace(ch.Description); desc != "" {
		if b.Len() > 0 {
			b.WriteString(" - ")
		}
		b.WriteString(desc)
	}
	return b.String()
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
