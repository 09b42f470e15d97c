package data

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"showdown-arena/game"
)

//go:embed catalog.json
var defaultCatalog []byte

// Catalog is the read-only move and species catalog, keyed by lowercased id.
type Catalog struct {
	species map[string]game.Species
	moves   map[string]game.Move
}

type rawCatalog struct {
	Species map[string]game.Species `json:"species"`
	Moves   map[string]game.Move    `json:"moves"`
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Decode(bytes.NewReader(defaultCatalog))
}

// LoadFile reads a catalog from a JSON file on disk.
func LoadFile(path string) (*Catalog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Decode(file)
}

// Decode parses a catalog document and validates every entry.
func Decode(r io.Reader) (*Catalog, error) {
	var raw rawCatalog
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{
		species: make(map[string]game.Species, len(raw.Species)),
		moves:   make(map[string]game.Move, len(raw.Moves)),
	}
	for key, m := range raw.Moves {
		id := strings.ToLower(key)
		m.ID = id
		if m.Name == "" {
			m.Name = DisplayName(id)
		}
		if err := validateMove(m); err != nil {
			return nil, err
		}
		c.moves[id] = m
	}
	for key, s := range raw.Species {
		id := strings.ToLower(key)
		s.ID = id
		if s.Name == "" {
			s.Name = DisplayName(id)
		}
		if len(s.Types) == 0 || len(s.Types) > 2 {
			return nil, fmt.Errorf("species %s: must have one or two types", id)
		}
		c.species[id] = s
	}
	return c, nil
}

func validateMove(m game.Move) error {
	switch m.Category {
	case game.CategoryPhysical, game.CategorySpecial:
		if m.Power <= 0 {
			return fmt.Errorf("move %s: damaging move needs positive power", m.ID)
		}
	case game.CategoryStatus:
	default:
		return fmt.Errorf("move %s: unknown category %q", m.ID, m.Category)
	}
	if m.PP <= 0 {
		return fmt.Errorf("move %s: pp must be positive", m.ID)
	}
	return nil
}

func (c *Catalog) Move(id string) (game.Move, bool) {
	m, ok := c.moves[strings.ToLower(id)]
	return m, ok
}

func (c *Catalog) Species(id string) (game.Species, bool) {
	s, ok := c.species[strings.ToLower(id)]
	return s, ok
}

// Moves resolves ids in order, failing on the first unknown id.
func (c *Catalog) Moves(ids []string) ([]game.Move, error) {
	moves := make([]game.Move, 0, len(ids))
	for _, id := range ids {
		m, ok := c.Move(id)
		if !ok {
			return nil, fmt.Errorf("move not found: %s", id)
		}
		moves = append(moves, m)
	}
	return moves, nil
}

// DisplayName turns a catalog id such as "quick-attack" into "Quick Attack".
func DisplayName(id string) string {
	// Casers keep state and cannot be shared across goroutines.
	return cases.Title(language.English).String(strings.ReplaceAll(id, "-", " "))
}
