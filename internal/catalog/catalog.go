// Package catalog holds the immutable, versioned milestone reference table and
// the age queries over it.
package catalog

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rcliao/milestone-tracker/internal/model"
)

//go:embed milestones.json
var defaultData []byte

// tabs are the conventional age tabs of the checklist app.
var tabs = []int{3, 6, 9, 12, 18, 24}

// Catalog is a read-only set of milestone definitions.
type Catalog struct {
	version    string
	milestones []model.Milestone
	byID       map[string]int
}

type catalogFile struct {
	Version    string            `json:"version"`
	Milestones []model.Milestone `json:"milestones"`
}

// New validates the definitions and builds a catalog.
func New(version string, milestones []model.Milestone) (*Catalog, error) {
	c := &Catalog{
		version:    version,
		milestones: make([]model.Milestone, len(milestones)),
		byID:       make(map[string]int, len(milestones)),
	}
	copy(c.milestones, milestones)

	for i, m := range c.milestones {
		if m.ID == "" {
			return nil, fmt.Errorf("milestone %d: empty id", i)
		}
		if _, dup := c.byID[m.ID]; dup {
			return nil, fmt.Errorf("milestone %s: duplicate id", m.ID)
		}
		if err := m.AgeWindow.Validate(); err != nil {
			return nil, fmt.Errorf("milestone %s: %w", m.ID, err)
		}
		if m.Domain == "" {
			return nil, fmt.Errorf("milestone %s: empty domain", m.ID)
		}
		c.byID[m.ID] = i
	}
	return c, nil
}

// Parse reads either {"version": ..., "milestones": [...]} or a bare array of
// definitions. A bare array is versioned by its content hash.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		var list []model.Milestone
		if err2 := json.Unmarshal(data, &list); err2 != nil {
			return nil, fmt.Errorf("parse catalog: %w", err)
		}
		f.Milestones = list
	}
	if f.Version == "" {
		sum := sha256.Sum256(data)
		f.Version = "sha256:" + hex.EncodeToString(sum[:8])
	}
	return New(f.Version, f.Milestones)
}

// Load reads a catalog from a JSON file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultData)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Version identifies the catalog contents.
func (c *Catalog) Version() string { return c.version }

// Len returns the number of definitions.
func (c *Catalog) Len() int { return len(c.milestones) }

// All returns every definition in catalog order.
func (c *Catalog) All() []model.Milestone {
	out := make([]model.Milestone, len(c.milestones))
	copy(out, c.milestones)
	return out
}

// Get looks up a definition by id.
func (c *Catalog) Get(id string) (model.Milestone, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.Milestone{}, false
	}
	return c.milestones[i], true
}

// Has reports whether id is defined.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// InScope returns the milestones whose window contains ageMonths. This is the
// set progress and evaluation work on.
func (c *Catalog) InScope(ageMonths int) []model.Milestone {
	return c.filter(func(m model.Milestone) bool { return m.AgeWindow.Contains(ageMonths) })
}

// ByTypicalAge returns the milestones shown under the tab for ageMonths. It is a
// display query only; do not use it for progress.
func (c *Catalog) ByTypicalAge(ageMonths int) []model.Milestone {
	return c.filter(func(m model.Milestone) bool { return m.AgeWindow.Typical == ageMonths })
}

// Tabs returns the conventional display ages.
func (c *Catalog) Tabs() []int {
	out := make([]int, len(tabs))
	copy(out, tabs)
	return out
}

func (c *Catalog) filter(keep func(model.Milestone) bool) []model.Milestone {
	var out []model.Milestone
	for _, m := range c.milestones {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}
