package db

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/nicco6482/desintesa/pkg/ontology"
)

//go:embed seed/catalog.json
var seedFS embed.FS

// CatalogProvider supplies the read-only chemical catalog.
type CatalogProvider interface {
	LoadCatalog(ctx context.Context) ([]ontology.ChemicalCatalogEntry, error)
}

// FileCatalog reads the catalog from a JSON file, falling back to the
// embedded seed catalog when no path is set. The file is read once.
type FileCatalog struct {
	path string

	once    sync.Once
	entries []ontology.ChemicalCatalogEntry
	err     error
}

func NewFileCatalog(path string) *FileCatalog {
	return &FileCatalog{path: path}
}

func (c *FileCatalog) LoadCatalog(ctx context.Context) ([]ontology.ChemicalCatalogEntry, error) {
	c.once.Do(func() {
		c.entries, c.err = c.read()
	})
	if c.err != nil {
		return nil, c.err
	}
	out := make([]ontology.ChemicalCatalogEntry, len(c.entries))
	copy(out, c.entries)
	return out, nil
}

func (c *FileCatalog) read() ([]ontology.ChemicalCatalogEntry, error) {
	var (
		data []byte
		err  error
	)
	if c.path == "" {
		data, err = seedFS.ReadFile("seed/catalog.json")
	} else {
		data, err = os.ReadFile(c.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read chemical catalog: %w", err)
	}

	entries := []ontology.ChemicalCatalogEntry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode chemical catalog: %w", err)
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("chemical catalog entry %q has no id", e.Name)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("duplicate chemical catalog id %s", e.ID)
		}
		seen[e.ID] = true
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// StaticCatalog serves a fixed set of entries.
type StaticCatalog []ontology.ChemicalCatalogEntry

func (c StaticCatalog) LoadCatalog(ctx context.Context) ([]ontology.ChemicalCatalogEntry, error) {
	out := make([]ontology.ChemicalCatalogEntry, len(c))
	copy(out, c)
	return out, nil
}

// LookupChemical finds a catalog entry by id.
func LookupChemical(entries []ontology.ChemicalCatalogEntry, id string) (*ontology.ChemicalCatalogEntry, bool) {
	for i := range entries {
		if entries[i].ID == id {
			e := entries[i]
			return &e, true
		}
	}
	return nil, false
}
