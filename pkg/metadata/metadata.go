package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"canvasfetch/pkg/models"
)

// Catalog records descriptive metadata for every accepted image, keyed by
// filename. It is informational: the ledger stays the source of truth.
type Catalog struct {
	path  string
	items map[string]models.CatalogItem
}

type catalogFile struct {
	UpdatedAt time.Time                     `json:"updated_at"`
	Items     map[string]models.CatalogItem `json:"items"`
}

// Open reads the catalog at path. A missing file gives an empty catalog.
func Open(path string) (*Catalog, error) {
	c := &Catalog{path: path, items: make(map[string]models.CatalogItem)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}
	for name, item := range f.Items {
		c.items[name] = item
	}
	return c, nil
}

// Path returns the catalog file location
func (c *Catalog) Path() string {
	return c.path
}

// Add stores item under its filename and writes the catalog
func (c *Catalog) Add(item models.CatalogItem) error {
	if item.Filename == "" {
		return fmt.Errorf("catalog item needs a filename")
	}
	if item.SavedAt.IsZero() {
		item.SavedAt = time.Now().UTC()
	}
	c.items[item.Filename] = item
	return c.save()
}

// Get returns the item recorded for filename
func (c *Catalog) Get(filename string) (models.CatalogItem, bool) {
	item, ok := c.items[filename]
	return item, ok
}

// Items returns every item ordered by filename
func (c *Catalog) Items() []models.CatalogItem {
	out := make([]models.CatalogItem, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out
}

// Remove drops filename from the catalog
func (c *Catalog) Remove(filename string) error {
	if _, ok := c.items[filename]; !ok {
		return nil
	}
	delete(c.items, filename)
	return c.save()
}

// Prune removes entries whose image file no longer exists in dir.
// Returns the number of entries removed.
func (c *Catalog) Prune(dir string) (int, error) {
	removed := 0
	for name := range c.items {
		if _, err := os.Stat(filepath.Join(dir, name)); os.IsNotExist(err) {
			delete(c.items, name)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, c.save()
}

func (c *Catalog) save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}

	data, err := json.MarshalIndent(catalogFile{UpdatedAt: time.Now().UTC(), Items: c.items}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}

	tempPath := c.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	if err := os.Rename(tempPath, c.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace catalog file: %w", err)
	}
	return nil
}

// AspectRatio returns the aspect ratio as a string
func AspectRatio(width, height int) string {
	if height == 0 {
		return "unknown"
	}

	ratio := float64(width) / float64(height)

	// Common aspect ratios
	switch {
	case ratio > 1.7 && ratio < 1.8:
		return "16:9"
	case ratio > 1.3 && ratio < 1.4:
		return "4:3"
	case ratio > 1.45 && ratio < 1.55:
		return "3:2"
	case ratio > 0.9 && ratio < 1.1:
		return "1:1"
	case ratio > 0.55 && ratio < 0.57:
		return "9:16"
	case ratio > 0.74 && ratio < 0.76:
		return "3:4"
	case ratio > 0.65 && ratio < 0.68:
		return "2:3"
	default:
		return fmt.Sprintf("%.2f:1", ratio)
	}
}
