// Package offline picks a previously accepted local image when every
// museum source has failed.
package offline

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	errs "canvasfetch/pkg/errors"
	"canvasfetch/pkg/imageinfo"
	"canvasfetch/pkg/logger"
	"canvasfetch/pkg/orientation"
	"canvasfetch/pkg/storage"
)

// Selection is the image chosen by the cycler
type Selection struct {
	storage.StoredImage
	Width  int
	Height int
	Format string
	// LastShown is the marker before this selection refreshed it
	LastShown time.Time
}

type recencyFile struct {
	Version int                  `json:"version"`
	Shown   map[string]time.Time `json:"shown"`
}

// Cycler rotates through accepted images, oldest last-shown marker first.
// Markers live in a small JSON file next to the images.
type Cycler struct {
	store       *storage.Manager
	recencyPath string
	logger      logger.Logger
	now         func() time.Time
}

// New creates a cycler over store's images with markers at recencyPath
func New(store *storage.Manager, recencyPath string, log logger.Logger) *Cycler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Cycler{
		store:       store,
		recencyPath: recencyPath,
		logger:      log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Select chooses the matching image shown least recently and refreshes its
// marker. Images never shown come first; ties go to the smaller filename.
func (c *Cycler) Select(o orientation.Orientation) (*Selection, error) {
	images, matches, shown, err := c.matching(o)
	if err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if !a.LastShown.Equal(b.LastShown) {
			return a.LastShown.Before(b.LastShown)
		}
		return a.Name < b.Name
	})
	return c.mark(matches[0], images, shown, len(matches)), nil
}

// Random picks any matching image and refreshes its marker, so the next
// Select rotates past it
func (c *Cycler) Random(o orientation.Orientation, rng *rand.Rand) (*Selection, error) {
	images, matches, shown, err := c.matching(o)
	if err != nil {
		return nil, err
	}
	return c.mark(matches[rng.Intn(len(matches))], images, shown, len(matches)), nil
}

// matching lists the stored images, decodes them and keeps those matching o
func (c *Cycler) matching(o orientation.Orientation) ([]storage.StoredImage, []Selection, map[string]time.Time, error) {
	images, err := c.store.List()
	if err != nil {
		return nil, nil, nil, errs.Wrap(errs.KindOfflineExhausted, "offline", err, "cannot list local images")
	}

	shown := c.loadMarkers()

	var matches []Selection
	for _, img := range images {
		info, err := imageinfo.DecodeFile(img.Path)
		if err != nil {
			c.logger.DebugWithFields("Skipping undecodable local image", map[string]interface{}{
				"file":  img.Name,
				"error": err.Error(),
			})
			continue
		}
		if !o.Matches(info.Width, info.Height) {
			continue
		}
		matches = append(matches, Selection{
			StoredImage: img,
			Width:       info.Width,
			Height:      info.Height,
			Format:      info.Format,
			LastShown:   shown[img.Name],
		})
	}

	if len(matches) == 0 {
		return nil, nil, nil, errs.New(errs.KindOfflineExhausted, "offline",
			fmt.Sprintf("no local image satisfies orientation %s", o))
	}
	return images, matches, shown, nil
}

// mark refreshes the chosen image's marker and persists the markers
func (c *Cycler) mark(chosen Selection, images []storage.StoredImage, shown map[string]time.Time, candidates int) *Selection {
	// Drop markers for files that are gone
	present := make(map[string]bool, len(images))
	for _, img := range images {
		present[img.Name] = true
	}
	for name := range shown {
		if !present[name] {
			delete(shown, name)
		}
	}
	shown[chosen.Name] = c.now()

	if err := c.saveMarkers(shown); err != nil {
		// The selection is still usable; rotation just won't advance
		c.logger.WarnWithFields("Failed to persist recency markers", map[string]interface{}{
			"path":  c.recencyPath,
			"error": err.Error(),
		})
	}

	c.logger.InfoWithFields("Offline image selected", map[string]interface{}{
		"file":       chosen.Name,
		"candidates": candidates,
	})
	return &chosen
}

// Markers returns the last-shown time per filename
func (c *Cycler) Markers() map[string]time.Time {
	return c.loadMarkers()
}

func (c *Cycler) loadMarkers() map[string]time.Time {
	shown := make(map[string]time.Time)

	data, err := os.ReadFile(c.recencyPath)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.WarnWithFields("Cannot read recency markers", map[string]interface{}{
				"path":  c.recencyPath,
				"error": err.Error(),
			})
		}
		return shown
	}

	var f recencyFile
	if err := json.Unmarshal(data, &f); err != nil {
		c.logger.WarnWithFields("Ignoring corrupt recency markers", map[string]interface{}{
			"path":  c.recencyPath,
			"error": err.Error(),
		})
		return shown
	}
	for name, t := range f.Shown {
		shown[name] = t
	}
	return shown
}

func (c *Cycler) saveMarkers(shown map[string]time.Time) error {
	if err := os.MkdirAll(filepath.Dir(c.recencyPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(recencyFile{Version: 1, Shown: shown}, "", "  ")
	if err != nil {
		return err
	}

	tempPath := c.recencyPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tempPath, c.recencyPath); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}
