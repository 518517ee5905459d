package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"canvasfetch/pkg/logger"
	"canvasfetch/pkg/models"
	"canvasfetch/pkg/storage"
)

const fileVersion = 1

// fileFormat is the on-disk representation of the ledger
type fileFormat struct {
	Version   int                                  `json:"version"`
	UpdatedAt time.Time                            `json:"updated_at"`
	Entries   map[string]map[string]models.Outcome `json:"entries"`
	// Imported lists rejected ids that came from a plain id list and may
	// still be promoted by Reconcile
	Imported map[string][]string `json:"imported,omitempty"`
}

// SourceStats counts ledger outcomes for one source
type SourceStats struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// Stats summarises the ledger
type Stats struct {
	Sources   map[string]SourceStats `json:"sources"`
	Accepted  int                    `json:"accepted"`
	Rejected  int                    `json:"rejected"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Ledger records which (source, id) pairs have been evaluated.
// An entry is written once and never changed; only Reset clears it.
type Ledger struct {
	path      string
	entries   map[string]map[string]models.Outcome
	legacy    map[string]map[string]bool
	updatedAt time.Time
	logger    logger.Logger
	mu        sync.Mutex
}

// Open loads the ledger at path. A missing file yields an empty ledger.
func Open(path string, log logger.Logger) (*Ledger, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	l := &Ledger{
		path:    path,
		entries: make(map[string]map[string]models.Outcome),
		legacy:  make(map[string]map[string]bool),
		logger:  log,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("failed to read ledger file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return l, nil
	}

	if err := l.decode(data); err != nil {
		return nil, fmt.Errorf("failed to decode ledger %s: %w", path, err)
	}

	l.logger.DebugWithFields("Ledger loaded", map[string]interface{}{
		"path":    path,
		"entries": l.count(),
		"legacy":  len(l.legacy) > 0,
	})
	return l, nil
}

func (l *Ledger) decode(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	if _, ok := probe["entries"]; ok {
		var f fileFormat
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		if f.Version > fileVersion {
			return fmt.Errorf("unsupported ledger version %d", f.Version)
		}
		for source, ids := range f.Entries {
			for id, outcome := range ids {
				if !outcome.Valid() {
					return fmt.Errorf("invalid outcome %q for %s/%s", outcome, source, id)
				}
				l.set(source, id, outcome)
			}
		}
		for source, ids := range f.Imported {
			for _, id := range ids {
				if l.entries[source][id] == models.Rejected {
					l.markLegacy(source, id)
				}
			}
		}
		l.updatedAt = f.UpdatedAt
		return nil
	}

	// Plain {"source": ["id", ...]} list without outcomes
	var seen map[string][]string
	if err := json.Unmarshal(data, &seen); err != nil {
		return err
	}
	for source, ids := range seen {
		for _, id := range ids {
			l.set(source, id, models.Rejected)
			l.markLegacy(source, id)
		}
	}
	return nil
}

func (l *Ledger) markLegacy(source, id string) {
	if l.legacy[source] == nil {
		l.legacy[source] = make(map[string]bool)
	}
	l.legacy[source][id] = true
}

// imported returns the legacy ids still awaiting promotion, sorted
func (l *Ledger) imported() map[string][]string {
	var out map[string][]string
	for source, ids := range l.legacy {
		for id := range ids {
			if out == nil {
				out = make(map[string][]string)
			}
			out[source] = append(out[source], id)
		}
	}
	for _, ids := range out {
		sort.Strings(ids)
	}
	return out
}

func (l *Ledger) set(source, id string, outcome models.Outcome) {
	ids, ok := l.entries[source]
	if !ok {
		ids = make(map[string]models.Outcome)
		l.entries[source] = ids
	}
	ids[id] = outcome
}

func (l *Ledger) count() int {
	n := 0
	for _, ids := range l.entries {
		n += len(ids)
	}
	return n
}

// Path returns the ledger file location
func (l *Ledger) Path() string {
	return l.path
}

// IsSeen reports whether (source, id) has already been evaluated
func (l *Ledger) IsSeen(source, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[source][id]
	return ok
}

// Outcome returns the recorded outcome for (source, id)
func (l *Ledger) Outcome(source, id string) (models.Outcome, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	outcome, ok := l.entries[source][id]
	return outcome, ok
}

// Record stores the outcome for (source, id) and persists the ledger before
// returning. The first write wins: recording an existing pair is a no-op and
// reports false.
func (l *Ledger) Record(source, id string, outcome models.Outcome) (bool, error) {
	if !outcome.Valid() {
		return false, fmt.Errorf("invalid outcome %q", outcome)
	}
	if source == "" || id == "" {
		return false, fmt.Errorf("ledger entry needs both source and id")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[source][id]; ok {
		return false, nil
	}

	l.set(source, id, outcome)
	if err := l.save(); err != nil {
		delete(l.entries[source], id)
		return false, err
	}
	return true, nil
}

// Reset clears every entry and removes the ledger file
func (l *Ledger) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete ledger: %w", err)
	}
	l.entries = make(map[string]map[string]models.Outcome)
	l.legacy = make(map[string]map[string]bool)
	l.updatedAt = time.Time{}

	l.logger.InfoWithFields("Ledger reset", map[string]interface{}{"path": l.path})
	return nil
}

// Accepted lists every accepted entry ordered by source and id
func (l *Ledger) Accepted() []models.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []models.Entry
	for source, ids := range l.entries {
		for id, outcome := range ids {
			if outcome == models.Accepted {
				out = append(out, models.Entry{Source: source, ID: id, Outcome: outcome})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Stats returns per-source outcome counts
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{Sources: make(map[string]SourceStats), UpdatedAt: l.updatedAt}
	for source, ids := range l.entries {
		var s SourceStats
		for _, outcome := range ids {
			if outcome == models.Accepted {
				s.Accepted++
			} else {
				s.Rejected++
			}
		}
		stats.Sources[source] = s
		stats.Accepted += s.Accepted
		stats.Rejected += s.Rejected
	}
	return stats
}

// Reconcile rebuilds the accepted half of the ledger from images found on
// disk. Pairs already recorded stay as they are, except entries imported
// from a plain id list, which are promoted to accepted when their file
// exists. Returns the number of entries added or promoted.
func (l *Ledger) Reconcile(images []storage.StoredImage) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed := 0
	for _, img := range images {
		if img.Source == "" || img.ID == "" {
			continue
		}
		outcome, ok := l.entries[img.Source][img.ID]
		switch {
		case !ok:
			l.set(img.Source, img.ID, models.Accepted)
			changed++
		case outcome == models.Rejected && l.legacy[img.Source][img.ID]:
			l.set(img.Source, img.ID, models.Accepted)
			delete(l.legacy[img.Source], img.ID)
			changed++
		}
	}

	if changed == 0 {
		return 0, nil
	}
	if err := l.save(); err != nil {
		return 0, err
	}

	l.logger.InfoWithFields("Ledger reconciled", map[string]interface{}{
		"images":  len(images),
		"changed": changed,
	})
	return changed, nil
}

// save rewrites the whole ledger through a temporary file and a rename
func (l *Ledger) save() error {
	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	now := time.Now().UTC()
	f := fileFormat{Version: fileVersion, UpdatedAt: now, Entries: l.entries, Imported: l.imported()}

	tempPath := l.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary ledger file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(f); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync ledger file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close ledger file: %w", err)
	}

	if err := os.Rename(tempPath, l.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}

	l.updatedAt = now
	l.logger.DebugWithFields("Ledger saved", map[string]interface{}{
		"path":    l.path,
		"entries": l.count(),
	})
	return nil
}
