package acquire

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	errs "canvasfetch/pkg/errors"
	"canvasfetch/pkg/ledger"
	"canvasfetch/pkg/logger"
	"canvasfetch/pkg/metadata"
	"canvasfetch/pkg/models"
	"canvasfetch/pkg/offline"
	"canvasfetch/pkg/orientation"
	"canvasfetch/pkg/storage"

	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

type fakeImage struct {
	data []byte
	err  error
}

// fakeAdapter serves fixed pages in order, then empty pages
type fakeAdapter struct {
	name      string
	pages     [][]models.Candidate
	images    map[string]fakeImage
	searchErr error
	// endless repeats the last page instead of running dry
	endless bool
	// onSearch observes every Search call
	onSearch func(name string)

	mu       sync.Mutex
	searches int
	resolves map[string]int
	resolved []string
}

func newFakeAdapter(name string) *fakeAdapter {
	return &fakeAdapter{
		name:     name,
		images:   make(map[string]fakeImage),
		resolves: make(map[string]int),
	}
}

func (f *fakeAdapter) add(id string, img fakeImage) models.Candidate {
	f.images[id] = img
	return models.Candidate{Source: f.name, ID: id, Title: "Painting " + id}
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Search(ctx context.Context, topic string) ([]models.Candidate, error) {
	if f.onSearch != nil {
		f.onSearch(f.name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.searches
	f.searches++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if n >= len(f.pages) {
		if f.endless && len(f.pages) > 0 {
			n = len(f.pages) - 1
		} else {
			return nil, nil
		}
	}
	return append([]models.Candidate(nil), f.pages[n]...), nil
}

func (f *fakeAdapter) Resolve(ctx context.Context, c models.Candidate) (*models.Artwork, error) {
	f.mu.Lock()
	f.resolves[c.ID]++
	f.resolved = append(f.resolved, c.ID)
	img := f.images[c.ID]
	f.mu.Unlock()
	if img.err != nil {
		return nil, img.err
	}
	return &models.Artwork{
		Candidate:   c,
		URL:         "https://example.org/" + c.ID,
		ContentType: "image/png",
		Data:        img.data,
	}, nil
}

func (f *fakeAdapter) resolveCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolves[id]
}

func (f *fakeAdapter) resolveOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.resolved...)
}

func (f *fakeAdapter) totalResolves() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.resolves {
		total += n
	}
	return total
}

type fakeOffline struct {
	calls int
	sel   *offline.Selection
	err   error
}

func (f *fakeOffline) Select(o orientation.Orientation) (*offline.Selection, error) {
	f.calls++
	return f.sel, f.err
}

func noImage(source string) error {
	return errs.New(errs.KindNoImage, source, "no image reference")
}

func transient(source string) error {
	return errs.New(errs.KindTransient, source, "connection reset")
}

type fixture struct {
	ledger  *ledger.Ledger
	store   *storage.Manager
	catalog *metadata.Catalog
	log     *logger.TestLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	log := logger.NewTestLogger()

	l, err := ledger.Open(filepath.Join(dir, "ledger.json"), log)
	require.NoError(t, err)
	store, err := storage.NewManager(filepath.Join(dir, "images"))
	require.NoError(t, err)
	catalog, err := metadata.Open(filepath.Join(dir, "images", "catalog.json"))
	require.NoError(t, err)

	return &fixture{ledger: l, store: store, catalog: catalog, log: log}
}

func (fx *fixture) sessionConfig(o orientation.Orientation) SessionConfig {
	return SessionConfig{
		Topic:       "landscape",
		Orientation: o,
		Ledger:      fx.ledger,
		Store:       fx.store,
		Catalog:     fx.catalog,
		Rand:        rand.New(rand.NewSource(1)),
		Logger:      fx.log,
	}
}

// brokenLedger loads like the real ledger but cannot persist anything
type brokenLedger struct {
	*ledger.Ledger
}

func (b brokenLedger) Record(source, id string, outcome models.Outcome) (bool, error) {
	return false, errors.New("disk full")
}
