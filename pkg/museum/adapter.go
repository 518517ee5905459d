package museum

import (
	"context"
	"math/rand"
	"time"

	errs "canvasfetch/pkg/errors"
	"canvasfetch/pkg/httpclient"
	"canvasfetch/pkg/logger"
	"canvasfetch/pkg/models"
)

// DefaultPageSize is the number of candidates requested per search page
const DefaultPageSize = 100

// Adapter is one art collection behind a common search/resolve capability
type Adapter interface {
	// Name returns the short source name used in the ledger and filenames
	Name() string
	// Search returns one page of candidates. Pages are chosen at random and
	// never repeat within one adapter instance. An empty page with a nil
	// error means the collection has no more pages.
	Search(ctx context.Context, topic string) ([]models.Candidate, error)
	// Resolve downloads the image for c. It returns a no_image error,
	// without any network access where possible, when c has no image.
	Resolve(ctx context.Context, c models.Candidate) (*models.Artwork, error)
}

// Options configure a concrete adapter
type Options struct {
	// BaseURL overrides the API root
	BaseURL string
	// ImageBaseURL overrides the image server root (AIC only)
	ImageBaseURL string
	// APIKey is required by Harvard and the Rijksmuseum
	APIKey   string
	PageSize int
	Client   *httpclient.Client
	Rand     *rand.Rand
	Logger   logger.Logger
}

func (o Options) withDefaults(source, baseURL string) Options {
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.Logger == nil {
		o.Logger = logger.GetLogger()
	}
	if o.Client == nil {
		o.Client = httpclient.New(httpclient.Options{Source: source, Logger: o.Logger})
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return o
}

// fetchArtwork downloads url and wraps it together with c
func fetchArtwork(ctx context.Context, client *httpclient.Client, c models.Candidate, url string) (*models.Artwork, error) {
	data, contentType, err := client.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return &models.Artwork{
		Candidate:   c,
		URL:         url,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func noImage(source, id string) error {
	return errs.New(errs.KindNoImage, source, "item "+id+" has no image")
}

func missingKey(source string) error {
	return errs.New(errs.KindCredentials, source, "API key not configured")
}

// pager hands out random, never repeated page numbers in 1..last
type pager struct {
	rng     *rand.Rand
	last    int
	visited map[int]bool
}

func newPager(rng *rand.Rand, last int) *pager {
	return &pager{rng: rng, last: last, visited: make(map[int]bool)}
}

// next picks an unvisited page, or reports false when none remain
func (p *pager) next() (int, bool) {
	var free []int
	for page := 1; page <= p.last; page++ {
		if !p.visited[page] {
			free = append(free, page)
		}
	}
	if len(free) == 0 {
		return 0, false
	}
	page := free[p.rng.Intn(len(free))]
	p.visited[page] = true
	return page, true
}

// limit shrinks the page range once the collection size is known
func (p *pager) limit(pages int) {
	if pages >= 0 && pages < p.last {
		p.last = pages
	}
}

// pagesFor converts a result total into a page count
func pagesFor(total, pageSize int) int {
	if total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
