package museum

import (
	"context"
	"net/url"
	"strconv"

	"canvasfetch/pkg/httpclient"
	"canvasfetch/pkg/models"
)

// RijksBaseURL is the Rijksmuseum collection API root
const RijksBaseURL = "https://www.rijksmuseum.nl/api/en"

// The API refuses p*ps beyond 10000
const rijksMaxResults = 10000

type rijksSearchResponse struct {
	Count      int `json:"count"`
	ArtObjects []struct {
		ObjectNumber string `json:"objectNumber"`
		Title        string `json:"title"`
		WebImage     *struct {
			URL string `json:"url"`
		} `json:"webImage"`
	} `json:"artObjects"`
}

// Rijks searches the Rijksmuseum. Object numbers such as SK-A-2344 are the ids.
type Rijks struct {
	baseURL  string
	apiKey   string
	pageSize int
	client   *httpclient.Client
	pages    *pager
}

// NewRijks creates a Rijksmuseum adapter
func NewRijks(opts Options) *Rijks {
	opts = opts.withDefaults("rijks", RijksBaseURL)
	return &Rijks{
		baseURL:  opts.BaseURL,
		apiKey:   opts.APIKey,
		pageSize: opts.PageSize,
		client:   opts.Client,
		pages:    newPager(opts.Rand, rijksMaxResults/opts.PageSize),
	}
}

func (r *Rijks) Name() string { return "rijks" }

func (r *Rijks) Search(ctx context.Context, topic string) ([]models.Candidate, error) {
	if r.apiKey == "" {
		return nil, missingKey("rijks")
	}

	for {
		page, ok := r.pages.next()
		if !ok {
			return nil, nil
		}

		q := url.Values{}
		q.Set("key", r.apiKey)
		q.Set("q", topic)
		q.Set("type", "painting")
		q.Set("imgonly", "true")
		q.Set("ps", strconv.Itoa(r.pageSize))
		q.Set("p", strconv.Itoa(page))

		var resp rijksSearchResponse
		if err := r.client.GetJSON(ctx, r.baseURL+"/collection?"+q.Encode(), &resp); err != nil {
			return nil, err
		}
		total := pagesFor(resp.Count, r.pageSize)
		r.pages.limit(total)

		if len(resp.ArtObjects) == 0 && page > total {
			continue
		}

		out := make([]models.Candidate, 0, len(resp.ArtObjects))
		for _, obj := range resp.ArtObjects {
			cand := models.Candidate{Source: "rijks", ID: obj.ObjectNumber, Title: obj.Title}
			if obj.WebImage != nil {
				cand.ImageRef = obj.WebImage.URL
			}
			out = append(out, cand)
		}
		return out, nil
	}
}

func (r *Rijks) Resolve(ctx context.Context, c models.Candidate) (*models.Artwork, error) {
	if c.ImageRef == "" {
		return nil, noImage("rijks", c.ID)
	}
	return fetchArtwork(ctx, r.client, c, c.ImageRef)
}
