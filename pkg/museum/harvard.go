package museum

import (
	"context"
	"net/url"
	"strconv"

	"canvasfetch/pkg/httpclient"
	"canvasfetch/pkg/models"
)

// HarvardBaseURL is the Harvard Art Museums API root
const HarvardBaseURL = "https://api.harvardartmuseums.org"

const harvardMaxPages = 100

type harvardSearchResponse struct {
	Info struct {
		Pages int `json:"pages"`
	} `json:"info"`
	Records []struct {
		ObjectID        int    `json:"objectid"`
		Title           string `json:"title"`
		PrimaryImageURL string `json:"primaryimageurl"`
	} `json:"records"`
}

// Harvard searches the Harvard Art Museums. It needs an API key.
type Harvard struct {
	baseURL  string
	apiKey   string
	pageSize int
	client   *httpclient.Client
	pages    *pager
}

// NewHarvard creates a Harvard Art Museums adapter
func NewHarvard(opts Options) *Harvard {
	opts = opts.withDefaults("harvard", HarvardBaseURL)
	return &Harvard{
		baseURL:  opts.BaseURL,
		apiKey:   opts.APIKey,
		pageSize: opts.PageSize,
		client:   opts.Client,
		pages:    newPager(opts.Rand, harvardMaxPages),
	}
}

func (h *Harvard) Name() string { return "harvard" }

func (h *Harvard) Search(ctx context.Context, topic string) ([]models.Candidate, error) {
	if h.apiKey == "" {
		return nil, missingKey("harvard")
	}

	for {
		page, ok := h.pages.next()
		if !ok {
			return nil, nil
		}

		q := url.Values{}
		q.Set("apikey", h.apiKey)
		q.Set("keyword", topic)
		q.Set("classification", "Paintings")
		q.Set("hasimage", "1")
		q.Set("fields", "objectid,title,primaryimageurl")
		q.Set("size", strconv.Itoa(h.pageSize))
		q.Set("page", strconv.Itoa(page))

		var resp harvardSearchResponse
		if err := h.client.GetJSON(ctx, h.baseURL+"/object?"+q.Encode(), &resp); err != nil {
			return nil, err
		}
		h.pages.limit(resp.Info.Pages)

		if len(resp.Records) == 0 && page > resp.Info.Pages {
			continue
		}

		out := make([]models.Candidate, 0, len(resp.Records))
		for _, rec := range resp.Records {
			out = append(out, models.Candidate{
				Source:   "harvard",
				ID:       strconv.Itoa(rec.ObjectID),
				Title:    rec.Title,
				ImageRef: rec.PrimaryImageURL,
			})
		}
		return out, nil
	}
}

func (h *Harvard) Resolve(ctx context.Context, c models.Candidate) (*models.Artwork, error) {
	if c.ImageRef == "" {
		return nil, noImage("harvard", c.ID)
	}
	return fetchArtwork(ctx, h.client, c, c.ImageRef)
}
