package museum

import (
	"context"
	"net/url"
	"strconv"

	"canvasfetch/pkg/httpclient"
	"canvasfetch/pkg/models"
)

const (
	// AICBaseURL is the Art Institute of Chicago API root
	AICBaseURL = "https://api.artic.edu/api/v1"
	// AICImageBaseURL is the AIC IIIF image server
	AICImageBaseURL = "https://www.artic.edu/iiif/2"

	aicMaxPages = 50
)

type aicSearchResponse struct {
	Pagination struct {
		TotalPages int `json:"total_pages"`
	} `json:"pagination"`
	Data []struct {
		ID      int    `json:"id"`
		Title   string `json:"title"`
		ImageID string `json:"image_id"`
	} `json:"data"`
}

// AIC searches the Art Institute of Chicago and serves images from IIIF
type AIC struct {
	baseURL      string
	imageBaseURL string
	pageSize     int
	client       *httpclient.Client
	pages        *pager
}

// NewAIC creates an AIC adapter
func NewAIC(opts Options) *AIC {
	opts = opts.withDefaults("aic", AICBaseURL)
	if opts.ImageBaseURL == "" {
		opts.ImageBaseURL = AICImageBaseURL
	}
	opts.Client.SetHeader("AIC-User-Agent", "canvasfetch")
	return &AIC{
		baseURL:      opts.BaseURL,
		imageBaseURL: opts.ImageBaseURL,
		pageSize:     opts.PageSize,
		client:       opts.Client,
		pages:        newPager(opts.Rand, aicMaxPages),
	}
}

func (a *AIC) Name() string { return "aic" }

func (a *AIC) Search(ctx context.Context, topic string) ([]models.Candidate, error) {
	for {
		page, ok := a.pages.next()
		if !ok {
			return nil, nil
		}

		q := url.Values{}
		q.Set("q", topic)
		q.Set("fields", "id,title,image_id")
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(a.pageSize))

		var resp aicSearchResponse
		if err := a.client.GetJSON(ctx, a.baseURL+"/artworks/search?"+q.Encode(), &resp); err != nil {
			return nil, err
		}
		a.pages.limit(resp.Pagination.TotalPages)

		// Past the end of a small result set; try a page that exists
		if len(resp.Data) == 0 && page > resp.Pagination.TotalPages {
			continue
		}

		out := make([]models.Candidate, 0, len(resp.Data))
		for _, hit := range resp.Data {
			out = append(out, models.Candidate{
				Source:   "aic",
				ID:       strconv.Itoa(hit.ID),
				Title:    hit.Title,
				ImageRef: hit.ImageID,
			})
		}
		return out, nil
	}
}

func (a *AIC) Resolve(ctx context.Context, c models.Candidate) (*models.Artwork, error) {
	if c.ImageRef == "" {
		return nil, noImage("aic", c.ID)
	}
	return fetchArtwork(ctx, a.client, c, a.imageBaseURL+"/"+url.PathEscape(c.ImageRef)+"/full/843,/0/default.jpg")
}
