package museum

import (
	"context"
	"net/url"
	"strconv"

	"canvasfetch/pkg/httpclient"
	"canvasfetch/pkg/models"
)

// CMABaseURL is the Cleveland Museum of Art open access API root
const CMABaseURL = "https://openaccess-api.clevelandart.org/api"

const cmaMaxPages = 100

type cmaSearchResponse struct {
	Info struct {
		Total int `json:"total"`
	} `json:"info"`
	Data []struct {
		ID     int    `json:"id"`
		Title  string `json:"title"`
		Images *struct {
			Web *struct {
				URL string `json:"url"`
			} `json:"web"`
		} `json:"images"`
	} `json:"data"`
}

// CMA searches the Cleveland Museum of Art open access collection
type CMA struct {
	baseURL  string
	pageSize int
	client   *httpclient.Client
	pages    *pager
}

// NewCMA creates a Cleveland Museum of Art adapter
func NewCMA(opts Options) *CMA {
	opts = opts.withDefaults("cma", CMABaseURL)
	return &CMA{
		baseURL:  opts.BaseURL,
		pageSize: opts.PageSize,
		client:   opts.Client,
		pages:    newPager(opts.Rand, cmaMaxPages),
	}
}

func (c *CMA) Name() string { return "cma" }

func (c *CMA) Search(ctx context.Context, topic string) ([]models.Candidate, error) {
	for {
		page, ok := c.pages.next()
		if !ok {
			return nil, nil
		}

		q := url.Values{}
		q.Set("q", topic)
		q.Set("type", "Painting")
		q.Set("has_image", "1")
		q.Set("limit", strconv.Itoa(c.pageSize))
		q.Set("skip", strconv.Itoa((page-1)*c.pageSize))

		var resp cmaSearchResponse
		if err := c.client.GetJSON(ctx, c.baseURL+"/artworks/?"+q.Encode(), &resp); err != nil {
			return nil, err
		}
		total := pagesFor(resp.Info.Total, c.pageSize)
		c.pages.limit(total)

		if len(resp.Data) == 0 && page > total {
			continue
		}

		out := make([]models.Candidate, 0, len(resp.Data))
		for _, item := range resp.Data {
			cand := models.Candidate{Source: "cma", ID: strconv.Itoa(item.ID), Title: item.Title}
			if item.Images != nil && item.Images.Web != nil {
				cand.ImageRef = item.Images.Web.URL
			}
			out = append(out, cand)
		}
		return out, nil
	}
}

func (c *CMA) Resolve(ctx context.Context, cand models.Candidate) (*models.Artwork, error) {
	if cand.ImageRef == "" {
		return nil, noImage("cma", cand.ID)
	}
	return fetchArtwork(ctx, c.client, cand, cand.ImageRef)
}
