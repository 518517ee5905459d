package museum

import (
	"context"
	"net/url"
	"strconv"

	errs "canvasfetch/pkg/errors"
	"canvasfetch/pkg/httpclient"
	"canvasfetch/pkg/logger"
	"canvasfetch/pkg/models"
)

// MetBaseURL is the Metropolitan Museum collection API root
const MetBaseURL = "https://collectionapi.metmuseum.org/public/collection/v1"

type metSearchResponse struct {
	Total     int   `json:"total"`
	ObjectIDs []int `json:"objectIDs"`
}

type metObject struct {
	ObjectID          int    `json:"objectID"`
	Title             string `json:"title"`
	PrimaryImage      string `json:"primaryImage"`
	PrimaryImageSmall string `json:"primaryImageSmall"`
}

// Met searches the Metropolitan Museum. The search endpoint returns every
// matching object id in one response; pages are slices of a shuffled copy.
type Met struct {
	baseURL  string
	pageSize int
	client   *httpclient.Client
	opts     Options
	logger   logger.Logger

	ids    []string
	loaded bool
	pos    int
}

// NewMet creates a Met adapter
func NewMet(opts Options) *Met {
	opts = opts.withDefaults("met", MetBaseURL)
	return &Met{
		baseURL:  opts.BaseURL,
		pageSize: opts.PageSize,
		client:   opts.Client,
		opts:     opts,
		logger:   opts.Logger.WithField("source", "met"),
	}
}

func (m *Met) Name() string { return "met" }

func (m *Met) Search(ctx context.Context, topic string) ([]models.Candidate, error) {
	if !m.loaded {
		if err := m.loadIDs(ctx, topic); err != nil {
			return nil, err
		}
	}

	if m.pos >= len(m.ids) {
		return nil, nil
	}
	end := m.pos + m.pageSize
	if end > len(m.ids) {
		end = len(m.ids)
	}

	page := make([]models.Candidate, 0, end-m.pos)
	for _, id := range m.ids[m.pos:end] {
		page = append(page, models.Candidate{Source: "met", ID: id})
	}
	m.pos = end
	return page, nil
}

func (m *Met) loadIDs(ctx context.Context, topic string) error {
	q := url.Values{}
	q.Set("q", topic)
	q.Set("medium", "Paintings")
	q.Set("hasImages", "true")

	var resp metSearchResponse
	if err := m.client.GetJSON(ctx, m.baseURL+"/search?"+q.Encode(), &resp); err != nil {
		return err
	}

	ids := make([]string, 0, len(resp.ObjectIDs))
	for _, id := range resp.ObjectIDs {
		ids = append(ids, strconv.Itoa(id))
	}
	m.opts.Rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	m.ids = ids
	m.loaded = true
	m.logger.DebugWithFields("Met search loaded", map[string]interface{}{
		"topic": topic,
		"total": len(ids),
	})
	return nil
}

// Resolve looks up the object record for its image URL, then downloads it.
// Neither request is retried.
func (m *Met) Resolve(ctx context.Context, c models.Candidate) (*models.Artwork, error) {
	var obj metObject
	if err := m.client.GetJSONOnce(ctx, m.baseURL+"/objects/"+url.PathEscape(c.ID), &obj); err != nil {
		// Ids the search index still lists can 404 on the object endpoint
		if errs.Is(err, errs.KindPermanent) {
			return nil, errs.Wrap(errs.KindNoImage, "met", err, "object record unavailable")
		}
		return nil, err
	}

	imageURL := obj.PrimaryImage
	if imageURL == "" {
		imageURL = obj.PrimaryImageSmall
	}
	if imageURL == "" {
		return nil, noImage("met", c.ID)
	}

	c.Title = obj.Title
	c.ImageRef = imageURL
	return fetchArtwork(ctx, m.client, c, imageURL)
}
