package acquire

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	errs "canvasfetch/pkg/errors"
	"canvasfetch/pkg/imageinfo"
	"canvasfetch/pkg/logger"
	"canvasfetch/pkg/models"
	"canvasfetch/pkg/museum"
	"canvasfetch/pkg/orientation"
	"canvasfetch/pkg/storage"
)

const (
	DefaultBudget   = 30
	DefaultMaxPages = 10
)

// State is the position of a session in its state machine
type State int

const (
	Searching State = iota
	Evaluating
	Done
	Exhausted
)

func (s State) String() string {
	switch s {
	case Searching:
		return "searching"
	case Evaluating:
		return "evaluating"
	case Done:
		return "done"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Stats are the per-session counters
type Stats struct {
	Pages     int `json:"pages"`
	Skipped   int `json:"skipped"`
	Missing   int `json:"missing"`
	Transient int `json:"transient"`
	Rejected  int `json:"rejected"`
	// Fetched counts candidates fetched and classified; it is the budget
	Fetched int `json:"fetched"`
}

func (s Stats) fields() map[string]interface{} {
	return map[string]interface{}{
		"pages":     s.Pages,
		"skipped":   s.Skipped,
		"missing":   s.Missing,
		"transient": s.Transient,
		"rejected":  s.Rejected,
		"fetched":   s.Fetched,
	}
}

// SessionConfig holds everything one session needs
type SessionConfig struct {
	Topic       string
	Orientation orientation.Orientation
	// Budget caps fetched-and-classified candidates
	Budget int
	// MaxPages caps search pages requested
	MaxPages int
	Ledger   Ledger
	Store    ImageStore
	Catalog  Catalog
	Rand     *rand.Rand
	Logger   logger.Logger
}

// Session drives one adapter until it accepts an image or gives up
type Session struct {
	adapter museum.Adapter
	cfg     SessionConfig
	log     logger.Logger

	state         State
	stats         Stats
	lastTransient error
}

// NewSession creates a session for adapter
func NewSession(adapter museum.Adapter, cfg SessionConfig) *Session {
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultBudget
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Session{
		adapter: adapter,
		cfg:     cfg,
		log:     cfg.Logger.WithField("source", adapter.Name()),
		state:   Searching,
	}
}

// State returns the current state
func (s *Session) State() State { return s.state }

// Stats returns the counters collected so far
func (s *Session) Stats() Stats { return s.stats }

// Run executes the session. It returns a Result when an image is accepted,
// an adapter_exhausted error when the budget or the pages run out, and any
// other error for hard failures such as missing credentials or a ledger
// that cannot be written.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	source := s.adapter.Name()
	defer func() {
		logger.LogSessionEnd(s.log, source, s.state.String(), s.stats.fields())
	}()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.stats.Pages >= s.cfg.MaxPages {
			return nil, s.exhaust(fmt.Sprintf("page cap of %d reached", s.cfg.MaxPages))
		}

		s.state = Searching
		s.stats.Pages++
		page, err := s.adapter.Search(ctx, s.cfg.Topic)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errs.Is(err, errs.KindCredentials) {
				return nil, err
			}
			s.lastTransient = err
			s.log.WithError(err).WarnWithFields("Search failed", map[string]interface{}{
				"page": s.stats.Pages,
			})
			continue
		}
		if len(page) == 0 {
			return nil, s.exhaust("no more candidates")
		}

		s.cfg.Rand.Shuffle(len(page), func(i, j int) { page[i], page[j] = page[j], page[i] })

		s.state = Evaluating
		for _, cand := range page {
			result, err := s.evaluate(ctx, cand)
			if err != nil {
				return nil, err
			}
			if result != nil {
				s.state = Done
				return result, nil
			}
			if s.stats.Fetched >= s.cfg.Budget {
				return nil, s.exhaust(fmt.Sprintf("budget of %d spent", s.cfg.Budget))
			}
		}
	}
}

// evaluate classifies one candidate. A nil result and nil error mean
// "move on to the next candidate".
func (s *Session) evaluate(ctx context.Context, cand models.Candidate) (*Result, error) {
	source := s.adapter.Name()
	if cand.Source == "" {
		cand.Source = source
	}

	if s.cfg.Ledger.IsSeen(cand.Source, cand.ID) {
		s.stats.Skipped++
		return nil, nil
	}

	art, err := s.adapter.Resolve(ctx, cand)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		switch errs.KindOf(err) {
		case errs.KindNoImage:
			s.stats.Missing++
			return nil, s.reject(cand, "no_image")
		case errs.KindTransient:
			s.stats.Transient++
			s.lastTransient = err
			s.log.WithError(err).DebugWithFields("Transient failure, skipping candidate", map[string]interface{}{
				"item_id": cand.ID,
			})
			return nil, nil
		case errs.KindCredentials:
			return nil, err
		default:
			// Fetched but unusable: withheld, too large or a dead link
			s.stats.Fetched++
			s.stats.Rejected++
			return nil, s.reject(cand, string(errs.KindOf(err)))
		}
	}

	s.stats.Fetched++

	info, err := imageinfo.Decode(art.Data)
	if err != nil {
		s.stats.Rejected++
		return nil, s.reject(cand, "not_an_image")
	}

	if !s.cfg.Orientation.Matches(info.Width, info.Height) {
		s.stats.Rejected++
		return nil, s.reject(cand, "orientation")
	}

	return s.accept(art, info)
}

func (s *Session) reject(cand models.Candidate, reason string) error {
	if _, err := s.cfg.Ledger.Record(cand.Source, cand.ID, models.Rejected); err != nil {
		return errs.Wrap(errs.KindPersistence, cand.Source, err,
			fmt.Sprintf("record rejection of %s", cand.ID))
	}
	logger.LogClassification(s.log, cand.Source, cand.ID, string(models.Rejected), reason)
	return nil
}

// accept writes the image first and then records it, so a crash in between
// leaves a file that reconciliation can recover
func (s *Session) accept(art *models.Artwork, info imageinfo.Info) (*Result, error) {
	name := storage.FileName(art.Title, art.Source, art.ID, storage.ExtensionFor(info.Format))
	path, existed, err := s.cfg.Store.Save(name, art.Data)
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, art.Source, err, "save "+name)
	}

	if _, err := s.cfg.Ledger.Record(art.Source, art.ID, models.Accepted); err != nil {
		return nil, errs.Wrap(errs.KindPersistence, art.Source, err,
			fmt.Sprintf("record acceptance of %s", art.ID))
	}
	logger.LogClassification(s.log, art.Source, art.ID, string(models.Accepted), "match")

	if s.cfg.Catalog != nil {
		item := models.CatalogItem{
			Filename: name,
			Source:   art.Source,
			ID:       art.ID,
			Title:    art.Title,
			URL:      art.URL,
			Width:    info.Width,
			Height:   info.Height,
			Format:   info.Format,
			Size:     int64(len(art.Data)),
		}
		if err := s.cfg.Catalog.Add(item); err != nil {
			s.log.WithError(err).Warn("Failed to update catalog")
		}
	}

	return &Result{
		Path:    path,
		Source:  art.Source,
		ID:      art.ID,
		Title:   art.Title,
		Width:   info.Width,
		Height:  info.Height,
		Existed: existed,
	}, nil
}

func (s *Session) exhaust(reason string) error {
	s.state = Exhausted
	source := s.adapter.Name()

	// Nothing but transient failures: surface the last cause
	if s.lastTransient != nil && s.stats.Fetched == 0 && s.stats.Skipped == 0 && s.stats.Missing == 0 {
		return errs.Wrap(errs.KindAdapterExhausted, source, s.lastTransient, reason)
	}
	return errs.New(errs.KindAdapterExhausted, source, reason)
}
