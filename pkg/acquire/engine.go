package acquire

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	errs "canvasfetch/pkg/errors"
	"canvasfetch/pkg/httpclient"
	"canvasfetch/pkg/logger"
	"canvasfetch/pkg/museum"
	"canvasfetch/pkg/orientation"
)

// Request selects what the engine should acquire
type Request struct {
	Orientation orientation.Orientation
	// Source restricts the run to one adapter; empty means all
	Source string
}

// Result describes the image the engine produced
type Result struct {
	Path    string `json:"path"`
	Source  string `json:"source"`
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Offline bool   `json:"offline"`
	// Existed is true when the target file was already on disk
	Existed  bool   `json:"existed"`
	Requests int    `json:"requests"`
	RunID    string `json:"run_id"`
}

// Options configure an Engine
type Options struct {
	Registry *museum.Registry
	Ledger   Ledger
	Store    ImageStore
	Catalog  Catalog
	// Offline is consulted once after every adapter failed; nil disables it
	Offline  OfflineCycler
	Counter  *httpclient.Counter
	Topic    string
	Budget   int
	MaxPages int
	Rand     *rand.Rand
	Logger   logger.Logger
}

// Engine runs one session per adapter until one of them accepts an image
type Engine struct {
	opts Options
	rng  *rand.Rand
	log  logger.Logger
}

// NewEngine creates an engine
func NewEngine(opts Options) *Engine {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	return &Engine{opts: opts, rng: rng, log: log}
}

// Acquire produces exactly one image or an error. Adapters are tried in a
// random order; the offline cycler is the last resort.
func (e *Engine) Acquire(ctx context.Context, req Request) (*Result, error) {
	runID := uuid.NewString()
	log := e.log.WithFields(map[string]interface{}{
		"run_id":      runID,
		"orientation": req.Orientation.String(),
	})

	adapters, err := e.opts.Registry.Select(req.Source)
	if err != nil {
		return nil, err
	}
	e.rng.Shuffle(len(adapters), func(i, j int) { adapters[i], adapters[j] = adapters[j], adapters[i] })

	var lastErr error
	for _, adapter := range adapters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		session := NewSession(adapter, SessionConfig{
			Topic:       e.opts.Topic,
			Orientation: req.Orientation,
			Budget:      e.opts.Budget,
			MaxPages:    e.opts.MaxPages,
			Ledger:      e.opts.Ledger,
			Store:       e.opts.Store,
			Catalog:     e.opts.Catalog,
			Rand:        e.rng,
			Logger:      log,
		})

		result, err := session.Run(ctx)
		if err == nil {
			result.RunID = runID
			result.Requests = e.opts.Counter.Value()
			log.InfoWithFields("Accepted artwork", map[string]interface{}{
				"source":  result.Source,
				"item_id": result.ID,
				"path":    result.Path,
			})
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Nothing further could be recorded, so no other source is tried
		if errs.Is(err, errs.KindPersistence) {
			log.WithError(err).Error("Cannot persist decisions, stopping")
			return nil, err
		}

		lastErr = err
		if errs.Is(err, errs.KindAdapterExhausted) {
			log.WithError(err).Info("Source exhausted, moving on")
		} else {
			log.WithError(err).WarnWithFields("Source failed", map[string]interface{}{
				"source": adapter.Name(),
			})
		}
	}

	if e.opts.Offline == nil {
		if lastErr == nil {
			return nil, errs.New(errs.KindEngineExhausted, "", "no sources to try")
		}
		return nil, errs.Wrap(errs.KindEngineExhausted, "", lastErr, "every source failed")
	}

	log.Info("Every source failed, falling back to a local image")
	sel, err := e.opts.Offline.Select(req.Orientation)
	if err != nil {
		return nil, err
	}

	return &Result{
		Path:     sel.Path,
		Source:   sel.Source,
		ID:       sel.ID,
		Width:    sel.Width,
		Height:   sel.Height,
		Offline:  true,
		Existed:  true,
		Requests: e.opts.Counter.Value(),
		RunID:    runID,
	}, nil
}
