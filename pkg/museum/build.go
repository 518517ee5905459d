package museum

import (
	"fmt"
	"math/rand"

	"canvasfetch/pkg/config"
	"canvasfetch/pkg/httpclient"
	"canvasfetch/pkg/logger"
	"canvasfetch/pkg/ratelimit"
)

// KeyFunc looks up the API key for a source, returning "" when none is stored
type KeyFunc func(source string) string

// BuildOptions carry the run-scoped collaborators shared by all adapters
type BuildOptions struct {
	Keys    KeyFunc
	Counter *httpclient.Counter
	Rand    *rand.Rand
	Logger  logger.Logger
}

type constructor func(Options) Adapter

var constructors = map[string]constructor{
	"met":     func(o Options) Adapter { return NewMet(o) },
	"aic":     func(o Options) Adapter { return NewAIC(o) },
	"cma":     func(o Options) Adapter { return NewCMA(o) },
	"harvard": func(o Options) Adapter { return NewHarvard(o) },
	"rijks":   func(o Options) Adapter { return NewRijks(o) },
}

// NewRegistryFromConfig registers every enabled source in cfg. Each adapter
// gets its own HTTP client and rate limiter; the request counter is shared.
func NewRegistryFromConfig(cfg *config.Config, opts BuildOptions) (*Registry, error) {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	reg := NewRegistry()
	for _, name := range config.SourceNames {
		src := cfg.Source(name)
		if !src.Enabled {
			continue
		}
		build, ok := constructors[name]
		if !ok {
			return nil, fmt.Errorf("no adapter for source %q", name)
		}

		apiKey := src.APIKey
		if apiKey == "" && opts.Keys != nil {
			apiKey = opts.Keys(name)
		}

		client := httpclient.New(httpclient.Options{
			Source:        name,
			Timeout:       cfg.HTTP.Timeout,
			UserAgent:     cfg.HTTP.UserAgent,
			SearchRetries: cfg.HTTP.SearchRetries,
			MaxImageBytes: cfg.HTTP.MaxImageBytes,
			Limiter:       ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute),
			Counter:       opts.Counter,
			Logger:        log,
		})

		adapter := build(Options{
			BaseURL: src.BaseURL,
			APIKey:  apiKey,
			Client:  client,
			Rand:    opts.Rand,
			Logger:  log,
		})
		if err := reg.Register(adapter); err != nil {
			return nil, err
		}
	}

	if len(reg.Names()) == 0 {
		return nil, fmt.Errorf("no museum sources enabled")
	}
	return reg, nil
}
