package scraper

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sjsage522/dealworker/config"
	"sjsage522/dealworker/internal/browser"
	"sjsage522/dealworker/logger"
	apperrors "sjsage522/dealworker/pkg/errors"
)

// Options configures one scrape run
type Options struct {
	TargetURL     string
	From          time.Time
	To            time.Time
	LocationQuery string
	// MinPrice is the minimum price filter; empty leaves the filter untouched
	MinPrice     string
	ScrollCycles int

	Browser        browser.Options
	TypingDelay    time.Duration
	ScrollWait     time.Duration
	DistrictPrefix string
	Selectors      Selectors

	Logger *logger.Logger
}

// OptionsFromConfig resolves run options, including the date window relative to now
func OptionsFromConfig(cfg *config.Config, now time.Time) (Options, error) {
	from, to, err := cfg.DateRange(now)
	if err != nil {
		return Options{}, err
	}
	selectors, err := LoadSelectors(cfg.SelectorsFile)
	if err != nil {
		return Options{}, err
	}

	bopts := browser.DefaultOptions()
	bopts.Headless = cfg.Headless
	bopts.ExecPath = cfg.ChromePath
	bopts.Proxy = cfg.ProxyServer
	bopts.UserAgent = cfg.UserAgent
	bopts.ActionDelay = cfg.ActionDelay
	bopts.ActionTimeout = cfg.ActionTimeout
	bopts.NavigationTimeout = cfg.NavigationTimeout
	bopts.SettleDelay = cfg.SettleDelay

	return Options{
		TargetURL:      cfg.TargetURL,
		From:           from,
		To:             to,
		LocationQuery:  cfg.LocationQuery,
		MinPrice:       cfg.MinPrice,
		ScrollCycles:   cfg.ScrollCycles,
		Browser:        bopts,
		TypingDelay:    cfg.TypingDelay,
		ScrollWait:     cfg.ScrollWait,
		DistrictPrefix: cfg.DistrictPrefix,
		Selectors:      selectors,
	}, nil
}

// Scraper runs the search pipeline against the portal
type Scraper struct {
	opts   Options
	launch browser.Launcher
	log    *logger.Logger
}

// New creates a scraper; launch starts the browser for every run
func New(opts Options, launch browser.Launcher) *Scraper {
	log := opts.Logger
	if log == nil {
		log = logger.ForScraper()
	}
	if launch == nil {
		launch = browser.Launch
	}
	return &Scraper{
		opts:   opts,
		launch: launch,
		log:    log,
	}
}

// Run performs one scrape. The browser is closed on every path once launched.
func (s *Scraper) Run(ctx context.Context) *Result {
	res := &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		States:    []State{StateInitialized},
	}
	log := s.log.WithField("run_id", res.RunID)
	defer func() {
		if err := ctx.Err(); err != nil {
			res.cancel(err)
		}
		s.finish(log, res)
	}()

	session, err := s.launch(ctx, s.opts.Browser)
	if err != nil {
		res.fail(apperrors.NewBrowser("launch", "failed to launch browser", err))
		return res
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close browser")
		}
		res.enter(StateClosed)
	}()
	res.enter(StateBrowserReady)

	s.drive(ctx, log, session, res)
	return res
}

func (s *Scraper) drive(ctx context.Context, log *logger.Logger, session browser.Session, res *Result) {
	if err := session.Open(ctx, s.opts.TargetURL); err != nil {
		res.fail(apperrors.NewNavigation("open", "failed to open "+s.opts.TargetURL, err))
		return
	}

	form := NewFormFiller(session, s.opts.Selectors, FormOptions{
		LocationQuery:  s.opts.LocationQuery,
		TypingDelay:    s.opts.TypingDelay,
		ProbeTimeout:   s.opts.Browser.ActionTimeout / 5,
		ResultsTimeout: s.opts.Browser.ActionTimeout,
		Logger:         s.opts.Logger,
	})

	if err := form.FillDateRange(ctx, s.opts.From, s.opts.To); err != nil {
		res.fail(err)
		return
	}
	res.enter(StateDatesFilled)

	if s.opts.MinPrice == "" {
		log.Info().Msg("Price filter disabled")
	} else if err := form.FillPriceFilter(ctx, s.opts.MinPrice); err != nil {
		log.Warn().Err(err).Msg("Continuing without price filter")
		res.warn(err)
	} else {
		res.enter(StateFiltersApplied)
	}

	if err := form.SubmitSearch(ctx); err != nil {
		log.Warn().Err(err).Msg("Continuing without submitted search")
		res.warn(err)
	} else {
		res.enter(StateSearchSubmitted)
	}

	extractor := NewExtractor(session, s.opts.Selectors, ExtractorOptions{
		ScrollWait:     s.opts.ScrollWait,
		DistrictPrefix: s.opts.DistrictPrefix,
		Logger:         s.opts.Logger,
	})

	if err := extractor.LoadAllPages(ctx, s.opts.ScrollCycles); err != nil {
		log.Warn().Err(err).Msg("Result loading incomplete")
		res.warn(err)
	}

	batch, err := extractor.ExtractCards(ctx)
	if err != nil {
		res.warn(err)
		return
	}
	res.apply(batch)
	res.enter(StateResultsExtracted)

	if batch.Cards == 0 {
		res.warn(ErrNoCards)
		html, err := session.PageHTML(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to capture page snapshot")
			return
		}
		res.Snapshot = html
	}
}

func (s *Scraper) finish(log *logger.Logger, res *Result) {
	res.settle()

	event := log.Info()
	switch res.Status {
	case StatusFatal:
		event = log.Error().Err(res.Err)
	case StatusPartialFailure, StatusCancelled:
		event = log.Warn().Err(res.Err)
	}
	event.
		Str("status", string(res.Status)).
		Int("uncategorized", len(res.Uncategorized)).
		Int("categorized", len(res.Categorized)).
		Int("cards", res.Cards).
		Int("skipped", res.Skipped).
		Dur("duration", res.Duration()).
		Msg("Scrape finished")
}
