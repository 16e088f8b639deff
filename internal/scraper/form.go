package scraper

import (
	"context"
	"errors"
	"strconv"
	"time"

	"sjsage522/dealworker/internal/browser"
	"sjsage522/dealworker/logger"
	apperrors "sjsage522/dealworker/pkg/errors"
)

// FormOptions tunes the search form interaction
type FormOptions struct {
	LocationQuery string
	// TypingDelay is the pause between two typed keys
	TypingDelay time.Duration
	// SuggestionTimeout bounds the wait for the location autocomplete
	SuggestionTimeout time.Duration
	// ProbeTimeout bounds each submit locator strategy
	ProbeTimeout time.Duration
	// ResultsTimeout bounds the wait for the first result card after submit
	ResultsTimeout time.Duration

	Logger *logger.Logger
}

// Strategy is one attempt at locating the search button
type Strategy struct {
	Name     string
	Selector string
}

// FormFiller drives the search form of the portal
type FormFiller struct {
	session    browser.Session
	selectors  Selectors
	opts       FormOptions
	strategies []Strategy
	log        *logger.Logger
}

// NewFormFiller creates a form filler for an open session
func NewFormFiller(session browser.Session, selectors Selectors, opts FormOptions) *FormFiller {
	log := opts.Logger
	if log == nil {
		log = logger.ForForm()
	}
	if opts.SuggestionTimeout <= 0 {
		opts.SuggestionTimeout = 5 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 3 * time.Second
	}
	if opts.ResultsTimeout <= 0 {
		opts.ResultsTimeout = 15 * time.Second
	}

	strategies := make([]Strategy, 0, len(selectors.Submit))
	for i, sel := range selectors.Submit {
		strategies = append(strategies, Strategy{Name: "submit-" + strconv.Itoa(i+1), Selector: sel})
	}

	return &FormFiller{
		session:    session,
		selectors:  selectors,
		opts:       opts,
		strategies: strategies,
		log:        log,
	}
}

// FillDateRange fills the from and to pickers. The location query is entered
// right after the to-year input, where the widget moves focus to the city box.
func (f *FormFiller) FillDateRange(ctx context.Context, from, to time.Time) error {
	f.log.Info().
		Str("from", from.Format("02/01/2006")).
		Str("to", to.Format("02/01/2006")).
		Msg("Filling date range")

	if err := f.fillDate(ctx, f.selectors.From, from, nil); err != nil {
		return apperrors.NewForm("from_date", "failed to fill from date", err)
	}
	if err := f.fillDate(ctx, f.selectors.To, to, f.enterLocation); err != nil {
		return apperrors.NewForm("to_date", "failed to fill to date", err)
	}

	f.log.Info().Msg("Date range filled")
	return nil
}

// fillDate fills year, month and day; afterYear runs between year and month
func (f *FormFiller) fillDate(ctx context.Context, picker DatePicker, date time.Time, afterYear func(context.Context) error) error {
	if err := f.fillInput(ctx, picker.Year, strconv.Itoa(date.Year())); err != nil {
		return err
	}
	if afterYear != nil {
		if err := afterYear(ctx); err != nil {
			return err
		}
	}
	if err := f.fillInput(ctx, picker.Month, strconv.Itoa(int(date.Month()))); err != nil {
		return err
	}
	return f.fillInput(ctx, picker.Day, strconv.Itoa(date.Day()))
}

// fillInput replaces the content of a keystroke-driven input
func (f *FormFiller) fillInput(ctx context.Context, selector, value string) error {
	el, err := f.session.Locate(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Click(ctx); err != nil {
		return err
	}
	if err := f.session.SelectAll(ctx); err != nil {
		return err
	}
	if err := f.session.Press(ctx, browser.KeyDelete); err != nil {
		return err
	}
	return f.session.Type(ctx, value, f.opts.TypingDelay)
}

func (f *FormFiller) enterLocation(ctx context.Context) error {
	if err := f.session.Press(ctx, browser.KeyTab); err != nil {
		return err
	}
	if err := f.session.Type(ctx, f.opts.LocationQuery, f.opts.TypingDelay); err != nil {
		return err
	}

	if f.selectors.LocationSuggestion != "" {
		err := browser.WaitFor(ctx, f.opts.SuggestionTimeout, func(ctx context.Context) (bool, error) {
			n, err := f.session.CountElements(ctx, f.selectors.LocationSuggestion)
			return n > 0, err
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Enter still picks the first match when the dropdown is rendered elsewhere
			f.log.Warn().Err(err).Str("query", f.opts.LocationQuery).Msg("Location suggestion not seen")
		}
	}

	return f.session.Press(ctx, browser.KeyEnter)
}

// FillPriceFilter sets the minimum price. The input sits below the fold.
func (f *FormFiller) FillPriceFilter(ctx context.Context, minPrice string) error {
	if err := f.session.ScrollViewport(ctx); err != nil {
		return apperrors.NewFilter("min_price", "failed to scroll to price filter", err)
	}

	el, err := f.session.Locate(ctx, f.selectors.MinPrice)
	if err != nil {
		return apperrors.NewFilter("min_price", "price filter not found", err)
	}
	if err := el.Fill(ctx, minPrice); err != nil {
		return apperrors.NewFilter("min_price", "failed to fill price filter", err)
	}
	if err := f.session.Press(ctx, browser.KeyEnter); err != nil {
		return apperrors.NewFilter("min_price", "failed to confirm price filter", err)
	}

	f.log.Info().Str("min_price", minPrice).Msg("Price filter applied")
	return nil
}

// actionable is the predicate every submit strategy has to pass
func actionable(ctx context.Context, el browser.Element) bool {
	return el.IsVisible(ctx)
}

// SubmitSearch clicks the first actionable search button and waits for results
func (f *FormFiller) SubmitSearch(ctx context.Context) error {
	button, strategy, err := f.findSubmit(ctx)
	if err != nil {
		return apperrors.NewSubmit("submit", "no search button found", err)
	}

	if err := button.ScrollIntoView(ctx); err != nil {
		return apperrors.NewSubmit("submit", "failed to scroll to search button", err)
	}
	if err := button.Click(ctx); err != nil {
		return apperrors.NewSubmit("submit", "failed to click search button", err)
	}
	f.log.Info().Str("strategy", strategy.Name).Msg("Search submitted")

	err = browser.WaitFor(ctx, f.opts.ResultsTimeout, func(ctx context.Context) (bool, error) {
		n, err := f.session.CountElements(ctx, f.selectors.Cards)
		return n > 0, err
	})
	if err != nil {
		if ctx.Err() != nil {
			return apperrors.NewSubmit("submit", "cancelled while waiting for results", ctx.Err())
		}
		// An empty result list is reported by the extractor
		f.log.Warn().Err(err).Msg("No result cards after submit")
	}
	return nil
}

var errNoStrategy = errors.New("no locator strategy matched an actionable element")

func (f *FormFiller) findSubmit(ctx context.Context) (browser.Element, Strategy, error) {
	for _, s := range f.strategies {
		probeCtx, cancel := context.WithTimeout(ctx, f.opts.ProbeTimeout)
		el, err := f.session.Locate(probeCtx, s.Selector)
		if err == nil && !actionable(probeCtx, el) {
			err = errors.New("element not visible")
		}
		cancel()

		if err == nil {
			return el, s, nil
		}
		if ctx.Err() != nil {
			return nil, Strategy{}, ctx.Err()
		}
		f.log.Debug().Str("strategy", s.Name).Err(err).Msg("Submit strategy failed")
	}
	return nil, Strategy{}, errNoStrategy
}
