package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/dealworker/helpers"
	"sjsage522/dealworker/internal/browser"
	"sjsage522/dealworker/logger"
	apperrors "sjsage522/dealworker/pkg/errors"
)

// ExtractorOptions tunes result loading and parsing
type ExtractorOptions struct {
	// ScrollWait bounds the wait for new cards after each scroll
	ScrollWait     time.Duration
	DistrictPrefix string

	Logger *logger.Logger
}

// Extractor loads the result list and turns cards into records
type Extractor struct {
	session   browser.Session
	selectors Selectors
	opts      ExtractorOptions
	log       *logger.Logger
}

// NewExtractor creates an extractor for an open session
func NewExtractor(session browser.Session, selectors Selectors, opts ExtractorOptions) *Extractor {
	log := opts.Logger
	if log == nil {
		log = logger.ForExtractor()
	}
	return &Extractor{
		session:   session,
		selectors: selectors,
		opts:      opts,
		log:       log,
	}
}

// LoadAllPages runs exactly n scroll cycles. Each cycle scrolls to the bottom and
// waits until more cards render or ScrollWait elapses.
func (e *Extractor) LoadAllPages(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		before, err := e.session.CountElements(ctx, e.selectors.Cards)
		if err != nil {
			return apperrors.NewExtraction("scroll", "failed to count cards", err)
		}
		if err := e.session.ScrollToBottom(ctx); err != nil {
			return apperrors.NewExtraction("scroll", fmt.Sprintf("scroll cycle %d failed", i+1), err)
		}

		after := before
		err = browser.WaitFor(ctx, e.opts.ScrollWait, func(ctx context.Context) (bool, error) {
			count, err := e.session.CountElements(ctx, e.selectors.Cards)
			after = count
			return count > before, err
		})
		switch {
		case err == nil, errors.Is(err, browser.ErrTimeout):
		case ctx.Err() != nil:
			return apperrors.NewExtraction("scroll", "cancelled while loading results", ctx.Err())
		default:
			return apperrors.NewExtraction("scroll", "failed to count cards", err)
		}

		e.log.Debug().
			Int("cycle", i+1).
			Int("before", before).
			Int("after", after).
			Msg("Scroll cycle done")
	}
	return nil
}

// ExtractCards reads every card on the page. Cards that cannot be read are
// logged and skipped, the rest of the batch continues.
func (e *Extractor) ExtractCards(ctx context.Context) (Batch, error) {
	cards, err := e.session.Cards(ctx, e.selectors.Cards)
	if err != nil {
		return Batch{}, apperrors.NewExtraction("cards", "failed to enumerate cards", err)
	}

	batch := Batch{Cards: len(cards)}
	e.log.Info().Int("cards", len(cards)).Msg("Found result cards")

	for i, card := range cards {
		if card.Err != "" {
			batch.Failed++
			e.log.Error().Int("card", i).Str("error", card.Err).Msg("Failed to read card")
			continue
		}

		text := card.Text
		if strings.TrimSpace(text) == "" && card.HTML != "" {
			text, err = leafText(card.HTML)
			if err != nil {
				batch.Failed++
				e.log.Error().Int("card", i).Err(err).Msg("Failed to parse card markup")
				continue
			}
		}

		lines := helpers.SplitNonEmptyLines(text)
		rec, reason := ParseSegments(lines, e.opts.DistrictPrefix)
		if reason != Accepted {
			batch.Skipped++
			e.log.Debug().
				Int("card", i).
				Int("lines", len(lines)).
				Str("reason", string(reason)).
				Msg("Skipped card")
			continue
		}
		if rec.Quarter == nil {
			e.log.Debug().Int("card", i).Str("date", rec.Date).Msg("Date not parsable, quarter left empty")
		}

		if rec.Categorized() {
			batch.Categorized = append(batch.Categorized, rec)
		} else {
			batch.Uncategorized = append(batch.Uncategorized, rec)
		}
	}

	e.log.Info().
		Int("uncategorized", len(batch.Uncategorized)).
		Int("categorized", len(batch.Categorized)).
		Int("skipped", batch.Skipped).
		Int("failed", batch.Failed).
		Msg("Cards extracted")
	return batch, nil
}

// leafText rebuilds card lines from the text of elements without child elements
func leafText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("HTML parse error: %w", err)
	}

	var lines []string
	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		if t := strings.TrimSpace(s.Text()); t != "" {
			lines = append(lines, t)
		}
	})
	return strings.Join(lines, "\n"), nil
}
