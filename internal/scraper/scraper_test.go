package scraper

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/dealworker/config"
	"sjsage522/dealworker/internal/browser"
	apperrors "sjsage522/dealworker/pkg/errors"
)

func testOptions(buf *bytes.Buffer) Options {
	bopts := browser.DefaultOptions()
	bopts.ActionTimeout = 50 * time.Millisecond

	return Options{
		TargetURL:      "https://portal.example/transactions-info",
		From:           time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC),
		To:             time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC),
		LocationQuery:  "مدينة الرياض",
		MinPrice:       "1",
		ScrollCycles:   2,
		Browser:        bopts,
		ScrollWait:     5 * time.Millisecond,
		DistrictPrefix: prefix,
		Selectors:      DefaultSelectors(),
		Logger:         testLogger(buf),
	}
}

// readySession returns a session where every form control works
func readySession(sel Selectors) *MockSession {
	session := NewMockSession().WithFormElements(sel)
	session.AddElement(sel.Submit[0], "search-button", true)
	session.cards = []browser.Card{
		{Text: basicSaleCard("الملز", "1,000,000", "15/11/2023")},
		{Text: categorizedSaleCard("النرجس", "سكني", "02/02/2024")},
	}
	return session
}

func TestRunCompleted(t *testing.T) {
	var buf bytes.Buffer
	opts := testOptions(&buf)
	session := readySession(opts.Selectors)

	res := New(opts, launcherFor(session)).Run(context.Background())

	assert.Equal(t, StatusCompleted, res.Status)
	assert.NoError(t, res.Err)
	assert.Empty(t, res.Warnings)
	assert.Len(t, res.Uncategorized, 1)
	assert.Len(t, res.Categorized, 1)
	assert.Equal(t, 2, res.Records())
	assert.Equal(t, 2, res.Cards)
	assert.Equal(t, []State{
		StateInitialized,
		StateBrowserReady,
		StateDatesFilled,
		StateFiltersApplied,
		StateSearchSubmitted,
		StateResultsExtracted,
		StateClosed,
	}, res.States)
	assert.Equal(t, 1, session.closed)
	assert.Equal(t, 2, session.scrolls)

	_, err := uuid.Parse(res.RunID)
	assert.NoError(t, err)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
	assert.Empty(t, res.Snapshot)
}

func TestRunPriceFailureStillSubmitsAndExtracts(t *testing.T) {
	var buf bytes.Buffer
	opts := testOptions(&buf)
	session := readySession(opts.Selectors)
	session.elements[opts.Selectors.MinPrice].fillErr = errors.New("element is detached")

	res := New(opts, launcherFor(session)).Run(context.Background())

	assert.Equal(t, StatusPartialFailure, res.Status)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, apperrors.ErrorTypeFilter, apperrors.TypeOf(res.Warnings[0]))

	assert.False(t, res.Reached(StateFiltersApplied))
	assert.True(t, res.Reached(StateSearchSubmitted))
	assert.True(t, res.Reached(StateResultsExtracted))
	assert.True(t, res.Reached(StateClosed))
	assert.Contains(t, session.actions, "click search-button")
	assert.Equal(t, 2, res.Records())
}

func TestRunMissingSubmitIsPartial(t *testing.T) {
	var buf bytes.Buffer
	opts := testOptions(&buf)
	session := readySession(opts.Selectors)
	delete(session.elements, opts.Selectors.Submit[0])

	res := New(opts, launcherFor(session)).Run(context.Background())

	assert.Equal(t, StatusPartialFailure, res.Status)
	assert.Equal(t, apperrors.ErrorTypeSubmit, apperrors.TypeOf(res.Err))
	assert.False(t, res.Reached(StateSearchSubmitted))
	assert.True(t, res.Reached(StateResultsExtracted))
	assert.Equal(t, 2, res.Records())
}

func TestRunDateFailureIsFatalAndCloses(t *testing.T) {
	var buf bytes.Buffer
	opts := testOptions(&buf)
	session := readySession(opts.Selectors)
	delete(session.elements, opts.Selectors.From.Day)

	res := New(opts, launcherFor(session)).Run(context.Background())

	assert.Equal(t, StatusFatal, res.Status)
	assert.True(t, apperrors.IsFatal(res.Err))
	assert.Equal(t, apperrors.ErrorTypeForm, apperrors.TypeOf(res.Err))
	assert.Equal(t, []State{StateInitialized, StateBrowserReady, StateClosed}, res.States)
	assert.Equal(t, 1, session.closed)
	assert.Zero(t, res.Records())
}

func TestRunNavigationFailureIsFatal(t *testing.T) {
	var buf bytes.Buffer
	opts := testOptions(&buf)
	session := readySession(opts.Selectors)
	session.openErr = errors.New("net::ERR_NAME_NOT_RESOLVED")

	res := New(opts, launcherFor(session)).Run(context.Background())

	assert.Equal(t, StatusFatal, res.Status)
	assert.Equal(t, apperrors.ErrorTypeNavigation, apperrors.TypeOf(res.Err))
	assert.True(t, res.Reached(StateBrowserReady))
	assert.True(t, res.Reached(StateClosed))
	assert.Equal(t, 1, session.closed)
}

func TestRunLaunchFailure(t *testing.T) {
	var buf bytes.Buffer
	launch := func(ctx context.Context, opts browser.Options) (browser.Session, error) {
		return nil, errors.New("chrome not found")
	}

	res := New(testOptions(&buf), launch).Run(context.Background())

	assert.Equal(t, StatusFatal, res.Status)
	assert.Equal(t, apperrors.ErrorTypeBrowser, apperrors.TypeOf(res.Err))
	assert.Equal(t, []State{StateInitialized}, res.States)
	assert.Contains(t, buf.String(), "Scrape finished")
}

func TestRunCancelledBeforeLaunch(t *testing.T) {
	var buf bytes.Buffer
	launch := func(ctx context.Context, opts browser.Options) (browser.Session, error) {
		return nil, ctx.Err()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := New(testOptions(&buf), launch).Run(ctx)

	assert.Equal(t, StatusCancelled, res.Status)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, []State{StateInitialized}, res.States)
}

func TestRunCancelledMidRunStillCloses(t *testing.T) {
	var buf bytes.Buffer
	opts := testOptions(&buf)
	session := readySession(opts.Selectors)
	ctx, cancel := context.WithCancel(context.Background())
	session.openErr = context.Canceled
	cancel()

	res := New(opts, launcherFor(session)).Run(ctx)

	assert.Equal(t, StatusCancelled, res.Status)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, apperrors.ErrorTypeNavigation, apperrors.TypeOf(res.Err))
	assert.True(t, res.Reached(StateClosed))
	assert.Equal(t, 1, session.closed)
	assert.NotContains(t, buf.String(), `"level":"error"`)
}

func TestRunNoCards(t *testing.T) {
	var buf bytes.Buffer
	opts := testOptions(&buf)
	session := readySession(opts.Selectors)
	session.cards = nil

	res := New(opts, launcherFor(session)).Run(context.Background())

	assert.Equal(t, StatusPartialFailure, res.Status)
	assert.True(t, res.NoCards())
	assert.ErrorIs(t, res.Err, ErrNoCards)
	assert.Equal(t, session.html, res.Snapshot)
	assert.True(t, res.Reached(StateResultsExtracted))
}

func TestRunWithoutPriceFilter(t *testing.T) {
	var buf bytes.Buffer
	opts := testOptions(&buf)
	opts.MinPrice = ""
	session := readySession(opts.Selectors)

	res := New(opts, launcherFor(session)).Run(context.Background())

	assert.Equal(t, StatusCompleted, res.Status)
	assert.False(t, res.Reached(StateFiltersApplied))
	assert.NotContains(t, session.actions, "scroll-viewport")
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		TargetURL:      "https://portal.example/transactions-info",
		LocationQuery:  "مدينة جدة",
		MinPrice:       "100",
		ScrollCycles:   3,
		Headless:       false,
		ActionTimeout:  20 * time.Second,
		ScrollWait:     time.Second,
		DistrictPrefix: "جدة ,",
	}
	now := time.Date(2024, time.March, 10, 15, 4, 5, 0, time.UTC)

	opts, err := OptionsFromConfig(cfg, now)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC), opts.From)
	assert.Equal(t, time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC), opts.To)
	assert.Equal(t, "مدينة جدة", opts.LocationQuery)
	assert.False(t, opts.Browser.Headless)
	assert.Equal(t, 20*time.Second, opts.Browser.ActionTimeout)
	assert.Equal(t, DefaultSelectors(), opts.Selectors)
}
