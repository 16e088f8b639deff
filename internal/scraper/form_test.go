package scraper

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/dealworker/internal/browser"
	apperrors "sjsage522/dealworker/pkg/errors"
)

func newTestForm(session browser.Session, sel Selectors, buf *bytes.Buffer) *FormFiller {
	return NewFormFiller(session, sel, FormOptions{
		LocationQuery:     "مدينة الرياض",
		SuggestionTimeout: 20 * time.Millisecond,
		ProbeTimeout:      20 * time.Millisecond,
		ResultsTimeout:    20 * time.Millisecond,
		Logger:            testLogger(buf),
	})
}

func TestFillDateRangeOrder(t *testing.T) {
	var buf bytes.Buffer
	sel := DefaultSelectors()
	session := NewMockSession().WithFormElements(sel)

	from := time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

	err := newTestForm(session, sel, &buf).FillDateRange(context.Background(), from, to)
	require.NoError(t, err)

	fill := func(name, value string) []string {
		return []string{"click " + name, "select-all", "press delete", "type " + value}
	}
	var want []string
	want = append(want, fill("from-year", "2024")...)
	want = append(want, fill("from-month", "3")...)
	want = append(want, fill("from-day", "9")...)
	want = append(want, fill("to-year", "2024")...)
	want = append(want, "press tab", "type مدينة الرياض", "press enter")
	want = append(want, fill("to-month", "3")...)
	want = append(want, fill("to-day", "10")...)

	assert.Equal(t, want, session.actions)
	assert.NotContains(t, buf.String(), "Location suggestion not seen")
}

func TestFillDateRangeWithoutSuggestion(t *testing.T) {
	var buf bytes.Buffer
	sel := DefaultSelectors()
	session := NewMockSession().WithFormElements(sel)
	delete(session.elements, sel.LocationSuggestion)

	day := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	err := newTestForm(session, sel, &buf).FillDateRange(context.Background(), day, day)
	require.NoError(t, err)

	assert.Contains(t, session.actions, "press enter")
	assert.Contains(t, buf.String(), "Location suggestion not seen")
}

func TestFillDateRangeFailureIsFatal(t *testing.T) {
	var buf bytes.Buffer
	sel := DefaultSelectors()
	session := NewMockSession().WithFormElements(sel)
	delete(session.elements, sel.To.Month)

	day := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	err := newTestForm(session, sel, &buf).FillDateRange(context.Background(), day, day)
	require.Error(t, err)

	assert.Equal(t, apperrors.ErrorTypeForm, apperrors.TypeOf(err))
	assert.True(t, apperrors.IsFatal(err))
	assert.ErrorIs(t, err, errNotFound)
}

func TestFillPriceFilter(t *testing.T) {
	var buf bytes.Buffer
	sel := DefaultSelectors()
	session := NewMockSession().WithFormElements(sel)

	require.NoError(t, newTestForm(session, sel, &buf).FillPriceFilter(context.Background(), "1"))
	assert.Equal(t, []string{"scroll-viewport", "fill min-price 1", "press enter"}, session.actions)
}

func TestFillPriceFilterFailureIsRecoverable(t *testing.T) {
	var buf bytes.Buffer
	sel := DefaultSelectors()
	session := NewMockSession().WithFormElements(sel)
	session.elements[sel.MinPrice].fillErr = errors.New("element is not editable")

	err := newTestForm(session, sel, &buf).FillPriceFilter(context.Background(), "1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeFilter, apperrors.TypeOf(err))
	assert.False(t, apperrors.IsFatal(err))
}

func TestSubmitSearchFallsThroughStrategies(t *testing.T) {
	var buf bytes.Buffer
	sel := DefaultSelectors()
	session := NewMockSession()
	// First strategy does not resolve, second resolves hidden, third is clickable
	session.AddElement(sel.Submit[1], "hidden-button", false)
	session.AddElement(sel.Submit[2], "search-button", true)

	err := newTestForm(session, sel, &buf).SubmitSearch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, sel.Submit, session.located)
	assert.Equal(t, []string{"scroll-into-view search-button", "click search-button"}, session.actions)
}

func TestSubmitSearchPrefersFirstStrategy(t *testing.T) {
	var buf bytes.Buffer
	sel := DefaultSelectors()
	session := NewMockSession()
	session.AddElement(sel.Submit[0], "exact-button", true)
	session.AddElement(sel.Submit[2], "search-button", true)
	session.cards = []browser.Card{{Text: "x"}}

	require.NoError(t, newTestForm(session, sel, &buf).SubmitSearch(context.Background()))

	assert.Equal(t, sel.Submit[:1], session.located)
	assert.Contains(t, session.actions, "click exact-button")
	assert.NotContains(t, buf.String(), "No result cards after submit")
}

func TestSubmitSearchNoStrategyIsRecoverable(t *testing.T) {
	var buf bytes.Buffer
	sel := DefaultSelectors()
	session := NewMockSession()
	session.AddElement(sel.Submit[0], "hidden-button", false)

	err := newTestForm(session, sel, &buf).SubmitSearch(context.Background())
	require.Error(t, err)

	assert.Equal(t, apperrors.ErrorTypeSubmit, apperrors.TypeOf(err))
	assert.False(t, apperrors.IsFatal(err))
	assert.ErrorIs(t, err, errNoStrategy)
	assert.Empty(t, session.actions)
}
