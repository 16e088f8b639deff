package scraper

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sjsage522/dealworker/internal/browser"
	"sjsage522/dealworker/logger"
)

var errNotFound = errors.New("node not found")

// MockElement implements browser.Element for testing
type MockElement struct {
	name    string
	visible bool
	fillErr error
	session *MockSession
}

// Ensure MockElement implements browser.Element
var _ browser.Element = (*MockElement)(nil)

func (e *MockElement) Click(ctx context.Context) error {
	e.session.record("click " + e.name)
	return nil
}

func (e *MockElement) Fill(ctx context.Context, value string) error {
	if e.fillErr != nil {
		return e.fillErr
	}
	e.session.record("fill " + e.name + " " + value)
	return nil
}

func (e *MockElement) ScrollIntoView(ctx context.Context) error {
	e.session.record("scroll-into-view " + e.name)
	return nil
}

func (e *MockElement) IsVisible(ctx context.Context) bool {
	return e.visible
}

// MockSession implements browser.Session for testing
type MockSession struct {
	elements map[string]*MockElement
	located  []string
	actions  []string

	cards    []browser.Card
	cardsErr error
	html     string

	openErr error
	scrolls int
	closed  int
}

// Ensure MockSession implements browser.Session
var _ browser.Session = (*MockSession)(nil)

func NewMockSession() *MockSession {
	return &MockSession{
		elements: make(map[string]*MockElement),
		html:     "<html><body><ul class=\"ant-list-items\"></ul></body></html>",
	}
}

// WithFormElements registers every form input of sel as a visible element
func (m *MockSession) WithFormElements(sel Selectors) *MockSession {
	for name, xp := range map[string]string{
		"from-year":  sel.From.Year,
		"from-month": sel.From.Month,
		"from-day":   sel.From.Day,
		"to-year":    sel.To.Year,
		"to-month":   sel.To.Month,
		"to-day":     sel.To.Day,
		"min-price":  sel.MinPrice,
	} {
		m.AddElement(xp, name, true)
	}
	m.AddElement(sel.LocationSuggestion, "suggestion", true)
	return m
}

func (m *MockSession) AddElement(selector, name string, visible bool) *MockElement {
	el := &MockElement{name: name, visible: visible, session: m}
	m.elements[selector] = el
	return el
}

func (m *MockSession) record(action string) {
	m.actions = append(m.actions, action)
}

func (m *MockSession) Open(ctx context.Context, url string) error {
	m.record("open " + url)
	return m.openErr
}

func (m *MockSession) Locate(ctx context.Context, selector string) (browser.Element, error) {
	m.located = append(m.located, selector)
	el, ok := m.elements[selector]
	if !ok {
		return nil, errNotFound
	}
	return el, nil
}

func (m *MockSession) Press(ctx context.Context, key browser.Key) error {
	m.record("press " + string(key))
	return nil
}

func (m *MockSession) SelectAll(ctx context.Context) error {
	m.record("select-all")
	return nil
}

func (m *MockSession) Type(ctx context.Context, text string, perChar time.Duration) error {
	m.record("type " + text)
	return nil
}

func (m *MockSession) ScrollToBottom(ctx context.Context) error {
	m.scrolls++
	m.record("scroll-bottom")
	return nil
}

func (m *MockSession) ScrollViewport(ctx context.Context) error {
	m.record("scroll-viewport")
	return nil
}

func (m *MockSession) CountElements(ctx context.Context, selector string) (int, error) {
	if _, ok := m.elements[selector]; ok {
		return 1, nil
	}
	if selector == DefaultSelectors().Cards {
		return len(m.cards), nil
	}
	return 0, nil
}

func (m *MockSession) Cards(ctx context.Context, selector string) ([]browser.Card, error) {
	if m.cardsErr != nil {
		return nil, m.cardsErr
	}
	out := make([]browser.Card, len(m.cards))
	copy(out, m.cards)
	return out, nil
}

func (m *MockSession) PageHTML(ctx context.Context) (string, error) {
	return m.html, nil
}

func (m *MockSession) Close() error {
	m.closed++
	return nil
}

// launcherFor returns a launcher handing out session
func launcherFor(session browser.Session) browser.Launcher {
	return func(ctx context.Context, opts browser.Options) (browser.Session, error) {
		return session, nil
	}
}

// testLogger returns a debug logger writing to buf
func testLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.New(buf, zerolog.DebugLevel)
}

// cardText builds a card of n lines. Lines not given in fields hold filler text.
func cardText(n int, fields map[int]string) string {
	lines := make([]string, n)
	for i := range lines {
		if v, ok := fields[i]; ok {
			lines[i] = v
		} else {
			lines[i] = "حقل"
		}
	}
	// innerText of the portal cards carries blank lines and indentation
	return "\n  " + strings.Join(lines, "\n\n   ") + "\n"
}

func basicSaleCard(district, price, date string) string {
	return cardText(16, map[int]string{
		0:  "الرياض , " + district,
		2:  SaleMarker,
		8:  price,
		11: "2,500",
		13: date,
		15: "400",
	})
}

func categorizedSaleCard(district, category, date string) string {
	return cardText(17, map[int]string{
		0:  "الرياض , " + district,
		1:  category,
		3:  SaleMarker,
		9:  "1,200,000",
		12: "3,000",
		14: date,
		16: "400",
	})
}
