package browser

import (
	"context"
	"time"
)

// Key is a keyboard key understood by Session.Press
type Key string

const (
	KeyEnter  Key = "enter"
	KeyTab    Key = "tab"
	KeyDelete Key = "delete"
)

// Card is the raw content of one rendered result card
type Card struct {
	Text string `json:"text"`
	HTML string `json:"html"`
	// Err is set when the page failed to read this card
	Err string `json:"error,omitempty"`
}

// Element is a located DOM element
type Element interface {
	// Click clicks the element's center
	Click(ctx context.Context) error
	// Fill focuses the element, clears it and types value
	Fill(ctx context.Context, value string) error
	// ScrollIntoView scrolls the element into the viewport if needed
	ScrollIntoView(ctx context.Context) error
	// IsVisible reports whether the element has a rendered, non-empty box
	IsVisible(ctx context.Context) bool
}

// Session owns one browser tab for the duration of a scrape.
// Selectors are XPath expressions.
type Session interface {
	// Open navigates and blocks until the network is idle and the DOM has settled
	Open(ctx context.Context, url string) error

	// Locate waits until selector resolves and returns the first match
	Locate(ctx context.Context, selector string) (Element, error)

	// Press sends a single key to the focused element
	Press(ctx context.Context, key Key) error

	// SelectAll sends Ctrl+A to the focused element
	SelectAll(ctx context.Context) error

	// Type sends text key by key, pausing perChar between keys
	Type(ctx context.Context, text string, perChar time.Duration) error

	// ScrollToBottom scrolls the window to the end of the document
	ScrollToBottom(ctx context.Context) error

	// ScrollViewport scrolls the window down by one viewport height
	ScrollViewport(ctx context.Context) error

	// CountElements returns the number of nodes matching selector without waiting
	CountElements(ctx context.Context, selector string) (int, error)

	// Cards returns the text and markup of every node matching selector
	Cards(ctx context.Context, selector string) ([]Card, error)

	// PageHTML returns the current document markup
	PageHTML(ctx context.Context) (string, error)

	// Close terminates the browser. It is safe to call more than once.
	Close() error
}

// Options configures a browser launch
type Options struct {
	Headless   bool
	ExecPath   string
	Proxy      string
	UserAgent  string
	WindowSize [2]int

	// ActionDelay is applied after every action
	ActionDelay time.Duration
	// ActionTimeout bounds every element wait
	ActionTimeout time.Duration
	// NavigationTimeout bounds Open
	NavigationTimeout time.Duration
	// SettleDelay is waited after network idle before checking DOM stability
	SettleDelay time.Duration
}

// DefaultOptions returns options suitable for the portal
func DefaultOptions() Options {
	return Options{
		Headless:          true,
		WindowSize:        [2]int{1366, 900},
		ActionDelay:       250 * time.Millisecond,
		ActionTimeout:     15 * time.Second,
		NavigationTimeout: 60 * time.Second,
		SettleDelay:       2 * time.Second,
	}
}

// Launcher starts a new Session
type Launcher func(ctx context.Context, opts Options) (Session, error)
