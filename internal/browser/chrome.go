package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"sjsage522/dealworker/logger"
)

// ChromeSession implements Session on top of chromedp
type ChromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
	log    *logger.Logger

	networkIdle chan *page.EventLifecycleEvent
	closeOnce   sync.Once
	closeErr    error
}

// Ensure ChromeSession implements Session
var _ Session = (*ChromeSession)(nil)

// Launch starts a Chrome process and opens a blank tab
func Launch(ctx context.Context, opts Options) (Session, error) {
	log := logger.ForSession()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", "ar-SA"),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.WindowSize[0] > 0 && opts.WindowSize[1] > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.WindowSize[0], opts.WindowSize[1]))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Printf))

	// Create a combined cancel function
	cancel := func() {
		cancelTab()
		cancelAlloc()
	}

	s := &ChromeSession{
		ctx:         tabCtx,
		cancel:      cancel,
		opts:        opts,
		log:         log,
		networkIdle: make(chan *page.EventLifecycleEvent, 32),
	}

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
			select {
			case s.networkIdle <- e:
			default:
			}
		}
	})

	// The first Run starts the browser process
	if err := chromedp.Run(tabCtx, page.SetLifecycleEventsEnabled(true)); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	log.Info().
		Bool("headless", opts.Headless).
		Dur("action_delay", opts.ActionDelay).
		Msg("Browser started")
	return s, nil
}

// run executes actions on the tab, bounded by ctx, then applies the action delay
func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := s.bind(ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return err
	}
	return Sleep(ctx, s.opts.ActionDelay)
}

// bind derives a tab context that is also cancelled when ctx is done
func (s *ChromeSession) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// Open navigates to url and waits for network idle, the settle delay and a stable DOM
func (s *ChromeSession) Open(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.NavigationTimeout)
	defer cancel()

	// Drop any idle signal left over from about:blank
	for drained := false; !drained; {
		select {
		case <-s.networkIdle:
		default:
			drained = true
		}
	}

	s.log.Info().Str("url", url).Msg("Opening page")
	var frameID cdp.FrameID
	var loaderID cdp.LoaderID
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var errorText string
		var err error
		frameID, loaderID, errorText, err = page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return errors.New(errorText)
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	if err := s.waitNetworkIdle(ctx, frameID, loaderID); err != nil {
		return err
	}

	if err := Sleep(ctx, s.opts.SettleDelay); err != nil {
		return err
	}

	err = WaitStable(ctx, s.opts.ActionTimeout, 250*time.Millisecond, func(ctx context.Context) (int, error) {
		var size int
		err := s.run(ctx, chromedp.Evaluate(`document.body ? document.body.innerHTML.length : 0`, &size))
		return size, err
	})
	if err != nil {
		return fmt.Errorf("page did not settle: %w", err)
	}

	s.log.Info().Str("url", url).Msg("Page ready")
	return nil
}

// waitNetworkIdle blocks until the main frame's new document reports network idle.
// Subframes and the previous document fire their own lifecycle events.
func (s *ChromeSession) waitNetworkIdle(ctx context.Context, frameID cdp.FrameID, loaderID cdp.LoaderID) error {
	for {
		select {
		case e := <-s.networkIdle:
			if e.FrameID != frameID {
				continue
			}
			if loaderID != "" && e.LoaderID != loaderID {
				continue
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("page never reached network idle: %w", ctx.Err())
		}
	}
}

// Locate waits until selector resolves to at least one node
func (s *ChromeSession) Locate(ctx context.Context, selector string) (Element, error) {
	var node *cdp.Node
	err := WaitFor(ctx, s.opts.ActionTimeout, func(ctx context.Context) (bool, error) {
		var nodes []*cdp.Node
		runCtx, cancel := s.bind(ctx)
		defer cancel()
		if err := chromedp.Run(runCtx, chromedp.Nodes(selector, &nodes, chromedp.BySearch, chromedp.AtLeast(0))); err != nil {
			return false, err
		}
		if len(nodes) == 0 {
			return false, nil
		}
		node = nodes[0]
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", selector, err)
	}
	return &chromeElement{session: s, node: node}, nil
}

// Press sends a single key
func (s *ChromeSession) Press(ctx context.Context, key Key) error {
	var k string
	switch key {
	case KeyEnter:
		k = kb.Enter
	case KeyTab:
		k = kb.Tab
	case KeyDelete:
		k = kb.Delete
	default:
		return fmt.Errorf("unsupported key %q", key)
	}
	return s.run(ctx, chromedp.KeyEvent(k))
}

// SelectAll sends Ctrl+A
func (s *ChromeSession) SelectAll(ctx context.Context) error {
	return s.run(ctx, chromedp.KeyEvent("a", chromedp.KeyModifiers(input.ModifierCtrl)))
}

// Type sends text one key at a time; the date widgets only react to key events
func (s *ChromeSession) Type(ctx context.Context, text string, perChar time.Duration) error {
	runCtx, cancel := s.bind(ctx)
	defer cancel()
	for _, r := range text {
		if err := chromedp.Run(runCtx, chromedp.KeyEvent(string(r))); err != nil {
			return fmt.Errorf("failed to type %q: %w", string(r), err)
		}
		if err := Sleep(ctx, perChar); err != nil {
			return err
		}
	}
	return Sleep(ctx, s.opts.ActionDelay)
}

// ScrollToBottom scrolls to the end of the document
func (s *ChromeSession) ScrollToBottom(ctx context.Context) error {
	return s.run(ctx, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight);`, nil))
}

// ScrollViewport scrolls down by one viewport height
func (s *ChromeSession) ScrollViewport(ctx context.Context) error {
	return s.run(ctx, chromedp.Evaluate(`window.scrollTo(0, window.innerHeight);`, nil))
}

// CountElements counts nodes matching an XPath selector
func (s *ChromeSession) CountElements(ctx context.Context, selector string) (int, error) {
	xp, err := json.Marshal(selector)
	if err != nil {
		return 0, err
	}
	script := fmt.Sprintf(`document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null).snapshotLength`, xp)

	var n int
	runCtx, cancel := s.bind(ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &n)); err != nil {
		return 0, fmt.Errorf("count %s: %w", selector, err)
	}
	return n, nil
}

// cardsScript reads every card in one evaluation so the list cannot shift between reads
const cardsScript = `(() => {
	const snap = document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	const out = [];
	for (let i = 0; i < snap.snapshotLength; i++) {
		const el = snap.snapshotItem(i);
		try {
			out.push({text: el.innerText || "", html: el.outerHTML || ""});
		} catch (e) {
			out.push({text: "", html: "", error: String(e)});
		}
	}
	return out;
})()`

// Cards returns innerText and outerHTML of every node matching selector
func (s *ChromeSession) Cards(ctx context.Context, selector string) ([]Card, error) {
	xp, err := json.Marshal(selector)
	if err != nil {
		return nil, err
	}

	var cards []Card
	runCtx, cancel := s.bind(ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Evaluate(fmt.Sprintf(cardsScript, xp), &cards)); err != nil {
		return nil, fmt.Errorf("read cards %s: %w", selector, err)
	}
	return cards, nil
}

// PageHTML returns the document markup
func (s *ChromeSession) PageHTML(ctx context.Context) (string, error) {
	var html string
	runCtx, cancel := s.bind(ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

// Close shuts the browser down gracefully, then releases the allocator
func (s *ChromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = chromedp.Cancel(s.ctx)
		s.cancel()
		s.log.Info().Msg("Browser closed")
	})
	return s.closeErr
}

// chromeElement is a node resolved by Locate
type chromeElement struct {
	session *ChromeSession
	node    *cdp.Node
}

func (e *chromeElement) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

func (e *chromeElement) Click(ctx context.Context) error {
	return e.session.run(ctx, chromedp.MouseClickNode(e.node))
}

func (e *chromeElement) Fill(ctx context.Context, value string) error {
	return e.session.run(ctx,
		chromedp.Focus(e.ids(), chromedp.ByNodeID),
		chromedp.KeyEvent("a", chromedp.KeyModifiers(input.ModifierCtrl)),
		chromedp.KeyEvent(kb.Delete),
		chromedp.SendKeys(e.ids(), value, chromedp.ByNodeID),
	)
}

func (e *chromeElement) ScrollIntoView(ctx context.Context) error {
	return e.session.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return dom.ScrollIntoViewIfNeeded().WithNodeID(e.node.NodeID).Do(ctx)
	}))
}

func (e *chromeElement) IsVisible(ctx context.Context) bool {
	var model *dom.BoxModel
	runCtx, cancel := e.session.bind(ctx)
	defer cancel()
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		model, err = dom.GetBoxModel().WithNodeID(e.node.NodeID).Do(ctx)
		return err
	}))
	return err == nil && model != nil && model.Width > 0 && model.Height > 0
}
