// Package browser owns the shared headless Chrome instance used for
// JavaScript-rendered sources.
package browser

import (
	"context"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrClosed is returned once the handle has been shut down.
var ErrClosed = eris.New("browser: handle closed")

// Options configures the Chrome process.
type Options struct {
	ExecPath  string
	Headless  bool
	UserAgent string
}

// Handle is a lazily launched Chrome process shared by every lane. Callers
// bracket their use with Acquire and Release so Close can wait for in-flight
// pages to finish.
type Handle struct {
	opts Options

	mu            sync.Mutex
	started       bool
	closed        bool
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	inflight      sync.WaitGroup
}

// NewHandle creates a handle. Chrome is not started until the first Tab.
func NewHandle(opts Options) *Handle {
	return &Handle{opts: opts}
}

// Acquire registers an in-flight user. It fails after Close.
func (h *Handle) Acquire() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.inflight.Add(1)
	return nil
}

// Release ends a use registered with Acquire.
func (h *Handle) Release() {
	h.inflight.Done()
}

// Tab opens a new browser tab. The returned context is cancelled when ctx is
// done or when the returned cancel func is called.
func (h *Handle) Tab(ctx context.Context) (context.Context, context.CancelFunc, error) {
	browserCtx, err := h.ensureStarted()
	if err != nil {
		return nil, nil, err
	}

	tabCtx, cancel := chromedp.NewContext(browserCtx)
	// The first Run attaches the target and binds its event loop to the
	// context it is given, so it must be tabCtx itself and not a child with
	// a deadline.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, nil, eris.Wrap(err, "browser: open tab")
	}
	stop := context.AfterFunc(ctx, cancel)
	return tabCtx, func() {
		stop()
		cancel()
	}, nil
}

func (h *Handle) ensureStarted() (context.Context, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	if h.started {
		return h.browserCtx, nil
	}

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", h.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	)
	if h.opts.UserAgent != "" {
		execOpts = append(execOpts, chromedp.UserAgent(h.opts.UserAgent))
	}
	if h.opts.ExecPath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(h.opts.ExecPath))
	}

	// The browser outlives any single crawl, so it hangs off Background.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), execOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, eris.Wrap(err, "browser: launch chrome")
	}

	h.allocCancel = allocCancel
	h.browserCtx = browserCtx
	h.browserCancel = browserCancel
	h.started = true
	zap.L().Info("browser: chrome started", zap.Bool("headless", h.opts.Headless))
	return browserCtx, nil
}

// Close stops accepting new users, waits for in-flight ones until ctx is
// done, then terminates Chrome. It is safe to call more than once.
func (h *Handle) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(drained)
	}()

	var waitErr error
	select {
	case <-drained:
	case <-ctx.Done():
		waitErr = eris.Wrap(ctx.Err(), "browser: wait for in-flight pages")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return waitErr
	}
	h.started = false

	if err := chromedp.Cancel(h.browserCtx); err != nil && !eris.Is(err, context.Canceled) {
		zap.L().Warn("browser: cancel chrome", zap.Error(err))
	}
	h.browserCancel()
	h.allocCancel()
	zap.L().Info("browser: chrome stopped")
	return waitErr
}
