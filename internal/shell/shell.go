// Package shell is the desktop side of the application: it shows the local
// server's page in a window and decides when the process should exit.
//
// Windows are the user's browser. The landing page reports itself through
// the heartbeat endpoints, which drive a Lifecycle: once every window has
// closed and stayed closed for the grace period, the process quits, unless
// quitting on last window is disabled (the macOS default), in which case it
// runs until it receives a signal.
package shell

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/exec"
	"runtime"
	"time"
)

// ErrQuit is returned by Run when the last window closed.
var ErrQuit = errors.New("last window closed")

// Opener shows a URL in a window
type Opener interface {
	Open(url string) error
}

// OpenerFunc adapts a function to Opener
type OpenerFunc func(url string) error

func (f OpenerFunc) Open(url string) error { return f(url) }

// BrowserOpener opens URLs with the platform's URL handler
type BrowserOpener struct {
	goos  string
	start func(name string, args ...string) error
}

// NewBrowserOpener returns an opener for the running OS
func NewBrowserOpener() *BrowserOpener {
	return &BrowserOpener{
		goos: runtime.GOOS,
		start: func(name string, args ...string) error {
			cmd := exec.Command(name, args...)
			if err := cmd.Start(); err != nil {
				return err
			}
			go func() { _ = cmd.Wait() }()
			return nil
		},
	}
}

// Command returns the program and arguments used to open url
func (b *BrowserOpener) Command(url string) (string, []string) {
	switch b.goos {
	case "darwin":
		return "open", []string{url}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		return "xdg-open", []string{url}
	}
}

// Open launches the URL handler without waiting for it
func (b *BrowserOpener) Open(url string) error {
	name, args := b.Command(url)
	if err := b.start(name, args...); err != nil {
		return fmt.Errorf("open %s with %s: %w", url, name, err)
	}
	return nil
}

// Config controls the shell
type Config struct {
	OpenWindow   bool
	ReadyTimeout time.Duration
	PollInterval time.Duration
}

// Shell opens the window once the server answers and waits for the
// lifecycle to finish
type Shell struct {
	opener    Opener
	lifecycle *Lifecycle
	client    *http.Client
	config    Config
}

// New creates a shell
func New(opener Opener, lifecycle *Lifecycle, config Config) *Shell {
	if config.ReadyTimeout <= 0 {
		config.ReadyTimeout = 10 * time.Second
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 100 * time.Millisecond
	}
	return &Shell{
		opener:    opener,
		lifecycle: lifecycle,
		client:    &http.Client{Timeout: time.Second},
		config:    config,
	}
}

// Run waits for the server at baseURL, opens it in a window and blocks until
// ctx is cancelled (nil error) or the last window closes (ErrQuit).
func (s *Shell) Run(ctx context.Context, baseURL string) error {
	if err := s.WaitReady(ctx, baseURL); err != nil {
		return err
	}

	if s.config.OpenWindow {
		log.Printf("[Shell] Opening window at %s", baseURL)
		if err := s.opener.Open(baseURL); err != nil {
			// the server stays usable from any browser
			log.Printf("[Shell] FAILED - Could not open window: %v", err)
		}
	}

	select {
	case <-ctx.Done():
		return nil
	case <-s.lifecycle.Done():
		log.Printf("[Shell] All windows closed, quitting")
		return ErrQuit
	}
}

// WaitReady polls baseURL's health endpoint until it answers 200
func (s *Shell) WaitReady(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ReadyTimeout)
	defer cancel()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	healthURL := baseURL + "healthz"
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
		if err != nil {
			return err
		}
		if resp, err := s.client.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("server at %s not ready: %w", baseURL, ctx.Err())
		case <-ticker.C:
		}
	}
}
