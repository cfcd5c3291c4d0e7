// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/visionfill/internal/config"
)

const (
	playwrightInstallTimeout = 5 * time.Minute
	shutdownGracePeriod      = 15 * time.Second
)

// defaultLaunchArgs keep Chromium stable in containers.
var defaultLaunchArgs = []string{
	"--disable-gpu",
	"--no-sandbox",
	"--disable-dev-shm-usage",
}

// Manager owns the Playwright driver and the Chromium process. Start-up is
// deferred until the first page is requested.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	pw      *playwright.Playwright
	browser playwright.Browser

	mu       sync.Mutex
	contexts []playwright.BrowserContext

	initOnce sync.Once
	initErr  error
}

// NewManager creates a new browser manager.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	m := &Manager{
		cfg:    cfg,
		logger: logger.Named("browser_manager"),
	}
	m.logger.Debug("Browser manager created (initialization deferred).")
	return m
}

// initialize starts the Playwright driver and launches Chromium.
func (m *Manager) initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.logger.Info("Initializing Playwright and launching browser...")

		if !m.cfg.SkipInstall {
			if err := m.ensureInstallation(ctx); err != nil {
				m.initErr = err
				return
			}
		}

		pw, err := playwright.Run()
		if err != nil {
			m.initErr = fmt.Errorf("failed to start playwright driver: %w", err)
			return
		}
		m.pw = pw

		browser, err := pw.Chromium.Launch(m.prepareLaunchOptions())
		if err != nil {
			_ = pw.Stop()
			m.initErr = fmt.Errorf("failed to launch browser instance: %w", err)
			return
		}
		m.browser = browser

		m.logger.Info("Browser launched.",
			zap.String("browser_version", browser.Version()),
			zap.Bool("headless", m.cfg.Headless))
	})
	return m.initErr
}

func (m *Manager) ensureInstallation(ctx context.Context) error {
	installCtx, cancel := context.WithTimeout(ctx, playwrightInstallTimeout)
	defer cancel()

	// Install blocks without a context, so race it against the deadline.
	errCh := make(chan error, 1)
	go func() {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			errCh <- fmt.Errorf("failed to install playwright browsers: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-installCtx.Done():
		return fmt.Errorf("timeout waiting for Playwright installation: %w", installCtx.Err())
	}
}

func (m *Manager) prepareLaunchOptions() playwright.BrowserTypeLaunchOptions {
	args := make([]string, 0, len(defaultLaunchArgs)+len(m.cfg.Args))
	seen := make(map[string]bool)
	for _, arg := range append(append([]string{}, defaultLaunchArgs...), m.cfg.Args...) {
		if !seen[arg] {
			seen[arg] = true
			args = append(args, arg)
		}
	}
	return playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.cfg.Headless),
		Args:     args,
		Timeout:  playwright.Float(60000),
	}
}

func (m *Manager) contextOptions() playwright.BrowserNewContextOptions {
	opts := playwright.BrowserNewContextOptions{}
	if m.cfg.ViewportWidth > 0 && m.cfg.ViewportHeight > 0 {
		opts.Viewport = &playwright.Size{Width: m.cfg.ViewportWidth, Height: m.cfg.ViewportHeight}
	}
	if m.cfg.UserAgent != "" {
		opts.UserAgent = playwright.String(m.cfg.UserAgent)
	}
	return opts
}

// NewPage opens a fresh browser context with a single page.
func (m *Manager) NewPage(ctx context.Context) (Page, error) {
	if err := m.initialize(ctx); err != nil {
		return nil, err
	}

	bctx, err := m.browser.NewContext(m.contextOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	m.mu.Lock()
	m.contexts = append(m.contexts, bctx)
	m.mu.Unlock()

	return NewPlaywrightPage(page, m.cfg.NavigationTimeout), nil
}

// Shutdown closes every context, the browser and the driver.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.pw == nil {
		m.logger.Debug("Manager not initialized, nothing to shut down.")
		return nil
	}
	m.logger.Info("Shutting down browser manager.")

	m.mu.Lock()
	contexts := m.contexts
	m.contexts = nil
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, c := range contexts {
			if err := c.Close(); err != nil {
				m.logger.Warn("Error closing browser context.", zap.Error(err))
			}
		}
	}()

	grace, cancel := context.WithTimeout(ctx, shutdownGracePeriod)
	defer cancel()
	select {
	case <-done:
	case <-grace.Done():
		m.logger.Warn("Timeout waiting for contexts to close. Proceeding with forceful shutdown.", zap.Error(grace.Err()))
	}

	var shutdownErr error
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			shutdownErr = fmt.Errorf("failed to close browser: %w", err)
		}
	}
	if err := m.pw.Stop(); err != nil && shutdownErr == nil {
		shutdownErr = fmt.Errorf("failed to stop playwright driver: %w", err)
	}
	if shutdownErr != nil {
		m.logger.Error("Browser shutdown incomplete.", zap.Error(shutdownErr))
	}
	return shutdownErr
}
