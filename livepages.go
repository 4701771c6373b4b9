// Package livepages polls the Chartbeat live top-pages API and serves the
// latest ranking as an HTML list with a click-to-expand detail panel.
//
// The App wires a chartbeat client, the in-memory cache and poller, the
// list renderer and an Echo server. Templates are templ components that can
// be replaced through ViewFuncs.
package livepages

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/livepages/beat"
	"github.com/eringen/livepages/history"
	"github.com/eringen/livepages/views"
)

// ViewFuncs holds the components the handlers render.
type ViewFuncs struct {
	Page         func(cfg views.SiteConfig, items []views.ListItem, details *views.Details) templ.Component
	TopPagesList func(items []views.ListItem) templ.Component
	PageDetails  func(details *views.Details) templ.Component
	NotFound     func() templ.Component
	ServerError  func() templ.Component
}

// DefaultViews returns the built-in components.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Page:         views.Page,
		TopPagesList: views.TopPagesList,
		PageDetails:  views.PageDetails,
		NotFound:     views.NotFound,
		ServerError:  views.ServerError,
	}
}

func (v *ViewFuncs) fillDefaults() {
	d := DefaultViews()
	if v.Page == nil {
		v.Page = d.Page
	}
	if v.TopPagesList == nil {
		v.TopPagesList = d.TopPagesList
	}
	if v.PageDetails == nil {
		v.PageDetails = d.PageDetails
	}
	if v.NotFound == nil {
		v.NotFound = d.NotFound
	}
	if v.ServerError == nil {
		v.ServerError = d.ServerError
	}
}

// App is the central livepages application.
type App struct {
	Config   Config
	Echo     *echo.Echo
	Cache    *beat.Cache
	Poller   *beat.Poller
	Renderer *views.Renderer
	History  *history.Store
	Views    ViewFuncs

	fetcher      beat.Fetcher
	apiLimiter   *RateLimiter
	customRoutes []func(*App)
	stopCleanup  func()
	initialized  bool
}

// New creates a new App with the given configuration.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	e := echo.New()
	e.HideBanner = true
	a := &App{
		Config: cfg,
		Echo:   e,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Views.fillDefaults()
	return a
}

// Init validates the configuration and builds the cache, poller, renderer,
// middleware and routes. Start calls it when needed.
func (a *App) Init() error {
	if a.initialized {
		return nil
	}
	if a.Config.APIKey == "" && a.fetcher == nil {
		return fmt.Errorf("livepages: APIKey is required")
	}

	if a.Config.Debug {
		a.Echo.Logger.SetLevel(log.DEBUG)
	} else {
		a.Echo.Logger.SetLevel(log.INFO)
	}

	if a.Config.SessionSecret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("livepages: generate session secret: %w", err)
		}
		a.Config.SessionSecret = hex.EncodeToString(b)
		a.Echo.Logger.Warnf("no session secret configured; selected pages reset on restart")
	}

	if a.fetcher == nil {
		a.fetcher = a.Config.NewClient()
	}

	if a.Config.HistoryEnabled {
		store, err := history.NewStore(a.Config.HistoryDatabasePath)
		if err != nil {
			return fmt.Errorf("livepages: init history: %w", err)
		}
		a.History = store
		a.stopCleanup = store.StartCleanupScheduler(a.Config.HistoryRetention, time.Hour, func(err error) {
			a.Echo.Logger.Errorf("history cleanup: %v", err)
		})
	}

	a.Cache = beat.NewCache(a.Config.PageLimit)
	a.Poller = beat.NewPoller(a.Cache, a.fetcher, a.Config.PollInterval, a.Echo.Logger)
	a.Renderer = views.NewRenderer(a.Cache, a.Config.PageLimit)
	a.apiLimiter = NewRateLimiter(60, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}

	a.initialized = true
	return nil
}

// Start builds the list template, starts polling and serves HTTP until ctx
// is cancelled or the server fails.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	a.Renderer.SetupTemplate(func() {
		g.Go(func() error {
			err := a.Poller.Start(gctx, a.onUpdated)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	})

	g.Go(func() error {
		a.Echo.Logger.Infof("serving %s on %s", a.Config.Host, a.Config.Addr)
		if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("livepages: serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Echo.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// onUpdated runs on the polling goroutine after every successful poll.
func (a *App) onUpdated() {
	a.Renderer.UpdateList()
	if a.History == nil {
		return
	}
	pages := a.Cache.Latest()
	if err := a.History.Save(context.Background(), time.Now(), pages); err != nil {
		a.Echo.Logger.Errorf("history save: %v", err)
	}
}

func (a *App) siteConfig() views.SiteConfig {
	return views.SiteConfig{
		Name:      a.Config.Name,
		Host:      a.Config.Host,
		RefreshMS: a.Config.PollInterval.Milliseconds(),
	}
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.stopCleanup != nil {
		a.stopCleanup()
	}
	if a.apiLimiter != nil {
		a.apiLimiter.Stop()
	}
	if a.History != nil {
		return a.History.Close()
	}
	return nil
}
