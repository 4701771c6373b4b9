package livepages

import (
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/livepages/views"
)

func (a *App) setupRoutes() {
	e := a.Echo

	assets, _ := fs.Sub(EmbeddedAssets, "embedded")
	e.GET("/public/*", echo.WrapHandler(http.StripPrefix("/public/", http.FileServer(http.FS(assets)))))

	e.GET("/", a.handleHome)
	e.GET("/fragments/top-pages", a.handleTopPages)
	e.GET("/pages/:rank/", a.handlePageDetails)

	api := e.Group("/api", a.apiLimiter.Middleware)
	api.GET("/pages", a.handleAPIPages)
	api.GET("/pages/:rank", a.handleAPIPage)
	api.GET("/pages/:rank/history", a.handleAPIHistory)
	api.GET("/status", a.handleAPIStatus)
}

// handleHome serves the full document. The detail panel is pre-rendered for
// the rank the viewer last opened, when that rank still has data.
func (a *App) handleHome(c echo.Context) error {
	var details *views.Details
	if rank, ok := selectedRank(c); ok {
		if d, err := a.Renderer.ShowDetails(rank); err == nil {
			details = &d
		}
	}
	return Render(c, a.Views.Page(a.siteConfig(), a.Renderer.Items(), details))
}

func (a *App) handleTopPages(c echo.Context) error {
	return Render(c, a.Views.TopPagesList(a.Renderer.Items()))
}

// handlePageDetails renders the detail panel for one list item.
func (a *App) handlePageDetails(c echo.Context) error {
	rank, err := parseRank(c)
	if err != nil {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
	}
	d, err := a.Renderer.ShowDetails(rank)
	if err != nil {
		if errors.Is(err, views.ErrNoPage) {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		}
		return err
	}
	if err := rememberRank(c, rank); err != nil {
		c.Logger().Warnf("remember rank: %v", err)
	}
	return Render(c, a.Views.PageDetails(&d))
}

// listItemJSON is the API form of a list slot.
type listItemJSON struct {
	Rank   int    `json:"rank"`
	Title  string `json:"title"`
	Visits int    `json:"visits"`
	Filled bool   `json:"filled"`
}

func (a *App) handleAPIPages(c echo.Context) error {
	items := a.Renderer.Items()
	out := make([]listItemJSON, len(items))
	for i, item := range items {
		out[i] = listItemJSON{Rank: item.Rank, Title: item.Title, Visits: item.Visits, Filled: item.Filled}
	}
	return c.JSON(http.StatusOK, out)
}

func (a *App) handleAPIPage(c echo.Context) error {
	rank, err := parseRank(c)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid rank")
	}
	info, ok := a.Cache.PageInfo(rank)
	if !ok {
		return jsonError(c, http.StatusNotFound, "no page at rank")
	}
	return c.JSON(http.StatusOK, info)
}

func (a *App) handleAPIHistory(c echo.Context) error {
	if a.History == nil {
		return jsonError(c, http.StatusNotFound, "history disabled")
	}
	rank, err := parseRank(c)
	if err != nil || rank >= a.Config.PageLimit {
		return jsonError(c, http.StatusBadRequest, "invalid rank")
	}
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			return jsonError(c, http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	entries, err := a.History.RankHistory(c.Request().Context(), rank, limit)
	if err != nil {
		c.Logger().Errorf("rank history: %v", err)
		return jsonError(c, http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, entries)
}

func (a *App) handleAPIStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, a.Poller.Status())
}

func parseRank(c echo.Context) (int, error) {
	rank, err := strconv.Atoi(strings.TrimSuffix(c.Param("rank"), "/"))
	if err != nil {
		return 0, err
	}
	if rank < 0 {
		return 0, errors.New("negative rank")
	}
	return rank, nil
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound && !strings.HasPrefix(c.Request().URL.Path, "/api/") {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		_ = RenderStatus(c, code, a.Views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
