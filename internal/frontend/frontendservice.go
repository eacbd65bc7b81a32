package frontend

import (
	"html/template"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/slipledger/server/internal/core"
)

const MainPageName = "index.html"

type FrontendService struct {
	coreService *core.CoreService
	config      *core.ServiceConfig
}

func NewFrontendService(config *core.ServiceConfig, coreService *core.CoreService) *FrontendService {
	return &FrontendService{
		coreService: coreService,
		config:      config,
	}
}

// Template renders embedded HTML templates for echo.
type Template struct {
	templates *template.Template
}

func (t *Template) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = &Template{
		templates: template.Must(template.New("").ParseFS(templateFS, viewsPattern)),
	}

	e.GET("/", service.indexHandler)

	// Stored slip images are linked from the listing by their recorded path.
	prefix := "/" + strings.TrimPrefix(filepath.ToSlash(service.config.ImageDirectory), "/")
	e.Static(prefix, service.config.ImageDirectory)
}

// indexHandler renders every slip record as a table, most recent first.
func (service *FrontendService) indexHandler(ctx echo.Context) error {
	records, err := service.coreService.AllSlips()
	if err != nil {
		log.Error().Err(err).Msg("indexHandler: failed to list slip records")
		return ctx.String(http.StatusInternalServerError, "Failed to list records")
	}

	return ctx.Render(http.StatusOK, MainPageName, map[string]any{
		"Records": records,
	})
}
