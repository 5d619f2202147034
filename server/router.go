package server

import (
	"embed"
	"html/template"

	"github.com/gin-gonic/gin"

	"github.com/cnosuke/agent-fetch/fetcher"
	"github.com/cnosuke/agent-fetch/store"
)

//go:embed templates/*.html
var templatesFS embed.FS

// NewRouter creates a configured Gin engine with all viewer routes.
//
// Routes:
//
//	GET  /                   input form + recent records
//	POST /fetch              run the fetch pipeline, redirect to detail
//	GET  /agents             list view
//	GET  /agents/:key        detail view (or raw record with a .json suffix)
func NewRouter(f fetcher.Fetcher, st *store.Store) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	r.GET("/", Index(st))
	r.POST("/fetch", Fetch(f, st))
	r.GET("/agents", List(st))
	r.GET("/agents/:key", Detail(st))

	return r
}
