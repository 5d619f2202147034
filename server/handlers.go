package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cnosuke/agent-fetch/fetcher"
	"github.com/cnosuke/agent-fetch/store"
	"github.com/cnosuke/agent-fetch/types"
)

// recentLimit caps the recent-records block on the index page.
const recentLimit = 10

// Index returns the handler for GET /: the fetch form plus recent records.
func Index(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		summaries, err := st.List()
		if err != nil {
			renderError(c, http.StatusInternalServerError, err)
			return
		}
		if len(summaries) > recentLimit {
			summaries = summaries[:recentLimit]
		}
		c.HTML(http.StatusOK, "index.html", gin.H{
			"Recent": summaries,
		})
	}
}

// Fetch returns the handler for POST /fetch: runs the pipeline synchronously,
// saves the record, and redirects to its detail view.
func Fetch(f fetcher.Fetcher, st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		urlStr := strings.TrimSpace(c.PostForm("url"))
		if urlStr == "" {
			c.HTML(http.StatusBadRequest, "error.html", gin.H{
				"Message": "URL is required",
			})
			return
		}
		tryAlternatives := c.PostForm("try_alternatives") != ""

		result, attempts := fetcher.FetchWithFallback(f, urlStr, tryAlternatives)

		key, err := st.Save(result)
		if err != nil {
			renderError(c, http.StatusInternalServerError, err)
			return
		}
		// Failed alternative attempts are retained alongside the kept result.
		for _, attempt := range attempts {
			if attempt == result {
				continue
			}
			if _, err := st.Save(attempt); err != nil {
				zap.S().Warnw("failed to save alternative attempt",
					"url", attempt.SourceURL, "error", err)
			}
		}

		c.Redirect(http.StatusSeeOther, "/agents/"+key)
	}
}

// List returns the handler for GET /agents.
func List(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		summaries, err := st.List()
		if err != nil {
			renderError(c, http.StatusInternalServerError, err)
			return
		}
		c.HTML(http.StatusOK, "list.html", gin.H{
			"Records": summaries,
		})
	}
}

// Detail returns the handler for GET /agents/:key. A trailing .json on the
// key serves the raw record instead of the HTML view.
func Detail(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		rawJSON := strings.HasSuffix(key, ".json")
		if rawJSON {
			key = strings.TrimSuffix(key, ".json")
		}

		record, err := st.Load(key)
		if err != nil {
			// The key may be a bare identifier; resolve the newest version.
			if latest, resolvedKey, latestErr := st.LoadLatest(key); latestErr == nil {
				record, key = latest, resolvedKey
			} else {
				renderError(c, http.StatusNotFound, err)
				return
			}
		}

		if rawJSON {
			c.JSON(http.StatusOK, record)
			return
		}

		c.HTML(http.StatusOK, "view.html", buildDetailView(key, record))
	}
}

// detailView is the template model for the detail page.
type detailView struct {
	Key    string
	Record *types.FetchResult

	Kind          string
	RawHTML       string
	Extracted     *types.ExtractedInfo
	ExtractedJSON string
	ValueJSON     string
	TextContent   string
	ParseError    string
	BinarySize    int
}

func buildDetailView(key string, record *types.FetchResult) *detailView {
	view := &detailView{Key: key, Record: record}
	if record.Data == nil {
		return view
	}

	view.Kind = record.Data.Kind
	switch record.Data.Kind {
	case types.KindJSON:
		view.ValueJSON = prettyJSON(record.Data.Value)
	case types.KindHTML:
		view.RawHTML = record.Data.RawHTML
		view.Extracted = record.Data.Extracted
		view.ExtractedJSON = prettyJSON(record.Data.Extracted)
	case types.KindBinary:
		view.BinarySize = record.Data.SizeBytes
	case types.KindText:
		view.TextContent = record.Data.Content
		view.ParseError = record.Data.ParseError
	}
	return view
}

func prettyJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

func renderError(c *gin.Context, status int, err error) {
	zap.S().Errorw("request failed", "path", c.Request.URL.Path, "error", err)
	c.HTML(status, "error.html", gin.H{
		"Message": err.Error(),
	})
}
