package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnosuke/agent-fetch/store"
	"github.com/cnosuke/agent-fetch/types"
)

const testAgentID = "bc-12345678-1234-1234-1234-123456789abc"

// stubFetcher returns a canned result for any URL.
type stubFetcher struct {
	result *types.FetchResult
}

func (s *stubFetcher) Fetch(urlStr string) *types.FetchResult {
	res := *s.result
	res.SourceURL = urlStr
	return &res
}

func htmlResult() *types.FetchResult {
	status := 200
	return &types.FetchResult{
		SourceURL:         "https://cursor.com/agents?selectedBcId=" + testAgentID,
		DerivedIdentifier: testAgentID,
		StatusCode:        &status,
		ContentType:       "text/html; charset=utf-8",
		ResponseSize:      256,
		Timestamp:         types.FormatTimestamp(time.Now()),
		Data: types.NewHTMLContent("<html><title>Agents</title></html>", &types.ExtractedInfo{
			Title:          "Agents",
			MetaTags:       map[string]string{"description": "test"},
			StructuredData: []json.RawMessage{},
			DataAttributes: map[string]string{},
		}),
	}
}

func newTestRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	return NewRouter(&stubFetcher{result: htmlResult()}, st), st
}

func postForm(t *testing.T, router *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func get(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIndex(t *testing.T) {
	router, _ := newTestRouter(t)

	w := get(t, router, "/")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Agent URL")
}

func TestFetch_RedirectsToDetail(t *testing.T) {
	router, st := newTestRouter(t)

	w := postForm(t, router, "/fetch", url.Values{
		"url": {"https://cursor.com/agents?selectedBcId=" + testAgentID},
	})

	require.Equal(t, http.StatusSeeOther, w.Code)
	location := w.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, "/agents/"), "unexpected redirect target: %s", location)

	// The record is persisted.
	summaries, err := st.List()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, testAgentID, summaries[0].DerivedIdentifier)
}

func TestFetch_MissingURL(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postForm(t, router, "/fetch", url.Values{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "URL is required")
}

func TestList(t *testing.T) {
	router, st := newTestRouter(t)
	_, err := st.Save(htmlResult())
	require.NoError(t, err)

	w := get(t, router, "/agents")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), testAgentID)
}

func TestDetail(t *testing.T) {
	router, st := newTestRouter(t)
	key, err := st.Save(htmlResult())
	require.NoError(t, err)

	w := get(t, router, "/agents/"+key)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, testAgentID)
	assert.Contains(t, body, "Agents")
	assert.Contains(t, body, "description")
}

func TestDetail_RawJSON(t *testing.T) {
	router, st := newTestRouter(t)
	key, err := st.Save(htmlResult())
	require.NoError(t, err)

	w := get(t, router, "/agents/"+key+".json")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var record types.FetchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, testAgentID, record.DerivedIdentifier)
	require.NotNil(t, record.Data)
	assert.Equal(t, types.KindHTML, record.Data.Kind)
}

func TestDetail_ResolvesLatestByIdentifier(t *testing.T) {
	router, st := newTestRouter(t)

	older := htmlResult()
	older.Timestamp = types.FormatTimestamp(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	newer := htmlResult()
	newer.Timestamp = types.FormatTimestamp(time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC))
	newer.ResponseSize = 4242

	_, err := st.Save(older)
	require.NoError(t, err)
	_, err = st.Save(newer)
	require.NoError(t, err)

	// Requesting the bare identifier resolves the newest version. The exact
	// key of the newer record carries a timestamp suffix, so asking by id
	// must not 404.
	w := get(t, router, "/agents/"+testAgentID)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDetail_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w := get(t, router, "/agents/bc-00000000-0000-0000-0000-000000000000")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDetail_ErrorRecord(t *testing.T) {
	router, st := newTestRouter(t)

	failed := &types.FetchResult{
		SourceURL:         "https://cursor.com/agents?selectedBcId=" + testAgentID,
		DerivedIdentifier: testAgentID,
		ErrorMessage:      "timeout",
		Timestamp:         types.FormatTimestamp(time.Now()),
	}
	key, err := st.Save(failed)
	require.NoError(t, err)

	w := get(t, router, "/agents/"+key)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "timeout")
	assert.Contains(t, body, "N/A")
}
