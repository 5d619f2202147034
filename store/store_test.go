package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnosuke/agent-fetch/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(t.TempDir())
	require.NoError(t, err)
	return st
}

func sampleResult(id string, ts time.Time) *types.FetchResult {
	status := 200
	return &types.FetchResult{
		SourceURL:         "https://cursor.com/agents?selectedBcId=" + id,
		DerivedIdentifier: id,
		StatusCode:        &status,
		ContentType:       "text/html; charset=utf-8",
		ResponseSize:      1234,
		Timestamp:         types.FormatTimestamp(ts),
		Data: types.NewHTMLContent("<html><title>Agents</title></html>", &types.ExtractedInfo{
			Title:          "Agents",
			MetaTags:       map[string]string{"description": "test"},
			StructuredData: []json.RawMessage{json.RawMessage(`{"@type":"WebPage"}`)},
			DataAttributes: map[string]string{"state": "open"},
		}),
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	original := sampleResult("bc-12345678-1234-1234-1234-123456789abc", time.Now())

	key, err := st.Save(original)
	require.NoError(t, err)
	assert.Equal(t, original.DerivedIdentifier, key)

	loaded, err := st.Load(key)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestSaveLoad_RoundTripAllVariants(t *testing.T) {
	st := newTestStore(t)
	now := time.Now()

	status := 200
	variants := map[string]*types.ClassifiedContent{
		"json-rec":   types.NewJSONContent(map[string]any{"a": float64(1)}),
		"binary-rec": types.NewBinaryContent(2048),
		"text-rec":   types.NewTextContent("plain body", "unexpected end of JSON input"),
	}
	for id, data := range variants {
		original := &types.FetchResult{
			SourceURL:         "https://example.com/" + id,
			DerivedIdentifier: id,
			StatusCode:        &status,
			ContentType:       "application/test",
			ResponseSize:      10,
			Timestamp:         types.FormatTimestamp(now),
			Data:              data,
		}
		key, err := st.Save(original)
		require.NoError(t, err)

		loaded, err := st.Load(key)
		require.NoError(t, err)
		assert.Equal(t, original, loaded, "round trip for %s", id)
	}
}

func TestSave_FailedFetchRecord(t *testing.T) {
	st := newTestStore(t)
	original := &types.FetchResult{
		SourceURL:         "https://cursor.com/agents?selectedBcId=bc-12345678-1234-1234-1234-123456789abc",
		DerivedIdentifier: "bc-12345678-1234-1234-1234-123456789abc",
		ErrorMessage:      "timeout",
		Timestamp:         types.FormatTimestamp(time.Now()),
	}

	key, err := st.Save(original)
	require.NoError(t, err)

	loaded, err := st.Load(key)
	require.NoError(t, err)
	assert.Nil(t, loaded.StatusCode)
	assert.Equal(t, "timeout", loaded.ErrorMessage)
	assert.Nil(t, loaded.Data)
}

func TestSave_NeverOverwrites(t *testing.T) {
	st := newTestStore(t)
	const id = "bc-12345678-1234-1234-1234-123456789abc"

	first := sampleResult(id, time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	second := sampleResult(id, time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC))
	second.ResponseSize = 9999

	key1, err := st.Save(first)
	require.NoError(t, err)
	key2, err := st.Save(second)
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2, "reused identifier must version, not overwrite")

	loaded1, err := st.Load(key1)
	require.NoError(t, err)
	loaded2, err := st.Load(key2)
	require.NoError(t, err)
	assert.Equal(t, 1234, loaded1.ResponseSize)
	assert.Equal(t, 9999, loaded2.ResponseSize)
}

func TestList_NewestFirst(t *testing.T) {
	st := newTestStore(t)

	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	ids := []string{"bc-00000000-0000-0000-0000-000000000001",
		"bc-00000000-0000-0000-0000-000000000002",
		"bc-00000000-0000-0000-0000-000000000003"}
	for i, id := range ids {
		_, err := st.Save(sampleResult(id, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	summaries, err := st.List()
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	assert.Equal(t, ids[2], summaries[0].DerivedIdentifier)
	assert.Equal(t, ids[1], summaries[1].DerivedIdentifier)
	assert.Equal(t, ids[0], summaries[2].DerivedIdentifier)

	// Summaries carry listing fields without the payload.
	first := summaries[0]
	assert.Equal(t, ids[2], first.RecordKey)
	assert.NotEmpty(t, first.SourceURL)
	require.NotNil(t, first.StatusCode)
	assert.Equal(t, 200, *first.StatusCode)
	assert.NotEmpty(t, first.Timestamp)
}

func TestList_SkipsMalformedRecords(t *testing.T) {
	st := newTestStore(t)
	_, err := st.Save(sampleResult("bc-12345678-1234-1234-1234-123456789abc", time.Now()))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(st.dir, "broken.json"), []byte("{nope"), 0o644))

	summaries, err := st.List()
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestLoadLatest(t *testing.T) {
	st := newTestStore(t)
	const id = "bc-12345678-1234-1234-1234-123456789abc"

	older := sampleResult(id, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	newer := sampleResult(id, time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC))
	newer.ResponseSize = 42

	_, err := st.Save(older)
	require.NoError(t, err)
	_, err = st.Save(newer)
	require.NoError(t, err)

	loaded, key, err := st.LoadLatest(id)
	require.NoError(t, err)
	assert.NotEmpty(t, key)
	assert.Equal(t, 42, loaded.ResponseSize)
}

func TestLoad_RejectsPathTraversal(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Load("../outside")
	assert.Error(t, err)
}

func TestLoad_MissingRecord(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Load("bc-00000000-0000-0000-0000-000000000000")
	assert.Error(t, err)
}

func TestSave_SanitizesIdentifier(t *testing.T) {
	st := newTestStore(t)
	res := sampleResult("weird/id with spaces", time.Now())
	res.DerivedIdentifier = "weird/id with spaces"

	key, err := st.Save(res)
	require.NoError(t, err)
	assert.Equal(t, "weird_id_with_spaces", key)

	_, err = st.Load(key)
	require.NoError(t, err)
}
