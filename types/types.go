package types

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
)

// Content kind discriminants used in the serialized record format.
const (
	KindJSON   = "json"
	KindHTML   = "html"
	KindBinary = "binary"
	KindText   = "text"
)

// TimestampFormat renders instants in UTC with an explicit suffix,
// e.g. "2026-08-23 14:03:07 UTC".
const TimestampFormat = "2006-01-02 15:04:05 MST"

// FormatTimestamp formats t in the record timestamp format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// FetchResult - The outcome of one fetch attempt. Immutable once created.
// Either StatusCode or ErrorMessage is set; never neither.
type FetchResult struct {
	SourceURL         string             `json:"source_url"`
	DerivedIdentifier string             `json:"derived_identifier"`
	StatusCode        *int               `json:"status_code,omitempty"`
	ContentType       string             `json:"content_type"`
	ResponseSize      int                `json:"response_size"`
	ErrorMessage      string             `json:"error_message,omitempty"`
	Timestamp         string             `json:"timestamp"`
	Data              *ClassifiedContent `json:"data"`
}

// Succeeded reports whether the fetch completed with a 2xx status.
func (r *FetchResult) Succeeded() bool {
	return r.StatusCode != nil && *r.StatusCode >= 200 && *r.StatusCode < 300
}

// Summary - Listing-view projection of a stored FetchResult.
type Summary struct {
	RecordKey         string `json:"record_key"`
	DerivedIdentifier string `json:"derived_identifier"`
	SourceURL         string `json:"source_url"`
	StatusCode        *int   `json:"status_code,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
	Timestamp         string `json:"timestamp"`
}

// ExtractedInfo - Structured metadata pulled out of an HTML document.
type ExtractedInfo struct {
	Title           string            `json:"title,omitempty"`
	MetaTags        map[string]string `json:"meta_tags"`
	StructuredData  []json.RawMessage `json:"structured_data"`
	DataAttributes  map[string]string `json:"data_attributes"`
	ReadableExcerpt string            `json:"readable_excerpt,omitempty"`
}

// ClassifiedContent - Tagged union over the four content variants. Exactly
// one variant is populated and Kind names it.
type ClassifiedContent struct {
	Kind string

	// json variant
	Value any

	// html variant
	RawHTML   string
	Extracted *ExtractedInfo

	// binary variant
	SizeBytes int

	// text variant
	Content string

	// ParseError carries the degradation reason when a JSON body failed to
	// parse and classification fell back to text.
	ParseError string
}

// NewJSONContent returns the Json variant wrapping an already-parsed value.
func NewJSONContent(value any) *ClassifiedContent {
	return &ClassifiedContent{Kind: KindJSON, Value: value}
}

// NewHTMLContent returns the Html variant with the (possibly truncated) raw
// markup and its extracted metadata.
func NewHTMLContent(rawHTML string, extracted *ExtractedInfo) *ClassifiedContent {
	return &ClassifiedContent{Kind: KindHTML, RawHTML: rawHTML, Extracted: extracted}
}

// NewBinaryContent returns the Binary variant. Only the byte length is
// recorded; the payload itself is never stored.
func NewBinaryContent(sizeBytes int) *ClassifiedContent {
	return &ClassifiedContent{Kind: KindBinary, SizeBytes: sizeBytes}
}

// NewTextContent returns the Text variant. parseError is non-empty when a
// more specific classification degraded to text.
func NewTextContent(content string, parseError string) *ClassifiedContent {
	return &ClassifiedContent{Kind: KindText, Content: content, ParseError: parseError}
}

type jsonContent struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

type htmlContent struct {
	Type      string         `json:"type"`
	RawHTML   string         `json:"raw_html"`
	Extracted *ExtractedInfo `json:"extracted"`
}

type binaryContent struct {
	Type      string `json:"type"`
	SizeBytes int    `json:"size_bytes"`
}

type textContent struct {
	Type       string `json:"type"`
	Content    string `json:"content"`
	ParseError string `json:"parse_error,omitempty"`
}

// MarshalJSON serializes the populated variant with a "type" discriminant.
func (c *ClassifiedContent) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case KindJSON:
		return json.Marshal(jsonContent{Type: KindJSON, Value: c.Value})
	case KindHTML:
		return json.Marshal(htmlContent{Type: KindHTML, RawHTML: c.RawHTML, Extracted: c.Extracted})
	case KindBinary:
		return json.Marshal(binaryContent{Type: KindBinary, SizeBytes: c.SizeBytes})
	case KindText:
		return json.Marshal(textContent{Type: KindText, Content: c.Content, ParseError: c.ParseError})
	default:
		return nil, errors.Newf("unknown content kind: %q", c.Kind)
	}
}

// UnmarshalJSON restores the variant named by the "type" discriminant.
func (c *ClassifiedContent) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return errors.Wrap(err, "failed to read content discriminant")
	}

	switch probe.Type {
	case KindJSON:
		var v jsonContent
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*c = ClassifiedContent{Kind: KindJSON, Value: v.Value}
	case KindHTML:
		var v htmlContent
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*c = ClassifiedContent{Kind: KindHTML, RawHTML: v.RawHTML, Extracted: v.Extracted}
	case KindBinary:
		var v binaryContent
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*c = ClassifiedContent{Kind: KindBinary, SizeBytes: v.SizeBytes}
	case KindText:
		var v textContent
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*c = ClassifiedContent{Kind: KindText, Content: v.Content, ParseError: v.ParseError}
	default:
		return errors.Newf("unknown content kind: %q", probe.Type)
	}
	return nil
}
