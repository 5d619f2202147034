// Package classifier decides whether fetched content is JSON, HTML, binary,
// or plain text, and extracts structured metadata from HTML documents.
// Classification is total: it degrades to a less specific variant on parse
// failure and never returns an error.
package classifier

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/cnosuke/agent-fetch/types"
	"go.uber.org/zap"
)

// Config - Classifier configuration
type Config struct {
	MaxRawHTML int // Stored raw HTML cap in characters; 0 disables truncation
}

const defaultMaxRawHTML = 5000

// Classifier implements the content classification ladder.
type Classifier struct {
	maxRawHTML int
}

// New creates a new Classifier.
func New(cfg *Config) *Classifier {
	maxRawHTML := defaultMaxRawHTML
	if cfg != nil && cfg.MaxRawHTML > 0 {
		maxRawHTML = cfg.MaxRawHTML
	}
	return &Classifier{maxRawHTML: maxRawHTML}
}

// Classify classifies raw response bytes under the declared content type.
// sourceURL is used only to resolve relative links in the readable excerpt;
// it never influences which variant is chosen.
//
// Decision order: declared JSON, HTML markers, binary sniff, text fallback.
func (c *Classifier) Classify(raw []byte, declaredContentType string, sourceURL string) *types.ClassifiedContent {
	ct := strings.ToLower(declaredContentType)

	body := raw
	if !isOpaqueType(ct) {
		body = maybeGunzip(raw)
	}

	if strings.Contains(ct, "json") {
		var value any
		err := json.Unmarshal(body, &value)
		if err == nil {
			return types.NewJSONContent(value)
		}
		zap.S().Debugw("declared JSON failed to parse, degrading to text",
			"content_type", declaredContentType,
			"error", err)
		return types.NewTextContent(string(body), err.Error())
	}

	if strings.Contains(ct, "html") || looksLikeHTML(body) {
		extracted := c.extract(body, sourceURL)
		return types.NewHTMLContent(c.truncateHTML(string(body)), extracted)
	}

	if isBinary(body) {
		// Record only the original response size; binary payloads are never
		// decoded or stored.
		return types.NewBinaryContent(len(raw))
	}

	return types.NewTextContent(string(body), "")
}

// truncateHTML caps stored markup so records stay human-readable.
func (c *Classifier) truncateHTML(s string) string {
	if len(s) <= c.maxRawHTML {
		return s
	}
	return s[:c.maxRawHTML] + "..."
}

// looksLikeHTML reports whether the body starts with a doctype or tag after
// leading whitespace.
func looksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '<' {
		return false
	}
	lower := strings.ToLower(string(trimmed[:min(len(trimmed), 64)]))
	if strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html") {
		return true
	}
	// A leading tag with an alphabetic name still counts as markup.
	return len(lower) > 1 && lower[1] >= 'a' && lower[1] <= 'z'
}

// isBinary reports whether the bytes cannot reasonably be treated as text:
// invalid UTF-8, embedded NUL, or a high proportion of non-printable bytes
// in the leading window.
func isBinary(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	if !utf8.Valid(body) {
		return true
	}

	window := body
	if len(window) > 512 {
		window = window[:512]
	}
	nonPrintable := 0
	for _, b := range window {
		if b == 0 {
			return true
		}
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
			nonPrintable++
		}
	}
	return nonPrintable*10 > len(window)*3
}

// isOpaqueType reports whether the declared type names content that should
// never be decoded (so gzip sniffing is skipped and size stays untouched).
func isOpaqueType(ct string) bool {
	if strings.Contains(ct, "octet-stream") {
		return true
	}
	for _, prefix := range []string{"image/", "audio/", "video/", "font/"} {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}

// maybeGunzip transparently decompresses a gzip body (magic 1f 8b). On any
// decompression failure the original bytes are returned and the binary sniff
// decides the outcome.
func maybeGunzip(body []byte) []byte {
	if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
		return body
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return body
	}
	defer zr.Close()
	decompressed, err := io.ReadAll(zr)
	if err != nil {
		zap.S().Debugw("gzip decompression failed", "error", err)
		return body
	}
	zap.S().Debugw("decompressed gzip body",
		"compressed_bytes", len(body),
		"decompressed_bytes", len(decompressed))
	return decompressed
}
