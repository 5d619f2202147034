package classifier

import (
	"bytes"
	"encoding/json"
	nurl "net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/cnosuke/agent-fetch/types"
)

// Pages under the agents URL scheme are server-rendered shells that hydrate
// client-side; hydration state lives in inline scripts assigning to globals
// like window.__INITIAL_STATE__.
var (
	reGlobalState = regexp.MustCompile(`(?ms)(\{.*?\});?\s*$`)

	globalStateMarkers = []string{"window.__", "window.INITIAL"}
)

// excerptLimit caps the readable excerpt stored on a record.
const excerptLimit = 2000

// extract pulls title, meta tags, embedded JSON, and data-* attributes out of
// an HTML document. Extraction failures degrade to an empty ExtractedInfo;
// they never propagate.
func (c *Classifier) extract(body []byte, sourceURL string) *types.ExtractedInfo {
	info := &types.ExtractedInfo{
		MetaTags:       map[string]string{},
		StructuredData: []json.RawMessage{},
		DataAttributes: map[string]string{},
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		zap.S().Debugw("HTML parse failed, returning empty extraction", "error", err)
		return info
	}

	if title := doc.Find("title").First(); title.Length() > 0 {
		info.Title = strings.TrimSpace(title.Text())
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			name, ok = s.Attr("property")
		}
		content, hasContent := s.Attr("content")
		if ok && name != "" && hasContent {
			// Last occurrence wins on duplicate keys.
			info.MetaTags[name] = content
		}
	})

	info.StructuredData = collectStructuredData(doc)
	info.DataAttributes = collectDataAttributes(doc)

	if excerpt := readableExcerpt(body, sourceURL); excerpt != "" {
		info.ReadableExcerpt = excerpt
	}

	return info
}

// collectStructuredData gathers parsed JSON from ld+json blocks, the Next.js
// data script, and inline scripts assigning to known global state variables,
// in document order. Blocks that fail to parse are skipped.
func collectStructuredData(doc *goquery.Document) []json.RawMessage {
	out := []json.RawMessage{}

	doc.Find(`script[type="application/ld+json"], script#__NEXT_DATA__[type="application/json"]`).
		Each(func(_ int, s *goquery.Selection) {
			if raw, ok := compactJSON(s.Text()); ok {
				out = append(out, raw)
			}
		})

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if t, _ := s.Attr("type"); t == "application/ld+json" || t == "application/json" {
			return // already collected above
		}
		text := s.Text()
		if !mentionsGlobalState(text) {
			return
		}
		for _, match := range reGlobalState.FindAllStringSubmatch(text, -1) {
			if raw, ok := compactJSON(match[1]); ok {
				out = append(out, raw)
			}
		}
	})

	return out
}

func mentionsGlobalState(script string) bool {
	for _, marker := range globalStateMarkers {
		if strings.Contains(script, marker) {
			return true
		}
	}
	return false
}

// compactJSON validates candidate JSON text and returns it whitespace-compacted.
func compactJSON(text string) (json.RawMessage, bool) {
	text = strings.TrimSpace(text)
	if text == "" || !json.Valid([]byte(text)) {
		return nil, false
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(text)); err != nil {
		return nil, false
	}
	return json.RawMessage(buf.Bytes()), true
}

// collectDataAttributes maps every data-* attribute found on any element,
// keyed without the data- prefix. Last-seen wins on collision.
func collectDataAttributes(doc *goquery.Document) map[string]string {
	attrs := map[string]string{}
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, node := range s.Nodes {
			for _, a := range node.Attr {
				if strings.HasPrefix(a.Key, "data-") {
					attrs[strings.TrimPrefix(a.Key, "data-")] = a.Val
				}
			}
		}
	})
	return attrs
}

// readableExcerpt runs the readability algorithm over the document and
// converts the article to Markdown. Returns "" when no article can be
// extracted; the caller treats that as "no excerpt", not an error.
func readableExcerpt(body []byte, sourceURL string) string {
	pageURL, err := nurl.Parse(sourceURL)
	if err != nil || pageURL.Host == "" {
		pageURL, _ = nurl.Parse("http://localhost/")
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		zap.S().Debugw("readability extraction failed", "error", err)
		return ""
	}
	if strings.TrimSpace(article.Content) == "" {
		return ""
	}

	conv := md.NewConverter("", true, nil)
	markdown, err := conv.ConvertString(article.Content)
	if err != nil {
		zap.S().Debugw("markdown conversion failed", "error", err)
		return ""
	}

	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	if len(markdown) > excerptLimit {
		markdown = markdown[:excerptLimit] + "..."
	}
	if article.Title != "" {
		markdown = "# " + article.Title + "\n\n" + markdown
	}
	return markdown
}
