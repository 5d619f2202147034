package fetcher

import (
	"crypto/sha256"
	"encoding/hex"
	nurl "net/url"
	"regexp"
	"strings"
)

// Conversation ids look like bc-<uuid>.
var reAgentID = regexp.MustCompile(`(?i)bc-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

// Query parameters that carry the conversation id.
var idQueryParams = []string{"selectedBcId", "bcId"}

// DeriveIdentifier derives the natural record key for a URL. It prefers the
// conversation id from the query string (selectedBcId or bcId), then any
// bc-<uuid> substring anywhere in the URL, and finally a short content hash
// of the whole URL so every URL has a stable, deterministic key.
func DeriveIdentifier(rawURL string) string {
	if u, err := nurl.Parse(rawURL); err == nil {
		for key, values := range u.Query() {
			if !matchesIDParam(key) {
				continue
			}
			for _, v := range values {
				if m := reAgentID.FindString(v); m != "" {
					return strings.ToLower(m)
				}
			}
		}
	}

	if m := reAgentID.FindString(rawURL); m != "" {
		return strings.ToLower(m)
	}

	sum := sha256.Sum256([]byte(rawURL))
	return "url-" + hex.EncodeToString(sum[:6])
}

// IsAgentID reports whether an identifier is a real conversation id rather
// than a hash fallback. Only real ids have meaningful alternative endpoints.
func IsAgentID(id string) bool {
	return reAgentID.MatchString(id)
}

func matchesIDParam(key string) bool {
	for _, p := range idQueryParams {
		if strings.EqualFold(key, p) {
			return true
		}
	}
	return false
}
