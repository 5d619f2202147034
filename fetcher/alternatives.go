package fetcher

import (
	nurl "net/url"
	"strings"

	"github.com/cnosuke/agent-fetch/types"
	"go.uber.org/zap"
)

// ShouldTryAlternatives reports whether a primary result warrants the
// alternative-endpoint pass: no status at all, 403, 404, or a 5xx.
func ShouldTryAlternatives(res *types.FetchResult) bool {
	if res.StatusCode == nil {
		return true
	}
	code := *res.StatusCode
	return code == 403 || code == 404 || code >= 500
}

// AlternativeEndpoints derives the fixed candidate list for a failed URL:
// an /api/ path prefix, an api. subdomain, a .json suffix, and a data/ path,
// all preserving the conversation id. This is a best-effort heuristic, not
// endpoint discovery; URLs outside the anticipated shape yield candidates
// that simply fail.
func AlternativeEndpoints(originalURL string, id string) []string {
	u, err := nurl.Parse(originalURL)
	if err != nil || u.Host == "" || id == "" {
		return nil
	}

	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	host := u.Host
	apiHost := "api." + strings.TrimPrefix(host, "www.")

	return []string{
		scheme + "://" + host + "/api/agents/" + id,
		scheme + "://" + apiHost + "/agents/" + id,
		scheme + "://" + host + "/agents/" + id + ".json",
		scheme + "://" + host + "/agents/data/" + id,
	}
}

// ResolveAlternatives fetches each candidate in order, short-circuiting after
// the first 2xx. Every attempt made is returned so callers can report all
// failures, not just the last one.
func ResolveAlternatives(originalURL string, id string, fetchFn func(string) *types.FetchResult) []*types.FetchResult {
	candidates := AlternativeEndpoints(originalURL, id)
	attempts := make([]*types.FetchResult, 0, len(candidates))

	for _, candidate := range candidates {
		zap.S().Infow("trying alternative endpoint", "url", candidate)
		res := fetchFn(candidate)
		attempts = append(attempts, res)
		if res.Succeeded() {
			zap.S().Infow("alternative endpoint succeeded", "url", candidate)
			break
		}
	}
	return attempts
}

// FetchWithFallback runs the primary fetch and, when enabled and warranted,
// the one-shot alternative-endpoint pass. It returns the result to keep (the
// first success, otherwise the primary) together with every alternative
// attempt made.
func FetchWithFallback(f Fetcher, urlStr string, tryAlternatives bool) (*types.FetchResult, []*types.FetchResult) {
	primary := f.Fetch(urlStr)
	if !tryAlternatives || !ShouldTryAlternatives(primary) {
		return primary, nil
	}
	if !IsAgentID(primary.DerivedIdentifier) {
		zap.S().Debugw("no conversation id in URL, skipping alternative endpoints",
			"url", urlStr)
		return primary, nil
	}

	attempts := ResolveAlternatives(urlStr, primary.DerivedIdentifier, f.Fetch)
	for _, attempt := range attempts {
		if attempt.Succeeded() {
			return attempt, attempts
		}
	}
	return primary, attempts
}
