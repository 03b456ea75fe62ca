// Package prefilter removes obvious junk before the paid classification
// call. Everything here is deterministic string matching: no network, no
// model calls.
package prefilter

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/etindell/bireme-research/internal/domain"
)

// URL path segments that indicate a stock-quote or profile page rather than
// an article.
var junkPathPattern = regexp.MustCompile(`(?i)/quotes?/|/symbol/|/stock/quote|/market-activity/|/investing/stock/|/finance/quote|/price-target/|/etf/|/mutual-fund/`)

// Domains that are almost never real news articles.
var junkDomains = map[string]struct{}{
	"stockanalysis.com": {},
	"tradingview.com":   {},
	"morningstar.com":   {},
	"tipranks.com":      {},
	"simplywall.st":     {},
	"macrotrends.net":   {},
	"wisesheets.io":     {},
	"dividendmax.com":   {},
	"finviz.com":        {},
	"chartmill.com":     {},
}

// Legal suffixes stripped from company names; longer forms listed first so
// the first match wins.
var legalSuffixes = []string{
	", Inc.", ", Inc", " Inc.", " Inc",
	", LLC", " LLC",
	", Ltd.", ", Ltd", " Ltd.", " Ltd",
	", PLC", " PLC", ", Plc", " Plc",
	" Corporation", " Corp.", " Corp",
	" Company", " Co.", " Co",
	" Incorporated",
	" Limited",
	" Group",
	" Holdings",
	" N.V.", " N.V",
	" S.A.", " S.A",
	" SE",
	" AG",
	" S.p.A.", " S.p.A",
	" Oyj",
	" ASA",
	" AB",
}

// Generic business words that would match far too many unrelated articles.
var genericWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "from": {}, "with": {},
	"group": {}, "holdings": {}, "international": {}, "technologies": {},
	"systems": {}, "services": {}, "global": {}, "capital": {},
	"financial": {}, "resources": {}, "industries": {}, "partners": {},
	"management": {}, "solutions": {}, "enterprises": {},
}

// Domain extracts the bare lowercase domain of a URL, without a leading www.
func Domain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// CommonNames returns lowercase name variants for relevance matching:
// the full legal name, the legal-suffix-stripped common name, and individual
// significant words of multi-word names.
//
//	"Moderna, Inc." -> {"moderna, inc.", "moderna"}
//	"BP"            -> {"bp"}
func CommonNames(companyName string) map[string]struct{} {
	names := map[string]struct{}{strings.ToLower(companyName): {}}

	short := companyName
	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(short, suffix) {
			short = strings.TrimSpace(strings.TrimSuffix(short, suffix))
			break
		}
	}

	shortLower := strings.ToLower(short)
	if shortLower != "" {
		names[shortLower] = struct{}{}
	}

	// Individual words only for multi-word names, and only words of 4+
	// chars outside the generic stoplist, to limit false positives.
	words := strings.Fields(shortLower)
	if len(words) > 1 {
		for _, word := range words {
			if len(word) < 4 {
				continue
			}
			if _, generic := genericWords[word]; generic {
				continue
			}
			names[word] = struct{}{}
		}
	}

	return names
}

// ShortName picks the shortest usable name variant, i.e. the "common" name
// search engines actually match on.
func ShortName(companyName string) string {
	best := companyName
	for name := range CommonNames(companyName) {
		if len(name) > 2 && len(name) < len(best) {
			best = name
		}
	}
	return best
}

// Apply drops items on junk or blacklisted domains, quote/profile pages, and
// items whose title+snippet never mention the company or a ticker. It must
// never reject an item that names the company exactly, since it gates every
// item ahead of classification.
func Apply(items []domain.RawItem, companyName string, tickerSymbols []string, blacklist []string, logger *slog.Logger) []domain.RawItem {
	blacklisted := make(map[string]struct{}, len(blacklist))
	for _, d := range blacklist {
		blacklisted[strings.ToLower(d)] = struct{}{}
	}

	terms := CommonNames(companyName)
	for _, sym := range tickerSymbols {
		terms[strings.ToLower(sym)] = struct{}{}
		// Exchange-suffix-stripped base form, e.g. "7203" from "7203.T".
		if base, _, ok := strings.Cut(sym, "."); ok && base != "" {
			terms[strings.ToLower(base)] = struct{}{}
		}
	}

	kept := make([]domain.RawItem, 0, len(items))
	for _, item := range items {
		dom := Domain(item.URL)

		if _, junk := junkDomains[dom]; junk {
			debug(logger, "prefilter: junk domain", "domain", dom)
			continue
		}
		if _, denied := blacklisted[dom]; denied {
			debug(logger, "prefilter: blacklisted domain", "domain", dom)
			continue
		}
		if junkPathPattern.MatchString(item.URL) {
			debug(logger, "prefilter: quote-pattern url", "url", item.URL)
			continue
		}

		text := strings.ToLower(item.Title + " " + item.Content)
		if !mentionsAny(text, terms) {
			debug(logger, "prefilter: no relevance match", "title", item.Title)
			continue
		}

		kept = append(kept, item)
	}

	if removed := len(items) - len(kept); removed > 0 && logger != nil {
		logger.Info("prefilter done", "company", companyName, "kept", len(kept), "removed", removed)
	}
	return kept
}

func mentionsAny(text string, terms map[string]struct{}) bool {
	for term := range terms {
		if term != "" && strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func debug(logger *slog.Logger, msg string, args ...any) {
	if logger != nil {
		logger.Debug(msg, args...)
	}
}
