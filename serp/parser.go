// Package serp extracts organic result entries from a search results page
// and locates a target domain among them.
package serp

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var (
	// Result containers, tried in order. The engine's markup changes often,
	// so the second selector covers the newer layout.
	containerSelectors = []cascadia.Selector{
		cascadia.MustCompile("div.g"),
		cascadia.MustCompile("div[data-sokoban-container]"),
	}

	adBlocks    = cascadia.MustCompile("#tads, #bottomads, #tvcap")
	textAd      = cascadia.MustCompile("[data-text-ad]")
	firstLink   = cascadia.MustCompile("a[href]")
	titleSel    = cascadia.MustCompile("h3")
	snippetSels = []cascadia.Selector{
		cascadia.MustCompile(`div[data-sncf="1"]`),
		cascadia.MustCompile("div.VwiC3b"),
	}
)

// Match is the first organic entry whose host contains the target domain.
type Match struct {
	Position int
	URL      string
	Title    string
	Snippet  string
}

// Report is the full outcome of scanning a page.
type Report struct {
	// Match is nil when the domain was not among the organic entries.
	Match *Match

	// Containers is the number of result containers found on the page.
	Containers int

	// Organic is the number of organic entries enumerated before the scan
	// stopped (at the match, or at the end of the page).
	Organic int

	// Recognized is false when no result container was found at all. Such a
	// page still reports "not found"; callers may log it.
	Recognized bool
}

// Parse returns the target domain's match, or false when it is not ranked
// within the page. It never fails: malformed markup reads as "not found".
func Parse(page, domain string) (*Match, bool) {
	r := Scan(page, domain)
	return r.Match, r.Match != nil
}

// Scan enumerates result containers in page order, skipping ads and the
// engine's own links, and stops at the first organic entry whose host
// contains domain.
func Scan(page, domain string) Report {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return Report{}
	}
	doc := goquery.NewDocumentFromNode(root)

	var containers *goquery.Selection
	for _, sel := range containerSelectors {
		containers = topLevel(doc.FindMatcher(sel), sel)
		if containers.Length() > 0 {
			break
		}
	}

	report := Report{
		Containers: containers.Length(),
		Recognized: containers.Length() > 0,
	}
	target := NormalizeDomain(domain)
	if target == "" {
		return report
	}

	containers.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if isAd(s) {
			return true
		}
		href, ok := s.FindMatcher(firstLink).First().Attr("href")
		if !ok {
			return true
		}
		link, host := resolveLink(href)
		if host == "" {
			return true
		}
		// A target on an engine-owned host is still the client's result.
		matched := strings.Contains(host, target)
		if !matched && isEngineHost(host) {
			return true
		}

		report.Organic++
		if !matched {
			return true
		}

		report.Match = &Match{
			Position: report.Organic,
			URL:      link,
			Title:    text(s.FindMatcher(titleSel).First()),
			Snippet:  snippet(s),
		}
		return false
	})

	return report
}

// NormalizeHost lower-cases host and strips a leading "www.".
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(host, "www.")
}

// NormalizeDomain reduces a configured domain, which may be written as a
// URL ("https://www.Example.com/"), to the bare host Scan matches against.
// It returns "" when no host can be extracted.
func NormalizeDomain(domain string) string {
	domain = strings.TrimSpace(domain)
	if strings.Contains(domain, "://") {
		u, err := url.Parse(domain)
		if err != nil {
			return ""
		}
		domain = u.Hostname()
	} else {
		if i := strings.IndexAny(domain, "/?#"); i >= 0 {
			domain = domain[:i]
		}
		if i := strings.LastIndexByte(domain, ':'); i >= 0 {
			domain = domain[:i]
		}
	}
	host := strings.TrimSuffix(NormalizeHost(domain), ".")
	if host == "" || strings.ContainsAny(host, "/:@ ") {
		return ""
	}
	return host
}

// topLevel drops containers nested inside another container of the same
// kind so each result is counted once.
func topLevel(s *goquery.Selection, sel cascadia.Selector) *goquery.Selection {
	return s.FilterFunction(func(_ int, c *goquery.Selection) bool {
		return c.ParentsMatcher(sel).Length() == 0
	})
}

func isAd(s *goquery.Selection) bool {
	if s.ParentsMatcher(adBlocks).Length() > 0 || s.IsMatcher(adBlocks) {
		return true
	}
	return s.IsMatcher(textAd) || s.FindMatcher(textAd).Length() > 0
}

// resolveLink unwraps "/url?q=" redirects and returns the absolute link
// with its normalized host. Relative links yield an empty host.
func resolveLink(href string) (string, string) {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "/url?") {
		if u, err := url.Parse(href); err == nil {
			q := u.Query()
			if target := q.Get("q"); target != "" {
				href = target
			} else if target := q.Get("url"); target != "" {
				href = target
			}
		}
	}

	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return href, ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return href, ""
	}
	return href, NormalizeHost(u.Hostname())
}

// isEngineHost reports whether host belongs to the search engine itself
// (navigation, cache, maps and similar chrome).
func isEngineHost(host string) bool {
	if strings.HasSuffix(host, "googleusercontent.com") {
		return true
	}
	for _, label := range strings.Split(host, ".") {
		if label == "google" {
			return true
		}
	}
	return false
}

func snippet(s *goquery.Selection) string {
	for _, sel := range snippetSels {
		if n := s.FindMatcher(sel).First(); n.Length() > 0 {
			return text(n)
		}
	}
	return ""
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
