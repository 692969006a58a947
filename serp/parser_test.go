package serp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<html><body>
<div id="tads">
  <div class="g"><a href="https://ads.example.com/landing"><h3>Sponsored</h3></a></div>
</div>
<div id="search">
  <div class="g"><a href="https://www.google.com/maps?q=plumber">Maps</a></div>
  <div class="g"><a href="https://first.example.org/a"><h3>First</h3></a><div class="VwiC3b">one</div></div>
  <div class="g"><a href="/search?q=related">Related searches</a></div>
  <div class="g"><div>no link here</div></div>
  <div class="g" data-text-ad="1"><a href="https://advert.example.net/">Ad</a></div>
  <div class="g"><a href="https://second.example.org/b"><h3>Second</h3></a></div>
  <div class="g">
    <a href="https://WWW.Example.com/page"><h3>  Target   Title </h3></a>
    <div data-sncf="1">Target   snippet text</div>
    <div class="VwiC3b">ignored</div>
  </div>
  <div class="g"><a href="https://example.com/again"><h3>Again</h3></a></div>
</div>
</body></html>`

func TestParse_SkipsNonOrganicEntries(t *testing.T) {
	m, ok := Parse(resultsPage, "example.com")
	require.True(t, ok)

	assert.Equal(t, 3, m.Position, "ads, engine links and link-less entries must not consume positions")
	assert.Equal(t, "https://WWW.Example.com/page", m.URL)
	assert.Equal(t, "Target Title", m.Title)
	assert.Equal(t, "Target snippet text", m.Snippet)
}

func TestParse_CaseAndWWWInsensitive(t *testing.T) {
	for _, domain := range []string{"example.com", "EXAMPLE.COM", "www.example.com", " Example.com "} {
		m, ok := Parse(resultsPage, domain)
		require.True(t, ok, domain)
		assert.Equal(t, 3, m.Position, domain)
	}
}

func TestParse_SubstringMatchFirstWins(t *testing.T) {
	m, ok := Parse(resultsPage, "example.org")
	require.True(t, ok)
	assert.Equal(t, 1, m.Position)
	assert.Equal(t, "First", m.Title)
	assert.Equal(t, "one", m.Snippet)
}

func TestScan_NotFoundIsRecognized(t *testing.T) {
	r := Scan(resultsPage, "absent.example")
	assert.Nil(t, r.Match)
	assert.True(t, r.Recognized)
	assert.Equal(t, 4, r.Organic)

	_, ok := Parse(resultsPage, "absent.example")
	assert.False(t, ok)
}

func TestScan_UnrecognizedLayout(t *testing.T) {
	r := Scan(`<html><body><p>Our systems have detected unusual traffic</p></body></html>`, "example.com")
	assert.Nil(t, r.Match)
	assert.False(t, r.Recognized)
	assert.Zero(t, r.Containers)
}

func TestScan_EmptyInputs(t *testing.T) {
	assert.Nil(t, Scan("", "example.com").Match)
	assert.Nil(t, Scan(resultsPage, "   ").Match)
}

func TestParse_UnwrapsRedirectLinks(t *testing.T) {
	page := `<div class="g"><a href="/url?q=https://other.example/x&sa=U">Other</a></div>
<div class="g"><a href="/url?q=https://shop.example.com/item%3Fid%3D1&sa=U"><h3>Shop</h3></a></div>`

	m, ok := Parse(page, "example.com")
	require.True(t, ok)
	assert.Equal(t, 2, m.Position)
	assert.Equal(t, "https://shop.example.com/item?id=1", m.URL)
	assert.Empty(t, m.Snippet, "missing snippet degrades to empty")
}

func TestParse_FallbackContainers(t *testing.T) {
	page := `<div data-sokoban-container="a"><a href="https://a.example/">A</a></div>
<div data-sokoban-container="b"><a href="https://b.example/"><h3>B</h3></a></div>`

	m, ok := Parse(page, "b.example")
	require.True(t, ok)
	assert.Equal(t, 2, m.Position)
	assert.Equal(t, "B", m.Title)
}

func TestParse_NestedContainersCountedOnce(t *testing.T) {
	page := `<div class="g"><div class="g"><a href="https://a.example/">A</a></div></div>
<div class="g"><a href="https://b.example/">B</a></div>`

	m, ok := Parse(page, "b.example")
	require.True(t, ok)
	assert.Equal(t, 2, m.Position)
	assert.Empty(t, m.Title, "missing title degrades to empty")
}

func TestNormalizeHost(t *testing.T) {
	assert.Equal(t, "example.com", NormalizeHost("WWW.Example.COM"))
	assert.Equal(t, "shop.www.example.com", NormalizeHost("shop.www.example.com"))
}

func TestParse_EngineOwnedTargetDomain(t *testing.T) {
	page := `<div class="g"><a href="https://www.google.com/maps?q=x">Maps</a></div>
<div class="g"><a href="https://news.example.org/">News</a></div>
<div class="g"><a href="https://blog.google/products/"><h3>Products</h3></a></div>`

	m, ok := Parse(page, "blog.google")
	require.True(t, ok)
	assert.Equal(t, 2, m.Position, "other engine links still do not consume positions")
	assert.Equal(t, "Products", m.Title)

	r := Scan(page, "absent.example")
	assert.Equal(t, 1, r.Organic)
}

func TestParse_URLFormDomain(t *testing.T) {
	m, ok := Parse(resultsPage, "https://www.Example.com/")
	require.True(t, ok)
	assert.Equal(t, 3, m.Position)
}

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com"},
		{"https://Example.com/", "example.com"},
		{"example.com/path", "example.com"},
		{"http://www.example.com:8080/a?b=c", "example.com"},
		{"example.com:443", "example.com"},
		{"Example.com.", "example.com"},
		{"http://", ""},
		{"/pricing", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDomain(tt.in), tt.in)
	}
}
