package rewrite

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testShim = "window.__bridge = true;"

func mapLookup(m map[string]string) Lookup {
	return LookupFunc(func(p string) (string, bool) {
		u, ok := m[p]
		return u, ok
	})
}

func ownsRes(ref string) bool { return strings.HasPrefix(ref, "/res/") }

func parseOut(t *testing.T, out string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)
	return doc
}

func TestRewriteResolvesUnderUIFolder(t *testing.T) {
	rw := New(Config{Owns: ownsRes})
	lookup := mapLookup(map[string]string{
		"ui/index.html": "/res/h1/index.html",
		"ui/a.png":      "/res/h2/a.png",
	})

	res := rw.Rewrite(`<html><body><img src="a.png"></body></html>`, lookup, testShim)

	require.False(t, res.ParseFailed)
	assert.True(t, strings.HasPrefix(res.HTML, "<!DOCTYPE html>\n<html>"))
	doc := parseOut(t, res.HTML)
	src, _ := doc.Find("img").Attr("src")
	assert.Equal(t, "/res/h2/a.png", src)
	assert.Equal(t, 1, res.Resolved)
	assert.Equal(t, "a.png", res.Originals["/res/h2/a.png"])

	last := doc.Find("body").Children().Last()
	assert.True(t, last.Is("script["+BridgeAttr+"]"), "shim must be the last element of body")
	assert.Equal(t, testShim, last.Text())
}

func TestRewriteLiteralCandidateWins(t *testing.T) {
	rw := New(Config{})
	lookup := mapLookup(map[string]string{
		"a.png":    "/res/literal/a.png",
		"ui/a.png": "/res/prefixed/a.png",
	})

	res := rw.Rewrite(`<img src="a.png">`, lookup, testShim)
	src, _ := parseOut(t, res.HTML).Find("img").Attr("src")
	assert.Equal(t, "/res/literal/a.png", src)
}

func TestRewriteSkipsAndUnresolved(t *testing.T) {
	rw := New(Config{Owns: ownsRes})
	lookup := mapLookup(map[string]string{
		"style.css":                     "/res/x/style.css",
		"https://cdn.example/lib.js":    "/res/never",
		"ui/https://cdn.example/lib.js": "/res/never",
	})
	doc := `<html><head>
<link rel="stylesheet" href="style.css">
<script src="https://cdn.example/lib.js"></script>
<script src="HTTP://CDN.EXAMPLE/OTHER.JS"></script>
</head><body>
<img src="data:image/png;base64,AAAA">
<img src="blob:http://x/123">
<img src="/res/old/a.png">
<img src="missing.png">
<a href="">empty</a>
</body></html>`

	res := rw.Rewrite(doc, lookup, testShim)
	out := parseOut(t, res.HTML)

	assert.Equal(t, 1, res.Resolved)
	assert.Equal(t, 5, res.Skipped)
	assert.Equal(t, 1, res.Unresolved)

	href, _ := out.Find("link").Attr("href")
	assert.Equal(t, "/res/x/style.css", href)
	src, _ := out.Find("script").First().Attr("src")
	assert.Equal(t, "https://cdn.example/lib.js", src)
	assert.Equal(t, 1, out.Find(`img[src="missing.png"]`).Length(), "unresolved references stay untouched")
	assert.Equal(t, 1, out.Find(`img[src="/res/old/a.png"]`).Length())
}

func TestRewriteAlwaysAddsDoctype(t *testing.T) {
	rw := New(Config{})
	for _, in := range []string{
		"<!doctype html><html><head></head><body></body></html>",
		"<p>fragment</p>",
		"",
	} {
		res := rw.Rewrite(in, mapLookup(nil), testShim)
		assert.True(t, strings.HasPrefix(res.HTML, Doctype), in)
		assert.Equal(t, 1, strings.Count(strings.ToLower(res.HTML), "<!doctype"), in)
	}
}

func TestRewriteRecoversFromPanics(t *testing.T) {
	rw := New(Config{})
	boom := LookupFunc(func(string) (string, bool) { panic("lookup exploded") })
	in := `<img src="a.png">`

	res := rw.Rewrite(in, boom, testShim)

	assert.True(t, res.ParseFailed)
	assert.Equal(t, in, res.HTML)
	assert.Equal(t, int64(1), rw.Diagnostics().ParseFailures)
}

func TestRewriteTranscodesLegacyEncodings(t *testing.T) {
	rw := New(Config{})
	in := "<html><head><meta charset=\"iso-8859-1\"></head><body><p>Caf\xe9 cr\xe8me br\xfbl\xe9e</p></body></html>"

	res := rw.Rewrite(in, mapLookup(nil), testShim)

	require.False(t, res.ParseFailed)
	assert.True(t, utf8.ValidString(res.HTML))
	assert.Contains(t, res.HTML, "Caf")
}

func TestRewriteDiagnosticsAccumulate(t *testing.T) {
	rw := New(Config{})
	lookup := mapLookup(map[string]string{"a.js": "/res/1/a.js"})
	rw.Rewrite(`<script src="a.js"></script><img src="b.png">`, lookup, "")
	rw.Rewrite(`<script src="a.js"></script>`, lookup, "")

	d := rw.Diagnostics()
	assert.Equal(t, int64(2), d.Documents)
	assert.Equal(t, int64(2), d.Resolved)
	assert.Equal(t, int64(1), d.Unresolved)
	assert.Equal(t, int64(0), d.ParseFailures)
}

func TestRestoreUndoesInstrumentation(t *testing.T) {
	rw := New(Config{Owns: ownsRes})
	lookup := mapLookup(map[string]string{"ui/a.png": "/res/h2/a.png"})
	res := rw.Rewrite(`<html><body><div id="box"><img src="a.png"></div></body></html>`, lookup, testShim)

	// what the shim would send back after a drag
	edited := strings.Replace(res.HTML, `<div id="box">`, `<div id="box" style="position: relative; left: 10px; top: 5px;">`, 1)
	edited = strings.Replace(edited, "</body>", `<div data-nui-overlay="" style="position: fixed;"></div></body>`, 1)

	restored, ok := rw.Restore(edited, res.Originals)
	require.True(t, ok)

	doc := parseOut(t, restored)
	src, _ := doc.Find("img").Attr("src")
	assert.Equal(t, "a.png", src)
	style, _ := doc.Find("#box").Attr("style")
	assert.Contains(t, style, "left: 10px")
	assert.Equal(t, 0, doc.Find("["+BridgeAttr+"]").Length())
	assert.Equal(t, 0, doc.Find("["+OverlayAttr+"]").Length())
	assert.True(t, strings.HasPrefix(restored, Doctype))

	again := rw.Rewrite(restored, lookup, testShim)
	src, _ = parseOut(t, again.HTML).Find("img").Attr("src")
	assert.Equal(t, "/res/h2/a.png", src, "restored documents resolve again on rebuild")
}

func TestReferences(t *testing.T) {
	rw := New(Config{Owns: ownsRes})
	lookup := mapLookup(map[string]string{"ui/app.js": "/res/1/app.js"})

	refs, err := rw.References(`<html><head>
<script src="app.js"></script>
<link href="https://fonts.example/css">
</head><body><img src="gone.png"></body></html>`, lookup)
	require.NoError(t, err)
	require.Len(t, refs, 3)

	assert.Equal(t, Reference{Tag: "script", Attr: "src", Value: "app.js", Status: StatusResolved, Path: "ui/app.js", URL: "/res/1/app.js"}, refs[0])
	assert.Equal(t, StatusSkipped, refs[1].Status)
	assert.Equal(t, "link", refs[1].Tag)
	assert.Equal(t, StatusUnresolved, refs[2].Status)
	assert.Equal(t, int64(0), rw.Diagnostics().Documents)
}

func TestNewNormalizesUIFolder(t *testing.T) {
	rw := New(Config{UIFolder: "html"})
	res := rw.Rewrite(`<img src="a.png">`, mapLookup(map[string]string{"html/a.png": "/res/1/a.png"}), "")
	assert.Equal(t, 1, res.Resolved)
}
