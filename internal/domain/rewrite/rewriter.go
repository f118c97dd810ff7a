package rewrite

import (
	"bytes"
	"io"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

const (
	// Doctype prefixes every document the rewriter emits.
	Doctype = "<!DOCTYPE html>\n"

	// BridgeAttr marks the injected shim script.
	BridgeAttr = "data-nui-bridge"
	// OverlayAttr marks the edit mode outline the shim adds to the page.
	OverlayAttr = "data-nui-overlay"

	// DefaultUIFolder is the conventional folder tried as a second candidate.
	DefaultUIFolder = "ui/"
)

// resourceAttrs are the attributes that may point at a bundled file.
var resourceAttrs = []string{"src", "href"}

// Lookup resolves a bundle path to a handle URL.
type Lookup interface {
	URL(path string) (string, bool)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(path string) (string, bool)

// URL implements Lookup.
func (f LookupFunc) URL(path string) (string, bool) { return f(path) }

// Config configures a Rewriter.
type Config struct {
	// UIFolder is prefixed to a reference for the second candidate.
	UIFolder string
	// Owns reports references that already are resource handles.
	Owns func(ref string) bool
}

// Result is the output of one rewrite.
type Result struct {
	HTML        string
	Resolved    int
	Unresolved  int
	Skipped     int
	ParseFailed bool
	// Originals maps every handle URL written into the document back to
	// the attribute value it replaced.
	Originals map[string]string
}

// Diagnostics are cumulative counters for everything the rewriter did
// silently.
type Diagnostics struct {
	Documents     int64 `json:"documents"`
	ParseFailures int64 `json:"parse_failures"`
	Resolved      int64 `json:"resolved"`
	Unresolved    int64 `json:"unresolved"`
	Skipped       int64 `json:"skipped"`
}

// Rewriter turns an entry document into an instrumented preview document.
type Rewriter struct {
	uiFolder string
	owns     func(string) bool

	documents     atomic.Int64
	parseFailures atomic.Int64
	resolved      atomic.Int64
	unresolved    atomic.Int64
	skipped       atomic.Int64
}

// New creates a Rewriter.
func New(cfg Config) *Rewriter {
	if cfg.UIFolder == "" {
		cfg.UIFolder = DefaultUIFolder
	}
	if !strings.HasSuffix(cfg.UIFolder, "/") {
		cfg.UIFolder += "/"
	}
	if cfg.Owns == nil {
		cfg.Owns = func(string) bool { return false }
	}
	return &Rewriter{uiFolder: cfg.UIFolder, owns: cfg.Owns}
}

// Rewrite resolves local references against lookup, appends shim as the
// last element of body and serializes the document with a doctype. It
// never fails: on any parse problem the original content is returned
// unchanged and ParseFailed is set.
func (r *Rewriter) Rewrite(content string, lookup Lookup, shim string) (res Result) {
	r.documents.Add(1)
	defer func() {
		if rec := recover(); rec != nil {
			res = r.degraded(content)
		}
	}()

	doc, err := parse(content)
	if err != nil {
		return r.degraded(content)
	}

	res.Originals = make(map[string]string)
	doc.Find("[src], [href]").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range resourceAttrs {
			val, ok := s.Attr(attr)
			if !ok || val == "" {
				continue
			}
			switch ref := r.classify(val, lookup); ref.status {
			case StatusSkipped:
				res.Skipped++
			case StatusUnresolved:
				res.Unresolved++
			case StatusResolved:
				s.SetAttr(attr, ref.url)
				if _, seen := res.Originals[ref.url]; !seen {
					res.Originals[ref.url] = val
				}
				res.Resolved++
			}
		}
	})

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return r.degraded(content)
	}
	body.Nodes[0].AppendChild(scriptNode(shim))

	out, err := goquery.OuterHtml(doc.Find("html").First())
	if err != nil {
		return r.degraded(content)
	}
	res.HTML = Doctype + out

	r.resolved.Add(int64(res.Resolved))
	r.unresolved.Add(int64(res.Unresolved))
	r.skipped.Add(int64(res.Skipped))
	return res
}

// Restore undoes instrumentation on a document exported from the sandbox:
// the shim script and edit overlay are removed and handle URLs are mapped
// back through originals. It reports false and returns edited unchanged
// when the document cannot be parsed.
func (r *Rewriter) Restore(edited string, originals map[string]string) (out string, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			out, ok = edited, false
		}
	}()

	doc, err := parse(edited)
	if err != nil {
		return edited, false
	}

	doc.Find("[" + BridgeAttr + "], [" + OverlayAttr + "]").Remove()
	doc.Find("[src], [href]").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range resourceAttrs {
			val, ok := s.Attr(attr)
			if !ok {
				continue
			}
			if orig, ok := originals[val]; ok {
				s.SetAttr(attr, orig)
			}
		}
	})

	markup, err := goquery.OuterHtml(doc.Find("html").First())
	if err != nil {
		return edited, false
	}
	return Doctype + markup, true
}

// Diagnostics returns a snapshot of the cumulative counters.
func (r *Rewriter) Diagnostics() Diagnostics {
	return Diagnostics{
		Documents:     r.documents.Load(),
		ParseFailures: r.parseFailures.Load(),
		Resolved:      r.resolved.Load(),
		Unresolved:    r.unresolved.Load(),
		Skipped:       r.skipped.Load(),
	}
}

func (r *Rewriter) degraded(content string) Result {
	r.parseFailures.Add(1)
	return Result{HTML: content, ParseFailed: true}
}

// parse builds a document, transcoding to UTF-8 first when the input is
// not valid UTF-8.
func parse(content string) (*goquery.Document, error) {
	if utf8.ValidString(content) {
		return goquery.NewDocumentFromReader(strings.NewReader(content))
	}
	return goquery.NewDocumentFromReader(utf8Reader([]byte(content)))
}

func utf8Reader(data []byte) io.Reader {
	label := "windows-1252"
	if best, err := chardet.NewHtmlDetector().DetectBest(data); err == nil && best != nil {
		label = strings.ToLower(best.Charset)
	}
	r, err := charset.NewReaderLabel(label, bytes.NewReader(data))
	if err != nil {
		return bytes.NewReader(data)
	}
	return r
}

func scriptNode(src string) *html.Node {
	script := &html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
		Attr:     []html.Attribute{{Key: BridgeAttr}},
	}
	script.AppendChild(&html.Node{Type: html.TextNode, Data: src})
	return script
}
