package rewrite

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Status is the resolution outcome of one reference.
type Status string

const (
	StatusResolved   Status = "resolved"
	StatusUnresolved Status = "unresolved"
	StatusSkipped    Status = "skipped"
)

// Reference is one src/href attribute found in a document.
type Reference struct {
	Tag    string `json:"tag"`
	Attr   string `json:"attr"`
	Value  string `json:"value"`
	Status Status `json:"status"`
	Path   string `json:"path,omitempty"`
	URL    string `json:"url,omitempty"`
}

type classified struct {
	status Status
	path   string
	url    string
}

// classify applies the skip rules, then tries the literal value and the
// value under the UI folder, in that order.
func (r *Rewriter) classify(val string, lookup Lookup) classified {
	lower := strings.ToLower(val)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(val, "data:") || strings.HasPrefix(val, "blob:") || r.owns(val) {
		return classified{status: StatusSkipped}
	}
	if lookup != nil {
		for _, candidate := range []string{val, r.uiFolder + val} {
			if url, ok := lookup.URL(candidate); ok {
				return classified{status: StatusResolved, path: candidate, url: url}
			}
		}
	}
	return classified{status: StatusUnresolved}
}

// References lists every src/href reference of content with the outcome a
// rewrite against lookup would produce. It does not touch the counters.
func (r *Rewriter) References(content string, lookup Lookup) ([]Reference, error) {
	doc, err := htmlquery.Parse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}
	nodes, err := htmlquery.QueryAll(doc, "//*[@src or @href]")
	if err != nil {
		return nil, err
	}

	refs := make([]Reference, 0, len(nodes))
	for _, n := range nodes {
		for _, attr := range resourceAttrs {
			if !hasAttr(n.Attr, attr) {
				continue
			}
			val := htmlquery.SelectAttr(n, attr)
			if val == "" {
				continue
			}
			c := r.classify(val, lookup)
			refs = append(refs, Reference{
				Tag:    n.Data,
				Attr:   attr,
				Value:  val,
				Status: c.status,
				Path:   c.path,
				URL:    c.url,
			})
		}
	}
	return refs, nil
}

func hasAttr(attrs []html.Attribute, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}
