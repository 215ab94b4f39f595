package coco

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/whr-oam/coco-cli/internal/model"
)

// Parser extracts per-object estimations from an engine result document.
// The returned slice is aligned with objects; nil entries are unresolved.
type Parser interface {
	Name() string
	Parse(doc *goquery.Document, objects []string) []*float64
}

// DefaultParsers returns the built-in strategies in the order they are
// tried.
func DefaultParsers() []Parser {
	return []Parser{TableRowParser{}, HeaderColumnParser{}}
}

// Threshold is the acceptance rule for a parsed page.
type Threshold struct {
	Ratio   float64
	MinRows int
}

// DefaultThreshold accepts a page resolving max(3, floor(0.8·N)) objects.
func DefaultThreshold() Threshold {
	return Threshold{Ratio: 0.8, MinRows: 3}
}

// Required returns how many plausible estimations n objects need. A page
// never passes with zero.
func (t Threshold) Required(n int) int {
	return max(1, t.MinRows, int(math.Floor(float64(n)*t.Ratio)))
}

// ParseError reports a response whose best parse resolved too few objects.
type ParseError struct {
	Parser   string
	Resolved int
	Required int
	Total    int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("coco: parsed %d of %d estimations with %s, need %d", e.Resolved, e.Total, e.Parser, e.Required)
}

// TableRowParser reads rows whose first cell names an object and takes the
// first plausible number to its right.
type TableRowParser struct{}

// Name implements Parser.
func (TableRowParser) Name() string { return "table_row" }

// Parse implements Parser.
func (TableRowParser) Parse(doc *goquery.Document, objects []string) []*float64 {
	wanted := objectIndex(objects)
	out := make([]*float64, len(objects))

	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 2 {
			return
		}
		idx, ok := wanted[model.NormalizeName(cells.First().Text())]
		if !ok {
			return
		}
		cells.Slice(1, cells.Length()).EachWithBreak(func(_ int, td *goquery.Selection) bool {
			if v, ok := parseCell(td.Text()); ok {
				out[idx] = model.Float(v)
				return false
			}
			return true
		})
	})
	return out
}

var estimationHeader = regexp.MustCompile(`(?i)^(becsl[ée]s|estimation|est\.?)$`)

// HeaderColumnParser locates a table header cell titled as the estimation
// column and reads that column for rows whose first cell names an object.
// It covers result layouts where other numeric columns precede the
// estimation.
type HeaderColumnParser struct{}

// Name implements Parser.
func (HeaderColumnParser) Name() string { return "header_column" }

// Parse implements Parser.
func (HeaderColumnParser) Parse(doc *goquery.Document, objects []string) []*float64 {
	wanted := objectIndex(objects)
	out := make([]*float64, len(objects))

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		col := -1
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			cells := tr.Find("th, td")
			if col < 0 {
				cells.EachWithBreak(func(i int, cell *goquery.Selection) bool {
					if estimationHeader.MatchString(strings.TrimSpace(cell.Text())) {
						col = i
						return false
					}
					return true
				})
				return
			}
			if cells.Length() <= col {
				return
			}
			idx, ok := wanted[model.NormalizeName(cells.First().Text())]
			if !ok {
				return
			}
			if v, ok := parseCell(cells.Eq(col).Text()); ok {
				out[idx] = model.Float(v)
			}
		})
	})
	return out
}

// FindDetailURL returns the absolute href of the first anchor whose text
// matches "open url", or "" when there is none.
func FindDetailURL(doc *goquery.Document, base string) string {
	var href string
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if !openURLText.MatchString(a.Text()) {
			return true
		}
		href = a.AttrOr("href", "")
		return false
	})
	if href == "" {
		return ""
	}
	abs, err := resolve(base, href)
	if err != nil {
		return ""
	}
	return abs
}

var openURLText = regexp.MustCompile(`(?i)open url`)

// Plausible counts the entries of est that pass the plausibility check.
func Plausible(est []*float64) int {
	n := 0
	for _, v := range est {
		if v != nil && model.PlausibleEstimation(*v) {
			n++
		}
	}
	return n
}

func objectIndex(objects []string) map[string]int {
	m := make(map[string]int, len(objects))
	for i, name := range objects {
		key := model.NormalizeName(name)
		if _, dup := m[key]; !dup {
			m[key] = i
		}
	}
	return m
}

// parseCell reads a result cell: trimmed, first ',' as decimal point, and
// accepted only as a plausible estimation.
func parseCell(s string) (float64, bool) {
	s = strings.Replace(strings.TrimSpace(s), ",", ".", 1)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !model.PlausibleEstimation(v) {
		return 0, false
	}
	return v, true
}

// evaluate runs the parsers in order over html and returns the first result
// meeting the threshold. The error is a *ParseError for the best attempt.
func evaluate(html string, objects []string, parsers []Parser, t Threshold) ([]*float64, *goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, &ParseError{Parser: "html", Required: t.Required(len(objects)), Total: len(objects)}
	}

	required := t.Required(len(objects))
	best := &ParseError{Required: required, Total: len(objects)}
	for _, p := range parsers {
		est := p.Parse(doc, objects)
		n := Plausible(est)
		if n >= required {
			return est, doc, nil
		}
		if best.Parser == "" || n > best.Resolved {
			best.Parser = p.Name()
			best.Resolved = n
		}
	}
	return nil, doc, best
}
