package coco

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Candidate is one form-encoded payload convention.
type Candidate struct {
	Name   string
	Fields url.Values
}

// CandidateOptions holds the engine run parameters shared by all candidates.
type CandidateOptions struct {
	Stair       int
	Model       string
	ButtonLabel string
	Now         time.Time
}

// BuildCandidates returns the payload candidates in submission order:
// LF-delimited names with the configured stair, then CRLF-delimited names
// with stair = max(2, objects). Each starts from the form's hidden fields.
func BuildCandidates(meta FormMetadata, sub Submission, opts CandidateOptions) []Candidate {
	job := fmt.Sprintf("whr_%d", opts.Now.UnixMilli())

	build := func(name, sep string, stair int) Candidate {
		v := url.Values{}
		for k, val := range meta.Hidden {
			v.Set(k, val)
		}
		v.Set("job", job)
		v.Set("matrix", sub.MatrixText)
		v.Set("stair", strconv.Itoa(stair))
		v.Set("modell", opts.Model)
		v.Set("object", strings.Join(sub.ObjectNames, sep))
		v.Set("attribute", strings.Join(sub.AttributeNames, sep))
		v.Set("button2", opts.ButtonLabel)
		return Candidate{Name: name, Fields: v}
	}

	return []Candidate{
		build("lf", "\n", opts.Stair),
		build("crlf", "\r\n", max(2, len(sub.ObjectNames))),
	}
}

// Targets returns the submission URLs in order: the form action, then the
// engine endpoint. Duplicates are collapsed.
func Targets(meta FormMetadata, engineURL string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, u := range []string{meta.Action, engineURL} {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
