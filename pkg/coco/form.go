package coco

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// FormMetadata is the submission target and the hidden fields of the
// landing form. It is read fresh for every acquisition and never cached.
type FormMetadata struct {
	Action string
	Hidden map[string]string
}

// ExtractMetadata reads the first <form> of html. The action attribute is
// resolved against formURL; a form without one targets fallbackAction.
func ExtractMetadata(html, formURL, fallbackAction string) (FormMetadata, error) {
	meta := FormMetadata{Action: fallbackAction, Hidden: make(map[string]string)}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return meta, eris.Wrap(err, "coco: parse form page")
	}

	form := doc.Find("form").First()
	if form.Length() == 0 {
		return meta, nil
	}

	if action, ok := form.Attr("action"); ok && strings.TrimSpace(action) != "" {
		if abs, err := resolve(formURL, action); err == nil {
			meta.Action = abs
		}
	}

	form.Find("input").Each(func(_ int, in *goquery.Selection) {
		if !strings.EqualFold(in.AttrOr("type", ""), "hidden") {
			return
		}
		name := in.AttrOr("name", "")
		if name == "" {
			return
		}
		meta.Hidden[name] = in.AttrOr("value", "")
	})

	return meta, nil
}

// resolve returns ref as an absolute URL relative to base.
func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", eris.Wrapf(err, "coco: parse base url %q", base)
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", eris.Wrapf(err, "coco: parse url %q", ref)
	}
	return b.ResolveReference(r).String(), nil
}
