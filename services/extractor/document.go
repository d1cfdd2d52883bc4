package extractor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"contactbridge/lib/fieldmatch"

	"github.com/PuerkitoBio/goquery"
)

// DocumentSource reads elements out of a parsed HTML document. It
// implements both the form and text capabilities.
type DocumentSource struct {
	doc *goquery.Document
}

func NewDocumentSource(doc *goquery.Document) DocumentSource {
	return DocumentSource{doc: doc}
}

func (s DocumentSource) Elements(ctx context.Context) ([]fieldmatch.ElementAttributes, error) {
	var out []fieldmatch.ElementAttributes
	s.doc.Find("input, select, textarea").Each(func(_ int, sel *goquery.Selection) {
		out = append(out, s.elementAttributes(sel))
	})
	return out, nil
}

func (s DocumentSource) elementAttributes(sel *goquery.Selection) fieldmatch.ElementAttributes {
	attrs := fieldmatch.ElementAttributes{
		Name:        sel.AttrOr("name", ""),
		ID:          sel.AttrOr("id", ""),
		Placeholder: sel.AttrOr("placeholder", ""),
		Type:        sel.AttrOr("type", ""),
		MaxLength:   -1,
	}
	if raw, ok := sel.Attr("maxlength"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			attrs.MaxLength = n
		}
	}
	attrs.Value = elementValue(sel)
	attrs.Label = s.labelText(sel, attrs.ID)
	if attrs.Label == "" {
		attrs.Label = attrs.Placeholder
	}
	return attrs
}

func elementValue(sel *goquery.Selection) string {
	switch goquery.NodeName(sel) {
	case "select":
		selected := sel.Find("option[selected]").First()
		if selected.Length() == 0 {
			return ""
		}
		if value, ok := selected.Attr("value"); ok && value != "" {
			return strings.TrimSpace(value)
		}
		return strings.TrimSpace(selected.Text())
	case "textarea":
		return strings.TrimSpace(sel.Text())
	default:
		return strings.TrimSpace(sel.AttrOr("value", ""))
	}
}

// labelText resolves the human-readable label for a form element:
// an explicit label[for], a wrapping label, then the immediately
// preceding sibling label.
func (s DocumentSource) labelText(sel *goquery.Selection, id string) string {
	if id != "" {
		label := s.doc.Find(fmt.Sprintf(`label[for="%s"]`, id)).First()
		if label.Length() > 0 {
			return strings.TrimSpace(label.Text())
		}
	}
	wrapping := sel.Closest("label")
	if wrapping.Length() > 0 {
		return strings.TrimSpace(wrapping.Text())
	}
	prev := sel.PrevFiltered("label").First()
	if prev.Length() > 0 {
		return strings.TrimSpace(prev.Text())
	}
	return ""
}

// TextNodes surfaces labeled read-only text: table rows with a
// label/value cell pair, definition lists, and leaf elements whose id
// names the field they hold.
func (s DocumentSource) TextNodes(ctx context.Context) ([]fieldmatch.ElementAttributes, error) {
	var out []fieldmatch.ElementAttributes

	s.doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		out = append(out, fieldmatch.ElementAttributes{
			Label:     strings.TrimSpace(cells.Eq(0).Text()),
			Value:     strings.TrimSpace(cells.Eq(1).Text()),
			MaxLength: -1,
		})
	})

	s.doc.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		dd := dt.NextFiltered("dd").First()
		if dd.Length() == 0 {
			return
		}
		out = append(out, fieldmatch.ElementAttributes{
			Label:     strings.TrimSpace(dt.Text()),
			Value:     strings.TrimSpace(dd.Text()),
			MaxLength: -1,
		})
	})

	s.doc.Find("span[id], div[id], td[id]").Each(func(_ int, sel *goquery.Selection) {
		if sel.Children().Length() > 0 {
			return
		}
		out = append(out, fieldmatch.ElementAttributes{
			ID:        sel.AttrOr("id", ""),
			Value:     strings.TrimSpace(sel.Text()),
			MaxLength: -1,
		})
	})

	return out, nil
}
