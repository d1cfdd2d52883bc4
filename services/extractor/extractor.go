// Package extractor pulls contact records out of agency roster and
// detail pages. The pages come from site builders that render the
// same data as editable forms on some screens and read-only text on
// others, so extraction runs a form pass and an optional text pass
// over an abstracted element stream.
package extractor

import (
	"context"
	"fmt"

	"contactbridge/lib/contact"
	"contactbridge/lib/fieldmatch"
	"contactbridge/lib/timezone"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("contactbridge.services.extractor")

var ErrNoData = fmt.Errorf("no usable contact data found on page")

// ElementSource streams a page's form elements in document order.
// Implementations wrap a parsed document, a headless session, or a
// synthetic fixture.
type ElementSource interface {
	Elements(ctx context.Context) ([]fieldmatch.ElementAttributes, error)
}

// TextSource is the optional second capability: labeled read-only
// text for detail layouts that render values outside form controls.
// Sources that cannot enumerate text nodes simply do not implement
// it.
type TextSource interface {
	TextNodes(ctx context.Context) ([]fieldmatch.ElementAttributes, error)
}

type Options struct {
	// applied when the page carries no timezone of its own, defaults
	// to the process timezone
	DefaultTimezone string
}

// Extract folds the source's elements into a contact record. The form
// pass runs first and owns field precedence, the text pass only fills
// email/phone/dob gaps. Returns ErrNoData when the page yields
// nothing a transfer could use, which callers treat as a recoverable
// condition.
func Extract(ctx context.Context, source ElementSource, opts Options) (contact.Record, error) {
	ctx, span := tracer.Start(ctx, "extractor:Extract")
	defer span.End()

	var rec contact.Record
	acc := fieldmatch.NewAccumulator(&rec)

	elements, err := source.Elements(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return contact.Record{}, err
	}
	for _, attrs := range elements {
		acc.Element(attrs)
	}

	if textSource, ok := source.(TextSource); ok {
		nodes, err := textSource.TextNodes(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return contact.Record{}, err
		}
		for _, attrs := range nodes {
			acc.TextNode(attrs)
		}
	}

	if !rec.Transferable() {
		span.SetStatus(codes.Error, "page yielded no usable contact fields")
		return contact.Record{}, ErrNoData
	}

	if rec.Timezone == "" {
		rec.Timezone = opts.DefaultTimezone
	}
	if rec.Timezone == "" {
		rec.Timezone = timezone.Name()
	}
	return rec, nil
}
