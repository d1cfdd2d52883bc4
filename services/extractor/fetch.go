package extractor

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"contactbridge/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

type FetchOptions struct {
	InstrumentOutput restyutil.InstrumentOutput
}

// FetchPage downloads a contact page and wraps it as a DocumentSource.
// The roster sites sit behind Cloudflare, hence the bypass transport.
func FetchPage(ctx context.Context, pageURL string, opts FetchOptions) (DocumentSource, error) {
	ctx, span := tracer.Start(ctx, "extractor:FetchPage")
	defer span.End()

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return DocumentSource{}, fmt.Errorf("invalid page url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return DocumentSource{}, fmt.Errorf("unsupported url scheme '%s'", parsed.Scheme)
	}

	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	restyutil.InstrumentClient(client, tracer, opts.InstrumentOutput)

	res, err := client.R().
		SetContext(ctx).
		Get(pageURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return DocumentSource{}, err
	}
	if !res.IsSuccess() {
		err := fmt.Errorf("fetch %s: status %d", pageURL, res.StatusCode())
		span.SetStatus(codes.Error, err.Error())
		return DocumentSource{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return DocumentSource{}, err
	}
	return NewDocumentSource(doc), nil
}
