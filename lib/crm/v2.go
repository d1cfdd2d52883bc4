package crm

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"contactbridge/lib/contact"
	"contactbridge/lib/textutil"

	"github.com/go-resty/resty/v2"
)

// apiV2 speaks the Private Integration api. Every request carries the
// Version header and is scoped to an explicit location id, and search
// is a POST with structured filters instead of url parameters.
//
// Token handling is messy in practice: some deployments want the raw
// token in the Authorization header, others want a Bearer prefix. Each
// call starts with Bearer and flips the scheme exactly once if the
// response says the JWT is invalid.
type apiV2 struct {
	c *Client
}

func invalidJWT(res *resty.Response) bool {
	return res.StatusCode() == 401 && strings.Contains(res.String(), "Invalid JWT")
}

// do runs a request with the bearer flip applied. build receives the
// auth headers to use for that attempt.
func (a apiV2) do(ctx context.Context, build func(headers map[string]string) (*resty.Response, error)) (*resty.Response, error) {
	res, err := a.c.transport.fetchWithRetry(ctx, func() (*resty.Response, error) {
		return build(a.c.headers(true))
	})
	if err != nil {
		return nil, err
	}
	if !invalidJWT(res) {
		return res, nil
	}

	slog.WarnContext(ctx, "token rejected with Bearer prefix, retrying without it")
	return a.c.transport.fetchWithRetry(ctx, func() (*resty.Response, error) {
		return build(a.c.headers(false))
	})
}

func (a apiV2) listWorkflows(ctx context.Context) ([]WorkflowRef, error) {
	if a.c.cred.LocationID == "" {
		return nil, ErrLocationRequired
	}

	res, err := a.do(ctx, func(headers map[string]string) (*resty.Response, error) {
		return a.c.http.R().
			SetContext(ctx).
			SetHeaders(headers).
			SetQueryParam("locationId", a.c.cred.LocationID).
			Get("/workflows/")
	})
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return nil, classifyFailure(res)
	}

	var parsed struct {
		Workflows []WorkflowRef `json:"workflows"`
	}
	if err := json.Unmarshal(res.Body(), &parsed); err != nil {
		return nil, &MalformedResponseError{Body: res.String()}
	}
	for i := range parsed.Workflows {
		if parsed.Workflows[i].Status == "" {
			parsed.Workflows[i].Status = "published"
		}
	}
	return parsed.Workflows, nil
}

func (a apiV2) searchContact(ctx context.Context, rec contact.Record) (string, bool, error) {
	// without a location the search cannot be scoped, let the caller
	// fall through to creation and have the server arbitrate
	if a.c.cred.LocationID == "" {
		return "", false, nil
	}

	type filter struct {
		Field    string `json:"field"`
		Operator string `json:"operator"`
		Value    string `json:"value"`
	}
	var filters []filter
	if rec.Email != "" {
		filters = append(filters, filter{Field: "email", Operator: "eq", Value: rec.Email})
	}
	if digits := textutil.Digits(rec.Phone); len(digits) >= 10 {
		filters = append(filters, filter{Field: "phone", Operator: "eq", Value: digits})
	}
	if len(filters) == 0 {
		return "", false, nil
	}

	body := map[string]any{
		"locationId": a.c.cred.LocationID,
		"filters":    filters,
	}
	res, err := a.do(ctx, func(headers map[string]string) (*resty.Response, error) {
		return a.c.http.R().
			SetContext(ctx).
			SetHeaders(headers).
			SetBody(body).
			Post("/contacts/search")
	})
	if err != nil {
		return "", false, err
	}
	if !res.IsSuccess() {
		return "", false, classifyFailure(res)
	}

	var parsed struct {
		Contacts []remoteContact `json:"contacts"`
	}
	if err := json.Unmarshal(res.Body(), &parsed); err != nil {
		return "", false, &MalformedResponseError{Body: res.String()}
	}
	id, found := matchContact(rec, parsed.Contacts)
	return id, found, nil
}

func (a apiV2) createContact(ctx context.Context, rec contact.Record) (string, error) {
	res, err := a.do(ctx, func(headers map[string]string) (*resty.Response, error) {
		return a.c.http.R().
			SetContext(ctx).
			SetHeaders(headers).
			SetBody(a.c.contactPayload(rec)).
			Post("/contacts/")
	})
	if err != nil {
		return "", err
	}
	if !res.IsSuccess() {
		return "", classifyFailure(res)
	}
	return parseContactID(res)
}
