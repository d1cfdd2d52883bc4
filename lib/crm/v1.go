package crm

import (
	"context"
	"encoding/json"
	"log/slog"

	"contactbridge/lib/contact"

	"github.com/go-resty/resty/v2"
)

// apiV1 speaks the legacy bearer-key REST api. Queries are flat url
// parameters and the account location is implied by the key.
type apiV1 struct {
	c *Client
}

func (a apiV1) listWorkflows(ctx context.Context) ([]WorkflowRef, error) {
	res, err := a.c.transport.fetchWithRetry(ctx, func() (*resty.Response, error) {
		return a.c.http.R().
			SetContext(ctx).
			SetHeaders(a.c.headers(true)).
			Get("/workflows/")
	})
	if err == nil && res.IsSuccess() {
		var parsed struct {
			Workflows []WorkflowRef `json:"workflows"`
		}
		if err := json.Unmarshal(res.Body(), &parsed); err != nil {
			return nil, &MalformedResponseError{Body: res.String()}
		}
		for i := range parsed.Workflows {
			if parsed.Workflows[i].Status == "" {
				parsed.Workflows[i].Status = "publish"
			}
		}
		return parsed.Workflows, nil
	}

	// older accounts only expose pipelines, surface those instead so
	// the dropdown is not empty
	slog.WarnContext(ctx, "workflow listing failed, falling back to pipelines", "err", err)
	res, err = a.c.transport.fetchWithRetry(ctx, func() (*resty.Response, error) {
		return a.c.http.R().
			SetContext(ctx).
			SetHeaders(a.c.headers(true)).
			Get("/pipelines/")
	})
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return nil, classifyFailure(res)
	}

	var parsed struct {
		Pipelines []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"pipelines"`
	}
	if err := json.Unmarshal(res.Body(), &parsed); err != nil {
		return nil, &MalformedResponseError{Body: res.String()}
	}
	workflows := make([]WorkflowRef, 0, len(parsed.Pipelines))
	for _, p := range parsed.Pipelines {
		workflows = append(workflows, WorkflowRef{ID: p.ID, Name: p.Name, Status: "publish"})
	}
	return workflows, nil
}

func (a apiV1) searchContact(ctx context.Context, rec contact.Record) (string, bool, error) {
	params := map[string]string{}
	if rec.Email != "" {
		params["email"] = rec.Email
	}
	if rec.Phone != "" {
		params["phone"] = rec.Phone
	}

	res, err := a.c.transport.fetchWithRetry(ctx, func() (*resty.Response, error) {
		return a.c.http.R().
			SetContext(ctx).
			SetHeaders(a.c.headers(true)).
			SetQueryParams(params).
			Get("/contacts/")
	})
	if err != nil {
		return "", false, err
	}
	if !res.IsSuccess() {
		return "", false, classifyFailure(res)
	}

	// the endpoint has been observed returning both an object wrapper
	// and a bare array
	var wrapped struct {
		Contacts []remoteContact `json:"contacts"`
	}
	var contacts []remoteContact
	if err := json.Unmarshal(res.Body(), &wrapped); err == nil {
		contacts = wrapped.Contacts
	} else if err := json.Unmarshal(res.Body(), &contacts); err != nil {
		return "", false, &MalformedResponseError{Body: res.String()}
	}

	id, found := matchContact(rec, contacts)
	return id, found, nil
}



func (a apiV1) createContact(ctx context.Context, rec contact.Record) (string, error) {
	res, err := a.c.transport.fetchWithRetry(ctx, func() (*resty.Response, error) {
		return a.c.http.R().
			SetContext(ctx).
			SetHeaders(a.c.headers(true)).
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
