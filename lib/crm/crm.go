// Package crm talks to the remote CRM's REST API. Two incompatible
// API generations are in the field: v1 (bearer api key against
// rest.gohighlevel.com) and v2 ("Private Integration" JWT-style token
// against services.leadconnectorhq.com) with different request and
// response shapes. Both are presented behind one Client whose version
// strategy is chosen once per credential.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"contactbridge/lib/contact"
	"contactbridge/lib/restyutil"
	"contactbridge/lib/textutil"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("contactbridge.lib.crm")

const (
	v1BaseURL = "https://rest.gohighlevel.com/v1"
	v2BaseURL = "https://services.leadconnectorhq.com"

	// required by the v2 api on every call
	v2VersionHeader = "2021-07-28"
)

var ErrLocationRequired = fmt.Errorf("location id is required for v2 requests")

// Credential parameterizes every call. It is read back from settings
// per operation rather than cached so key changes apply immediately.
type Credential struct {
	APIKey     string `json:"apiKey"`
	APIVersion string `json:"apiVersion"`
	LocationID string `json:"locationId"`
}

func (c Credential) withDefaults() Credential {
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.APIVersion == "" {
		c.APIVersion = "v1"
	}
	return c
}

type WorkflowRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type ClientOptions struct {
	Credential Credential
	// overrides the version-derived default, used by tests
	BaseURL string
	// total attempts through the rate-limit transport, default 3
	MaxRetries int
	// total attempts for workflow enrollment, default 2
	EnrollRetries int
	// shared across clients so the TTL survives reconstruction;
	// nil uses a process-wide default
	Cache *WorkflowCache
	// attribution tag stamped on created contacts
	Source           string
	InstrumentOutput restyutil.InstrumentOutput
}

type Client struct {
	cred          Credential
	http          *resty.Client
	transport     *transport
	api           api
	cache         *WorkflowCache
	enrollRetries int
	source        string
}

// version strategies implement the operations whose wire shapes differ
// between v1 and v2
type api interface {
	listWorkflows(ctx context.Context) ([]WorkflowRef, error)
	searchContact(ctx context.Context, rec contact.Record) (string, bool, error)
	createContact(ctx context.Context, rec contact.Record) (string, error)
}

var defaultCache = NewWorkflowCache(DefaultWorkflowTTL)

func NewClient(opts ClientOptions) (*Client, error) {
	cred := opts.Credential.withDefaults()
	if cred.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cred.APIVersion != "v1" && cred.APIVersion != "v2" {
		return nil, fmt.Errorf("unknown api version '%s'", cred.APIVersion)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = v1BaseURL
		if cred.APIVersion == "v2" {
			baseURL = v2BaseURL
		}
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	enrollRetries := opts.EnrollRetries
	if enrollRetries <= 0 {
		enrollRetries = 2
	}
	cache := opts.Cache
	if cache == nil {
		cache = defaultCache
	}
	source := opts.Source
	if source == "" {
		source = "contactbridge"
	}

	http := resty.New()
	http.SetBaseURL(baseURL)
	http.SetHeader("Accept", "application/json")
	restyutil.InstrumentClient(http, tracer, opts.InstrumentOutput)

	c := &Client{
		cred:          cred,
		http:          http,
		transport:     newTransport(maxRetries),
		cache:         cache,
		enrollRetries: enrollRetries,
		source:        source,
	}
	if cred.APIVersion == "v2" {
		c.api = apiV2{c}
	} else {
		c.api = apiV1{c}
	}
	return c, nil
}

func (c *Client) headers(useBearer bool) map[string]string {
	auth := c.cred.APIKey
	// v1 always uses the Bearer prefix, v2 flips it on invalid-token
	// responses
	if c.cred.APIVersion == "v1" || useBearer {
		auth = "Bearer " + c.cred.APIKey
	}

	h := map[string]string{
		"Authorization": auth,
		"Content-Type":  "application/json",
	}
	if c.cred.APIVersion == "v2" {
		h["Version"] = v2VersionHeader
	}
	return h
}

// ListWorkflows fetches the workflows a contact can be enrolled in.
// v1 results are cached for a short TTL keyed by credential.
func (c *Client) ListWorkflows(ctx context.Context) ([]WorkflowRef, error) {
	ctx, span := tracer.Start(ctx, "client:ListWorkflows")
	defer span.End()

	if c.cred.APIVersion == "v1" {
		if cached, ok := c.cache.get(c.cred); ok {
			slog.DebugContext(ctx, "using cached workflows", "count", len(cached))
			return cached, nil
		}
	}

	workflows, err := c.api.listWorkflows(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "failed to list workflows")
		return nil, err
	}

	if c.cred.APIVersion == "v1" {
		c.cache.put(c.cred, workflows)
	}
	return workflows, nil
}

// SearchContact looks for an existing remote contact that matches the
// record's email or phone, returning its id.
func (c *Client) SearchContact(ctx context.Context, rec contact.Record) (string, bool, error) {
	ctx, span := tracer.Start(ctx, "client:SearchContact")
	defer span.End()

	if rec.Email == "" && rec.Phone == "" {
		return "", false, nil
	}
	id, found, err := c.api.searchContact(ctx, rec)
	if err != nil {
		span.SetStatus(codes.Error, "search failed")
		return "", false, err
	}
	return id, found, nil
}

// CreateContact creates a remote contact and returns its id.
func (c *Client) CreateContact(ctx context.Context, rec contact.Record) (string, error) {
	ctx, span := tracer.Start(ctx, "client:CreateContact")
	defer span.End()

	id, err := c.api.createContact(ctx, rec)
	if err != nil {
		span.SetStatus(codes.Error, "create failed")
		return "", err
	}
	return id, nil
}

// remoteContact is the slice of the CRM contact shape dedup cares
// about.
type remoteContact struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// matchContact applies the dedup policy: when the target record has
// both email and phone either field matching counts, when it has only
// one then that one must match. First match wins, no scoring.
func matchContact(rec contact.Record, contacts []remoteContact) (string, bool) {
	targetEmail := textutil.NormalizeEmail(rec.Email)
	targetPhone := textutil.NormalizePhone(rec.Phone)

	for _, remote := range contacts {
		foundEmail := textutil.NormalizeEmail(remote.Email)
		foundPhone := textutil.NormalizePhone(remote.Phone)

		emailMatches := targetEmail != "" && foundEmail != "" && foundEmail == targetEmail
		phoneMatches := targetPhone != "" && foundPhone != "" && foundPhone == targetPhone

		var isMatch bool
		switch {
		case targetEmail != "" && targetPhone != "":
			isMatch = emailMatches || phoneMatches
		case targetEmail != "":
			isMatch = emailMatches
		default:
			isMatch = phoneMatches
		}

		if isMatch {
			return remote.ID, true
		}
	}
	return "", false
}

// contactPayload builds the version-specific creation body. Empty
// fields are stripped so the CRM does not blank out data on its side,
// and an emptied custom-field object is dropped entirely.
func (c *Client) contactPayload(rec contact.Record) map[string]any {
	payload := map[string]any{
		"firstName":   rec.FirstName,
		"lastName":    rec.LastName,
		"email":       rec.Email,
		"phone":       rec.Phone,
		"dateOfBirth": rec.DOB,
		"address1":    rec.Address,
		"city":        rec.City,
		"state":       rec.State,
		"postalCode":  rec.Zipcode,
		"country":     "US",
		"timezone":    rec.Timezone,
		"source":      c.source,
	}

	// v1 keeps dob in a nested custom field as well, v2 rejects the
	// customField key outright
	if c.cred.APIVersion == "v1" && rec.DOB != "" {
		payload["customField"] = map[string]any{
			"dateOfBirth": rec.DOB,
		}
	}
	if c.cred.APIVersion == "v2" && c.cred.LocationID != "" {
		payload["locationId"] = c.cred.LocationID
	}

	stripEmpty(payload)
	return payload
}

func stripEmpty(m map[string]any) {
	for k, v := range m {
		switch value := v.(type) {
		case nil:
			delete(m, k)
		case string:
			if value == "" {
				delete(m, k)
			}
		case map[string]any:
			stripEmpty(value)
			if len(value) == 0 {
				delete(m, k)
			}
		}
	}
}

// parseContactID digs the contact id out of a 2xx creation/update
// response.
func parseContactID(res *resty.Response) (string, error) {
	var parsed struct {
		Contact struct {
			ID string `json:"id"`
		} `json:"contact"`
	}
	err := json.Unmarshal(res.Body(), &parsed)
	if err != nil || parsed.Contact.ID == "" {
		return "", &MalformedResponseError{Body: res.String()}
	}
	return parsed.Contact.ID, nil
}

func classifyFailure(res *resty.Response) error {
	status := res.StatusCode()
	switch {
	case status == 401 || status == 403:
		return &AuthError{Status: status, Message: authGuidance(res.String())}
	case status >= 400 && status < 500:
		return &ClientError{Status: status, Body: res.String()}
	default:
		return &ServerError{Status: status, Body: res.String()}
	}
}

// authGuidance enriches the CRM's auth failure message with hints for
// the misconfigurations users actually hit.
func authGuidance(body string) string {
	msg := "API key is invalid or unauthorized. Please check your API key."

	var parsed struct {
		Message string `json:"message"`
	}
	err := json.Unmarshal([]byte(body), &parsed)
	if err != nil || parsed.Message == "" {
		return msg
	}

	msg = parsed.Message
	if strings.Contains(parsed.Message, "does not have access to this location") {
		msg += " Make sure: 1) the Location ID matches your sub-account, 2) your Private Integration token has the correct scopes, and 3) the token is for the sub-account, not just agency-level."
	} else if strings.Contains(parsed.Message, "Invalid JWT") {
		msg += " Please verify your Private Integration token is correct and not expired."
	}
	return msg
}

var timezoneAliases = map[string]string{
	"America/New_York":    "US/Eastern",
	"America/Chicago":     "US/Central",
	"America/Denver":      "US/Mountain",
	"America/Los_Angeles": "US/Pacific",
}

// UpdateTimezone enforces the contact's IANA zone with a follow-up
// PUT, falling back to the legacy alias some accounts still expect.
// Best effort, callers treat failure as non-fatal.
func (c *Client) UpdateTimezone(ctx context.Context, contactID, tz string) error {
	ctx, span := tracer.Start(ctx, "client:UpdateTimezone")
	defer span.End()

	candidates := []string{tz}
	if alias, ok := timezoneAliases[tz]; ok {
		candidates = append(candidates, alias)
	}

	// updates get a tighter retry budget than the rest of the client
	// since the whole operation is optional
	t := &transport{maxRetries: 2, sleep: c.transport.sleep}

	var lastErr error
	for _, value := range candidates {
		body := map[string]any{"timezone": value}
		res, err := t.fetchWithRetry(ctx, func() (*resty.Response, error) {
			return c.http.R().
				SetContext(ctx).
				SetHeaders(c.headers(true)).
				SetBody(body).
				Put(fmt.Sprintf("/contacts/%s", contactID))
		})
		if err != nil {
			lastErr = err
			continue
		}
		if !res.IsSuccess() {
			lastErr = classifyFailure(res)
			continue
		}

		var parsed struct {
			Contact struct {
				Timezone string `json:"timezone"`
			} `json:"contact"`
		}
		err = json.Unmarshal(res.Body(), &parsed)
		if err == nil && (parsed.Contact.Timezone == value || parsed.Contact.Timezone == tz) {
			return nil
		}
		lastErr = fmt.Errorf("timezone update was not applied (sent %s)", value)
	}

	span.SetStatus(codes.Error, "timezone update failed")
	return lastErr
}

// enrollBackoff doubles from 500ms. The default attempt budget of two
// only ever takes the first step; later steps apply when EnrollRetries
// is raised.
func enrollBackoff(attempt int) time.Duration {
	return time.Duration(500<<uint(attempt-1)) * time.Millisecond
}

// EnrollInWorkflow adds a contact to a workflow. 4xx responses are
// terminal, 5xx and transport failures retry with a short backoff.
func (c *Client) EnrollInWorkflow(ctx context.Context, contactID, workflowID string) error {
	ctx, span := tracer.Start(ctx, "client:EnrollInWorkflow")
	defer span.End()

	// seconds precision with an explicit UTC offset, the CRM rejects
	// the full fractional ISO form
	eventStartTime := time.Now().UTC().Format("2006-01-02T15:04:05") + "+00:00"
	body := map[string]any{"eventStartTime": eventStartTime}

	var lastErr error
	for attempt := 1; attempt <= c.enrollRetries; attempt++ {
		res, err := c.transport.fetchWithRetry(ctx, func() (*resty.Response, error) {
			return c.http.R().
				SetContext(ctx).
				SetHeaders(c.headers(true)).
				SetBody(body).
				Post(fmt.Sprintf("/contacts/%s/workflow/%s", contactID, workflowID))
		})
		if err != nil {
			lastErr = err
		} else if res.IsSuccess() {
			return nil
		} else if res.StatusCode() >= 400 && res.StatusCode() < 500 {
			span.SetStatus(codes.Error, "workflow enrollment rejected")
			return &ClientError{Status: res.StatusCode(), Body: res.String()}
		} else {
			lastErr = &ServerError{Status: res.StatusCode(), Body: res.String()}
		}

		if attempt < c.enrollRetries {
			delay := enrollBackoff(attempt)
			slog.WarnContext(
				ctx, "workflow enrollment failed, retrying",
				"delay", delay,
				"attempt", attempt,
				"err", lastErr,
			)
			if err := c.transport.sleep(ctx, delay); err != nil {
				return &NetworkError{Err: err}
			}
		}
	}

	span.SetStatus(codes.Error, "workflow enrollment failed")
	return lastErr
}
