// Package bridge exposes the scrape-and-transfer pipeline over a
// small JSON action protocol. Every request names its action
// explicitly and every response echoes it back, so clients never have
// to infer what a payload is from its shape.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"contactbridge/lib/contact"
	"contactbridge/lib/crm"
	"contactbridge/lib/restyutil"
	"contactbridge/services/extractor"
	"contactbridge/services/settings"
	"contactbridge/services/transfer"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("contactbridge.services.bridge")

const (
	ActionExtractData         = "extractData"
	ActionTransferContact     = "transferContact"
	ActionSaveAPIKey          = "saveApiKey"
	ActionGetAPIKey           = "getApiKey"
	ActionSaveDefaultWorkflow = "saveDefaultWorkflow"
	ActionGetDefaultWorkflow  = "getDefaultWorkflow"
	ActionLoadWorkflows       = "loadWorkflows"
	ActionGetActivity         = "getActivity"
)

type Options struct {
	// pause between contact creation and workflow enrollment
	EnrollDelay time.Duration
	// attribution tag on created contacts
	Source string
	// overrides the CRM base url, used by tests
	CrmBaseURL       string
	InstrumentOutput restyutil.InstrumentOutput
}

type Service struct {
	settings settings.Service
	cache    *crm.WorkflowCache
	opts     Options
}

func NewService(settingsService settings.Service, opts Options) *Service {
	return &Service{
		settings: settingsService,
		cache:    crm.NewWorkflowCache(crm.DefaultWorkflowTTL),
		opts:     opts,
	}
}

type actionRequest struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

type actionResponse struct {
	Action string `json:"action"`
	OK     bool   `json:"ok"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Mount registers the action endpoint on a gin router.
func (s *Service) Mount(router gin.IRouter) {
	router.POST("/api/v1/action", s.handleAction)
}

func (s *Service) handleAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, actionResponse{
			Action: req.Action,
			Error:  fmt.Sprintf("malformed request: %s", err),
		})
		return
	}

	ctx, span := tracer.Start(c.Request.Context(), "bridge:handleAction")
	defer span.End()
	span.SetAttributes(attribute.String("action", req.Action))

	handler, ok := s.handlers()[req.Action]
	if !ok {
		c.JSON(http.StatusBadRequest, actionResponse{
			Action: req.Action,
			Error:  fmt.Sprintf("unknown action '%s'", req.Action),
		})
		return
	}

	data, err := handler(ctx, req.Payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.JSON(statusForError(err), actionResponse{
			Action: req.Action,
			Error:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, actionResponse{
		Action: req.Action,
		OK:     true,
		Data:   data,
	})
}

type actionHandler func(ctx context.Context, payload json.RawMessage) (any, error)

func (s *Service) handlers() map[string]actionHandler {
	return map[string]actionHandler{
		ActionExtractData:         s.extractData,
		ActionTransferContact:     s.transferContact,
		ActionSaveAPIKey:          s.saveCredential,
		ActionGetAPIKey:           s.getCredential,
		ActionSaveDefaultWorkflow: s.saveDefaultWorkflow,
		ActionGetDefaultWorkflow:  s.getDefaultWorkflow,
		ActionLoadWorkflows:       s.loadWorkflows,
		ActionGetActivity:         s.getActivity,
	}
}

// badRequestError marks validation failures the client caused, as
// opposed to CRM-side failures.
type badRequestError struct {
	err error
}

func (e badRequestError) Error() string {
	return e.err.Error()
}

func (e badRequestError) Unwrap() error {
	return e.err
}

func statusForError(err error) int {
	var authErr *crm.AuthError
	var rateErr *crm.RateLimitError
	var clientErr *crm.ClientError
	var netErr *crm.NetworkError
	var malformed *crm.MalformedResponseError
	var badReq badRequestError

	switch {
	case errors.As(err, &badReq):
		return http.StatusBadRequest
	case errors.Is(err, transfer.ErrNotTransferable),
		errors.Is(err, extractor.ErrNoData),
		errors.Is(err, crm.ErrLocationRequired):
		return http.StatusBadRequest
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &rateErr):
		return http.StatusTooManyRequests
	case errors.As(err, &clientErr):
		return http.StatusBadRequest
	case errors.As(err, &netErr), errors.As(err, &malformed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) client(ctx context.Context) (*crm.Client, error) {
	cred, err := s.settings.Credential(ctx)
	if err != nil {
		return nil, err
	}
	return crm.NewClient(crm.ClientOptions{
		Credential:       cred,
		BaseURL:          s.opts.CrmBaseURL,
		Cache:            s.cache,
		Source:           s.opts.Source,
		InstrumentOutput: s.opts.InstrumentOutput,
	})
}

func (s *Service) extractData(ctx context.Context, payload json.RawMessage) (any, error) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, badRequestError{fmt.Errorf("malformed payload: %w", err)}
	}
	if req.URL == "" {
		return nil, badRequestError{fmt.Errorf("url is required")}
	}

	source, err := extractor.FetchPage(ctx, req.URL, extractor.FetchOptions{
		InstrumentOutput: s.opts.InstrumentOutput,
	})
	if err != nil {
		return nil, err
	}
	rec, err := extractor.Extract(ctx, source, extractor.Options{})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) transferContact(ctx context.Context, payload json.RawMessage) (any, error) {
	var req struct {
		Record     contact.Record `json:"record"`
		WorkflowID string         `json:"workflowId"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, badRequestError{fmt.Errorf("malformed payload: %w", err)}
	}

	workflowID := req.WorkflowID
	if workflowID == "" {
		wf, err := s.settings.DefaultWorkflow(ctx)
		if err != nil {
			return nil, err
		}
		workflowID = wf.ID
	}

	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	orch := transfer.NewOrchestrator(client, transfer.Options{
		EnrollDelay: s.opts.EnrollDelay,
	})

	outcome, err := orch.Transfer(ctx, req.Record, workflowID)
	s.logTransfer(ctx, req.Record, outcome, err)
	if err != nil {
		if outcome.ContactID == "" {
			return nil, err
		}
		// the contact exists in the CRM even though enrollment
		// failed, the caller needs its id more than the error
		return transferResult{
			Outcome: outcome,
			Message: fmt.Sprintf("contact created but failed to add to workflow: %s", err),
		}, nil
	}
	return transferResult{Outcome: outcome}, nil
}

// transferResult is the transfer outcome with a message attached when
// the contact landed but a later step did not.
type transferResult struct {
	transfer.Outcome
	Message string `json:"message,omitempty"`
}

func (s *Service) logTransfer(ctx context.Context, rec contact.Record, outcome transfer.Outcome, transferErr error) {
	identifier := rec.Email
	if identifier == "" {
		identifier = rec.Phone
	}
	detail := fmt.Sprintf("%s -> %s", identifier, outcome.ContactID)
	if outcome.Duplicate {
		detail += " (duplicate)"
	}
	if transferErr != nil {
		detail += fmt.Sprintf(" failed: %s", transferErr)
	}
	// activity logging must never fail a transfer
	_ = s.settings.LogActivity(ctx, "transfer", detail)
}

func (s *Service) saveCredential(ctx context.Context, payload json.RawMessage) (any, error) {
	var cred crm.Credential
	if err := json.Unmarshal(payload, &cred); err != nil {
		return nil, badRequestError{fmt.Errorf("malformed payload: %w", err)}
	}

	// reject credentials the client would refuse to construct with
	if _, err := crm.NewClient(crm.ClientOptions{Credential: cred}); err != nil {
		return nil, badRequestError{err}
	}

	// the old credential's cached workflows are stale the moment the
	// key changes
	if old, err := s.settings.Credential(ctx); err == nil {
		s.cache.Invalidate(old)
	}
	if err := s.settings.SaveCredential(ctx, cred); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Service) getCredential(ctx context.Context, payload json.RawMessage) (any, error) {
	cred, err := s.settings.Credential(ctx)
	if err != nil {
		return nil, err
	}
	return cred, nil
}

func (s *Service) saveDefaultWorkflow(ctx context.Context, payload json.RawMessage) (any, error) {
	var wf settings.Workflow
	if err := json.Unmarshal(payload, &wf); err != nil {
		return nil, badRequestError{fmt.Errorf("malformed payload: %w", err)}
	}
	if wf.ID == "" {
		return nil, badRequestError{fmt.Errorf("workflow id is required")}
	}
	if err := s.settings.SaveDefaultWorkflow(ctx, wf); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Service) getDefaultWorkflow(ctx context.Context, payload json.RawMessage) (any, error) {
	wf, err := s.settings.DefaultWorkflow(ctx)
	if err != nil {
		return nil, err
	}
	return wf, nil
}

func (s *Service) loadWorkflows(ctx context.Context, payload json.RawMessage) (any, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	workflows, err := client.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	return workflows, nil
}

func (s *Service) getActivity(ctx context.Context, payload json.RawMessage) (any, error) {
	var req struct {
		Limit int `json:"limit"`
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, badRequestError{fmt.Errorf("malformed payload: %w", err)}
		}
	}
	entries, err := s.settings.RecentActivity(ctx, req.Limit)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
