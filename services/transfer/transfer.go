// Package transfer drives a scraped contact record into the CRM:
// dedup search, creation, timezone enforcement, then workflow
// enrollment. Each step narrows what the next one has to do, and the
// contact is never created twice for the same identifiers.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"contactbridge/lib/contact"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("contactbridge.services.transfer")

var ErrNotTransferable = fmt.Errorf("contact has neither email nor phone")

// CRM is the slice of the client the orchestrator needs. Satisfied by
// *crm.Client and by fakes in tests.
type CRM interface {
	SearchContact(ctx context.Context, rec contact.Record) (string, bool, error)
	CreateContact(ctx context.Context, rec contact.Record) (string, error)
	UpdateTimezone(ctx context.Context, contactID, tz string) error
	EnrollInWorkflow(ctx context.Context, contactID, workflowID string) error
}

const DefaultEnrollDelay = 500 * time.Millisecond

type Options struct {
	// pause between contact creation and enrollment so the CRM
	// finishes indexing the new contact before the workflow fires
	EnrollDelay time.Duration
	// swapped out by tests
	Sleep func(ctx context.Context, d time.Duration) error
}

type Orchestrator struct {
	crm         CRM
	enrollDelay time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(crm CRM, opts Options) *Orchestrator {
	delay := opts.EnrollDelay
	if delay <= 0 {
		delay = DefaultEnrollDelay
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return &Orchestrator{crm: crm, enrollDelay: delay, sleep: sleep}
}

// Outcome reports how far a transfer got. ContactID is set whenever a
// remote contact exists, even if a later step failed.
type Outcome struct {
	ContactID       string `json:"contactId"`
	Duplicate       bool   `json:"duplicate"`
	TimezoneApplied bool   `json:"timezoneApplied"`
	Enrolled        bool   `json:"enrolled"`
}

// Transfer pushes a record into the CRM and optionally enrolls it in
// a workflow. Records without an email or phone are rejected before
// any network traffic. Dedup search failures degrade to the create
// path rather than aborting, and timezone enforcement is best effort.
func (o *Orchestrator) Transfer(ctx context.Context, rec contact.Record, workflowID string) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "transfer:Transfer")
	defer span.End()

	if !rec.Transferable() {
		span.SetStatus(codes.Error, "record not transferable")
		return Outcome{}, ErrNotTransferable
	}

	var outcome Outcome

	existingID, found, err := o.crm.SearchContact(ctx, rec)
	if err != nil {
		slog.WarnContext(ctx, "dedup search failed, proceeding to create", "err", err)
	}
	if found {
		outcome.ContactID = existingID
		outcome.Duplicate = true
		slog.InfoContext(ctx, "contact already exists", "contact_id", existingID)
	} else {
		id, err := o.crm.CreateContact(ctx, rec)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "contact creation failed")
			return Outcome{}, err
		}
		outcome.ContactID = id
		slog.InfoContext(ctx, "contact created", "contact_id", id)
	}
	span.SetAttributes(
		attribute.String("contact_id", outcome.ContactID),
		attribute.Bool("duplicate", outcome.Duplicate),
	)

	if rec.Timezone != "" {
		err := o.crm.UpdateTimezone(ctx, outcome.ContactID, rec.Timezone)
		if err != nil {
			slog.WarnContext(ctx, "timezone update failed", "err", err, "timezone", rec.Timezone)
		}
		outcome.TimezoneApplied = err == nil
	}

	if workflowID == "" {
		return outcome, nil
	}

	if err := o.sleep(ctx, o.enrollDelay); err != nil {
		return outcome, err
	}
	if err := o.crm.EnrollInWorkflow(ctx, outcome.ContactID, workflowID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "workflow enrollment failed")
		return outcome, err
	}
	outcome.Enrolled = true
	return outcome, nil
}
