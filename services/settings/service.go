// Package settings persists the bridge's per-install state: the CRM
// credential, the default workflow selection, and a short activity
// log of recent transfers.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"contactbridge/lib/crm"
	"contactbridge/lib/timezone"
	"contactbridge/services/settings/db"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("contactbridge.services.settings")

const (
	keyAPIKey              = "apiKey"
	keyAPIVersion          = "apiVersion"
	keyLocationID          = "locationId"
	keyDefaultWorkflowID   = "defaultWorkflowId"
	keyDefaultWorkflowName = "defaultWorkflowName"
)

// activity entries older than this are pruned on write
const activityRetention = 30 * 24 * time.Hour

type Service struct {
	db  *sql.DB
	qry *db.Queries
}

func NewService(database *sql.DB) Service {
	return Service{
		db:  database,
		qry: db.New(database),
	}
}

// Credential reads the stored CRM credential. Unset keys come back as
// empty strings, validity is the crm package's concern.
func (s Service) Credential(ctx context.Context) (crm.Credential, error) {
	ctx, span := tracer.Start(ctx, "settings:Credential")
	defer span.End()

	var cred crm.Credential
	var err error
	cred.APIKey, err = s.getOrEmpty(ctx, keyAPIKey)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return crm.Credential{}, err
	}
	cred.APIVersion, err = s.getOrEmpty(ctx, keyAPIVersion)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return crm.Credential{}, err
	}
	cred.LocationID, err = s.getOrEmpty(ctx, keyLocationID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return crm.Credential{}, err
	}
	return cred, nil
}

// SaveCredential stores all three credential parts atomically so a
// version switch never pairs the old key with the new base url.
func (s Service) SaveCredential(ctx context.Context, cred crm.Credential) error {
	ctx, span := tracer.Start(ctx, "settings:SaveCredential")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	for key, value := range map[string]string{
		keyAPIKey:     cred.APIKey,
		keyAPIVersion: cred.APIVersion,
		keyLocationID: cred.LocationID,
	} {
		err := txqry.SetSetting(ctx, db.SetSettingParams{Key: key, Value: value})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	return tx.Commit()
}

type Workflow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s Service) DefaultWorkflow(ctx context.Context) (Workflow, error) {
	ctx, span := tracer.Start(ctx, "settings:DefaultWorkflow")
	defer span.End()

	var wf Workflow
	var err error
	wf.ID, err = s.getOrEmpty(ctx, keyDefaultWorkflowID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Workflow{}, err
	}
	wf.Name, err = s.getOrEmpty(ctx, keyDefaultWorkflowName)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Workflow{}, err
	}
	return wf, nil
}

func (s Service) SaveDefaultWorkflow(ctx context.Context, wf Workflow) error {
	ctx, span := tracer.Start(ctx, "settings:SaveDefaultWorkflow")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	err = txqry.SetSetting(ctx, db.SetSettingParams{Key: keyDefaultWorkflowID, Value: wf.ID})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	err = txqry.SetSetting(ctx, db.SetSettingParams{Key: keyDefaultWorkflowName, Value: wf.Name})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return tx.Commit()
}

type ActivityEntry struct {
	ID     string    `json:"id"`
	At     time.Time `json:"at"`
	Action string    `json:"action"`
	Detail string    `json:"detail"`
}

// LogActivity appends an entry to the activity log and prunes
// anything past retention.
func (s Service) LogActivity(ctx context.Context, action, detail string) error {
	ctx, span := tracer.Start(ctx, "settings:LogActivity")
	defer span.End()

	id, err := random.String(16)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	now := timezone.Now()
	err = s.qry.CreateActivity(ctx, db.CreateActivityParams{
		ID:     id,
		At:     now.Unix(),
		Action: action,
		Detail: detail,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return s.qry.DeleteActivityBefore(ctx, now.Add(-activityRetention).Unix())
}

func (s Service) RecentActivity(ctx context.Context, limit int) ([]ActivityEntry, error) {
	ctx, span := tracer.Start(ctx, "settings:RecentActivity")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.qry.GetRecentActivity(ctx, int64(limit))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	entries := make([]ActivityEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, ActivityEntry{
			ID:     row.ID,
			At:     time.Unix(row.At, 0).In(timezone.Location),
			Action: row.Action,
			Detail: row.Detail,
		})
	}
	return entries, nil
}

func (s Service) getOrEmpty(ctx context.Context, key string) (string, error) {
	value, err := s.qry.GetSetting(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}
