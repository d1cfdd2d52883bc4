package transfer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"contactbridge/lib/contact"
	"contactbridge/lib/textutil"

	"github.com/stretchr/testify/require"
)

// fakeCRM stores contacts in memory with the same either-field dedup
// policy the real client applies.
type fakeCRM struct {
	contacts  map[string]contact.Record
	nextID    int
	timezones map[string]string
	enrolled  map[string][]string

	searchErr error
	createErr error
	tzErr     error
	enrollErr error

	searches int
	creates  int
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{
		contacts:  map[string]contact.Record{},
		timezones: map[string]string{},
		enrolled:  map[string][]string{},
	}
}

func (f *fakeCRM) SearchContact(ctx context.Context, rec contact.Record) (string, bool, error) {
	f.searches++
	if f.searchErr != nil {
		return "", false, f.searchErr
	}
	for id, existing := range f.contacts {
		emailMatch := rec.Email != "" &&
			textutil.NormalizeEmail(existing.Email) == textutil.NormalizeEmail(rec.Email)
		phoneMatch := rec.Phone != "" && textutil.NormalizePhone(rec.Phone) != "" &&
			textutil.NormalizePhone(existing.Phone) == textutil.NormalizePhone(rec.Phone)
		if emailMatch || phoneMatch {
			return id, true, nil
		}
	}
	return "", false, nil
}

func (f *fakeCRM) CreateContact(ctx context.Context, rec contact.Record) (string, error) {
	f.creates++
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("contact-%d", f.nextID)
	f.contacts[id] = rec
	return id, nil
}

func (f *fakeCRM) UpdateTimezone(ctx context.Context, contactID, tz string) error {
	if f.tzErr != nil {
		return f.tzErr
	}
	f.timezones[contactID] = tz
	return nil
}

func (f *fakeCRM) EnrollInWorkflow(ctx context.Context, contactID, workflowID string) error {
	if f.enrollErr != nil {
		return f.enrollErr
	}
	f.enrolled[contactID] = append(f.enrolled[contactID], workflowID)
	return nil
}

func setup(t *testing.T) (*fakeCRM, *Orchestrator, *[]time.Duration) {
	crm := newFakeCRM()
	delays := &[]time.Duration{}
	orch := NewOrchestrator(crm, Options{
		Sleep: func(ctx context.Context, d time.Duration) error {
			*delays = append(*delays, d)
			return nil
		},
	})
	return crm, orch, delays
}

func TestTransferCreatesAndEnrolls(t *testing.T) {
	crm, orch, delays := setup(t)

	rec := contact.Record{
		FirstName: "Jane",
		Email:     "jane@example.com",
		Timezone:  "America/Chicago",
	}
	outcome, err := orch.Transfer(context.Background(), rec, "wf1")
	require.NoError(t, err)
	require.Equal(t, Outcome{
		ContactID:       "contact-1",
		TimezoneApplied: true,
		Enrolled:        true,
	}, outcome)

	require.Equal(t, "America/Chicago", crm.timezones["contact-1"])
	require.Equal(t, []string{"wf1"}, crm.enrolled["contact-1"])
	// the enroll pause must sit between creation and enrollment
	require.Equal(t, []time.Duration{DefaultEnrollDelay}, *delays)
}

func TestTransferRejectsBeforeNetwork(t *testing.T) {
	crm, orch, _ := setup(t)

	_, err := orch.Transfer(context.Background(), contact.Record{FirstName: "Jane"}, "wf1")
	require.ErrorIs(t, err, ErrNotTransferable)
	require.Zero(t, crm.searches)
	require.Zero(t, crm.creates)
}

func TestTransferIsIdempotent(t *testing.T) {
	crm, orch, _ := setup(t)

	rec := contact.Record{Email: "jane@example.com", Phone: "(555) 123-4567"}

	first, err := orch.Transfer(context.Background(), rec, "")
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	second, err := orch.Transfer(context.Background(), rec, "")
	require.NoError(t, err)
	require.True(t, second.Duplicate)
	require.Equal(t, first.ContactID, second.ContactID)
	require.Equal(t, 1, crm.creates)
}

func TestTransferDuplicateByPhoneOnly(t *testing.T) {
	crm, orch, _ := setup(t)

	_, err := orch.Transfer(context.Background(), contact.Record{
		Email: "a@b.com",
		Phone: "555-123-4567",
	}, "")
	require.NoError(t, err)

	// different email, same phone modulo formatting
	outcome, err := orch.Transfer(context.Background(), contact.Record{
		Email: "other@b.com",
		Phone: "+1 (555) 123-4567",
	}, "")
	require.NoError(t, err)
	require.True(t, outcome.Duplicate)
	require.Equal(t, 1, crm.creates)
}

func TestTransferSearchFailureDegradesToCreate(t *testing.T) {
	crm, orch, _ := setup(t)
	crm.searchErr = fmt.Errorf("search endpoint down")

	outcome, err := orch.Transfer(context.Background(), contact.Record{Email: "a@b.com"}, "")
	require.NoError(t, err)
	require.False(t, outcome.Duplicate)
	require.Equal(t, 1, crm.creates)
	require.NotEmpty(t, outcome.ContactID)
}

func TestTransferCreateFailureAborts(t *testing.T) {
	crm, orch, _ := setup(t)
	crm.createErr = fmt.Errorf("boom")

	outcome, err := orch.Transfer(context.Background(), contact.Record{Email: "a@b.com"}, "wf1")
	require.Error(t, err)
	require.Empty(t, outcome.ContactID)
	require.Empty(t, crm.enrolled)
}

func TestTransferTimezoneFailureIsNonFatal(t *testing.T) {
	crm, orch, _ := setup(t)
	crm.tzErr = fmt.Errorf("zone rejected")

	outcome, err := orch.Transfer(context.Background(), contact.Record{
		Email:    "a@b.com",
		Timezone: "Asia/Tokyo",
	}, "wf1")
	require.NoError(t, err)
	require.False(t, outcome.TimezoneApplied)
	require.True(t, outcome.Enrolled)
}

func TestTransferEnrollFailureKeepsContact(t *testing.T) {
	crm, orch, _ := setup(t)
	crm.enrollErr = fmt.Errorf("workflow gone")

	outcome, err := orch.Transfer(context.Background(), contact.Record{Email: "a@b.com"}, "wf1")
	require.Error(t, err)
	require.Equal(t, "contact-1", outcome.ContactID)
	require.False(t, outcome.Enrolled)
}

func TestTransferSkipsEnrollWithoutWorkflow(t *testing.T) {
	crm, orch, delays := setup(t)

	outcome, err := orch.Transfer(context.Background(), contact.Record{Email: "a@b.com"}, "")
	require.NoError(t, err)
	require.False(t, outcome.Enrolled)
	require.Empty(t, crm.enrolled)
	require.Empty(t, *delays, "no enroll pause without a workflow")
}

func TestTransferConfigurableDelay(t *testing.T) {
	crm := newFakeCRM()
	var delays []time.Duration
	orch := NewOrchestrator(crm, Options{
		EnrollDelay: 2 * time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	})

	_, err := orch.Transfer(context.Background(), contact.Record{Email: "a@b.com"}, "wf1")
	require.NoError(t, err)
	require.Equal(t, []time.Duration{2 * time.Second}, delays)
}
