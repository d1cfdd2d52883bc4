package settings

import (
	"context"
	"database/sql"
	"testing"

	"contactbridge/lib/crm"
	"contactbridge/lib/telemetry"

	_ "embed"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"
)

//go:embed db/schema.sql
var schema string

func setup(t testing.TB) (Service, func()) {
	cleanup := telemetry.SetupForTesting(t, "test:services/settings")

	sqlite, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	_, err = sqlite.Exec(schema)
	if err != nil {
		t.Fatal(err)
	}

	s := NewService(sqlite)
	return s, cleanup
}

func TestCredentialRoundTrip(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	cred, err := service.Credential(ctx)
	require.NoError(t, err)
	require.Equal(t, crm.Credential{}, cred, "unset credential reads as empty")

	want := crm.Credential{
		APIKey:     "pit-token",
		APIVersion: "v2",
		LocationID: "loc-1",
	}
	require.NoError(t, service.SaveCredential(ctx, want))

	cred, err = service.Credential(ctx)
	require.NoError(t, err)
	require.Equal(t, want, cred)

	// switching versions replaces every part, nothing stale survives
	want = crm.Credential{APIKey: "legacy-key", APIVersion: "v1"}
	require.NoError(t, service.SaveCredential(ctx, want))

	cred, err = service.Credential(ctx)
	require.NoError(t, err)
	require.Equal(t, want, cred)
	require.Empty(t, cred.LocationID)
}

func TestDefaultWorkflowRoundTrip(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	wf, err := service.DefaultWorkflow(ctx)
	require.NoError(t, err)
	require.Equal(t, Workflow{}, wf)

	want := Workflow{ID: "wf1", Name: "Welcome Sequence"}
	require.NoError(t, service.SaveDefaultWorkflow(ctx, want))

	wf, err = service.DefaultWorkflow(ctx)
	require.NoError(t, err)
	require.Equal(t, want, wf)
}

func TestActivityLog(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, service.LogActivity(ctx, "transfer", "jane@example.com -> contact-1"))
	require.NoError(t, service.LogActivity(ctx, "transfer", "john@example.com -> contact-2"))

	entries, err := service.RecentActivity(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		require.NotEmpty(t, entry.ID)
		require.Equal(t, "transfer", entry.Action)
		require.False(t, entry.At.IsZero())
	}
}

func TestRecentActivityLimit(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, service.LogActivity(ctx, "transfer", "x"))
	}

	entries, err := service.RecentActivity(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
}
