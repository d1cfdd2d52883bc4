package bridge

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"contactbridge/lib/crm"
	"contactbridge/lib/telemetry"
	"contactbridge/services/settings"
	settingsdb "contactbridge/services/settings/db"

	_ "modernc.org/sqlite"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router   *gin.Engine
	settings settings.Service
	crmMux   *http.ServeMux
}

func setup(t testing.TB) (*fixture, func()) {
	cleanup := telemetry.SetupForTesting(t, "test:services/bridge")

	sqlite, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	_, err = sqlite.Exec(settingsdb.Schema)
	require.NoError(t, err)

	crmMux := http.NewServeMux()
	crmServer := httptest.NewServer(crmMux)
	t.Cleanup(crmServer.Close)

	settingsService := settings.NewService(sqlite)
	service := NewService(settingsService, Options{
		EnrollDelay: time.Millisecond,
		CrmBaseURL:  crmServer.URL,
	})

	gin.SetMode(gin.TestMode)
	router := gin.New()
	service.Mount(router)

	return &fixture{
		router:   router,
		settings: settingsService,
		crmMux:   crmMux,
	}, cleanup
}

func (f *fixture) do(t *testing.T, action string, payload any) (*httptest.ResponseRecorder, actionResponse) {
	body := map[string]any{"action": action}
	if payload != nil {
		body["payload"] = payload
	}
	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/action", bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var res actionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, action, res.Action)
	return rec, res
}

func TestCredentialActions(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()

	rec, res := f.do(t, ActionSaveAPIKey, crm.Credential{
		APIKey:     "key",
		APIVersion: "v1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, res.OK)

	rec, res = f.do(t, ActionGetAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cred crm.Credential
	requireData(t, res, &cred)
	require.Equal(t, "key", cred.APIKey)
	require.Equal(t, "v1", cred.APIVersion)
}

func TestSaveCredentialRejectsInvalid(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()

	rec, res := f.do(t, ActionSaveAPIKey, crm.Credential{APIKey: ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, res.OK)
	require.NotEmpty(t, res.Error)

	// nothing was persisted
	cred, err := f.settings.Credential(context.Background())
	require.NoError(t, err)
	require.Empty(t, cred.APIKey)
}

func TestDefaultWorkflowActions(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()

	rec, _ := f.do(t, ActionSaveDefaultWorkflow, settings.Workflow{
		ID:   "wf1",
		Name: "Welcome",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	_, res := f.do(t, ActionGetDefaultWorkflow, nil)
	var wf settings.Workflow
	requireData(t, res, &wf)
	require.Equal(t, settings.Workflow{ID: "wf1", Name: "Welcome"}, wf)
}

func TestLoadWorkflows(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()

	f.crmMux.HandleFunc("/workflows/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"workflows":[{"id":"wf1","name":"Welcome","status":"publish"}]}`)
	})

	_, _ = f.do(t, ActionSaveAPIKey, crm.Credential{APIKey: "key", APIVersion: "v1"})

	rec, res := f.do(t, ActionLoadWorkflows, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var workflows []crm.WorkflowRef
	requireData(t, res, &workflows)
	require.Equal(t, []crm.WorkflowRef{{ID: "wf1", Name: "Welcome", Status: "publish"}}, workflows)
}

func TestTransferContact(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()

	var enrolled []string
	f.crmMux.HandleFunc("/contacts/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `{"contacts":[]}`)
			return
		}
		fmt.Fprint(w, `{"contact":{"id":"c1"}}`)
	})
	f.crmMux.HandleFunc("/contacts/c1/workflow/", func(w http.ResponseWriter, r *http.Request) {
		enrolled = append(enrolled, r.URL.Path)
		fmt.Fprint(w, `{"succeded":true}`)
	})

	_, _ = f.do(t, ActionSaveAPIKey, crm.Credential{APIKey: "key", APIVersion: "v1"})
	_, _ = f.do(t, ActionSaveDefaultWorkflow, settings.Workflow{ID: "wf1", Name: "Welcome"})

	rec, res := f.do(t, ActionTransferContact, map[string]any{
		"record": map[string]any{"email": "jane@example.com"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, res.OK)

	var outcome struct {
		ContactID string `json:"contactId"`
		Enrolled  bool   `json:"enrolled"`
	}
	requireData(t, res, &outcome)
	require.Equal(t, "c1", outcome.ContactID)
	require.True(t, outcome.Enrolled)
	// the default workflow from settings was used
	require.Equal(t, []string{"/contacts/c1/workflow/wf1"}, enrolled)

	entries, err := f.settings.RecentActivity(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].Detail, "jane@example.com")
}

func TestTransferContactEnrollFailureKeepsContactID(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()

	f.crmMux.HandleFunc("/contacts/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `{"contacts":[]}`)
			return
		}
		fmt.Fprint(w, `{"contact":{"id":"c1"}}`)
	})
	f.crmMux.HandleFunc("/contacts/c1/workflow/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"workflow gone"}`)
	})

	_, _ = f.do(t, ActionSaveAPIKey, crm.Credential{APIKey: "key", APIVersion: "v1"})

	rec, res := f.do(t, ActionTransferContact, map[string]any{
		"record":     map[string]any{"email": "jane@example.com"},
		"workflowId": "wf1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, res.OK)

	var result struct {
		ContactID string `json:"contactId"`
		Enrolled  bool   `json:"enrolled"`
		Message   string `json:"message"`
	}
	requireData(t, res, &result)
	require.Equal(t, "c1", result.ContactID)
	require.False(t, result.Enrolled)
	require.Contains(t, result.Message, "failed to add to workflow")
}

func TestTransferContactRejectsEmptyRecord(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()

	_, _ = f.do(t, ActionSaveAPIKey, crm.Credential{APIKey: "key", APIVersion: "v1"})

	rec, res := f.do(t, ActionTransferContact, map[string]any{
		"record": map[string]any{"firstName": "Jane"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, res.OK)
}

func TestTransferContactAuthErrorMapsTo401(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()

	f.crmMux.HandleFunc("/contacts/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `{"contacts":[]}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"unauthorized"}`)
	})

	_, _ = f.do(t, ActionSaveAPIKey, crm.Credential{APIKey: "bad", APIVersion: "v1"})

	rec, _ := f.do(t, ActionTransferContact, map[string]any{
		"record": map[string]any{"email": "jane@example.com"},
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExtractData(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()

	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><form>
			<input name="email" value="page@example.com">
			<input name="phone" value="555-123-4567">
		</form></body></html>`)
	}))
	defer page.Close()

	rec, res := f.do(t, ActionExtractData, map[string]any{"url": page.URL})
	require.Equal(t, http.StatusOK, rec.Code)

	var extracted struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	requireData(t, res, &extracted)
	require.Equal(t, "page@example.com", extracted.Email)
	require.Equal(t, "555-123-4567", extracted.Phone)
}

func TestUnknownAction(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()

	rec, res := f.do(t, "definitelyNotAnAction", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, res.OK)
	require.Contains(t, res.Error, "unknown action")
}

func requireData(t *testing.T, res actionResponse, into any) {
	t.Helper()
	encoded, err := json.Marshal(res.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(encoded, into))
}
