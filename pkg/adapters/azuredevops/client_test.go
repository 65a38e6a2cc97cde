package azuredevops

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MuiGoku123432/adoflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		Organization: "myorg",
		Project:      "myproject",
		PAT:          "secret",
		BaseURL:      srv.URL,
	})
}

func TestGetWorkItem(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/myorg/myproject/_apis/wit/workitems/42", r.URL.Path)

		wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte(":secret"))
		assert.Equal(t, wantAuth, r.Header.Get("Authorization"))

		fmt.Fprint(w, `{"id":42,"rev":5,"fields":{"System.State":"Active","System.WorkItemType":"Bug"}}`)
	}))

	item, err := client.GetWorkItem(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 42, item.ID)
	assert.Equal(t, 5, item.Rev)
	assert.Equal(t, "Active", item.CurrentState)
	assert.Equal(t, "Bug", item.WorkItemType)
}

func TestGetWorkItemFieldDefaults(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":42,"rev":1,"fields":{}}`)
	}))

	item, err := client.GetWorkItem(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "New", item.CurrentState)
	assert.Equal(t, "Task", item.WorkItemType)
}

func TestQueryNextStateTerminal(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/myorg/_apis/wit/workitemtransitions", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("ids"))
		fmt.Fprint(w, `{"count":0,"value":[]}`)
	}))

	next, err := client.QueryNextState(context.Background(), &domain.WorkItemRef{ID: 42, CurrentState: "Closed"})
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestQueryNextStateWithRequiredFields(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			fmt.Fprint(w, `{"count":1,"value":[{"id":42,"stateOnTransition":"Resolved"}]}`)
		case r.Method == http.MethodPatch:
			assert.Equal(t, "true", r.URL.Query().Get("validateOnly"))

			var ops []patchOp
			require.NoError(t, json.NewDecoder(r.Body).Decode(&ops))
			require.Len(t, ops, 1)
			assert.Equal(t, "replace", ops[0].Op)
			assert.Equal(t, "/fields/System.State", ops[0].Path)
			assert.Equal(t, "Resolved", ops[0].Value)

			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"message":"The work item is invalid: missing (Microsoft.VSTS.Common.ResolvedReason)."}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
		}
	}))

	next, err := client.QueryNextState(context.Background(), &domain.WorkItemRef{ID: 42, CurrentState: "Active"})
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "Resolved", next.TargetState)
	require.Len(t, next.RequiredFields, 1)
	assert.Equal(t, "Microsoft.VSTS.Common.ResolvedReason", next.RequiredFields[0].RefName)
	assert.True(t, next.RequiredFields[0].Required)
}

func TestQueryNextStateNoFieldsNeeded(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `{"count":1,"value":[{"id":42,"stateOnTransition":"Resolved"}]}`)
			return
		}
		// Validate-only update passes cleanly.
		fmt.Fprint(w, `{"id":42,"rev":5}`)
	}))

	next, err := client.QueryNextState(context.Background(), &domain.WorkItemRef{ID: 42})
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Empty(t, next.RequiredFields)
}

func TestQueryNextStateUnparseableValidation(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `{"count":1,"value":[{"id":42,"stateOnTransition":"Resolved"}]}`)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"TF401320: rule error"}`)
	}))

	_, err := client.QueryNextState(context.Background(), &domain.WorkItemRef{ID: 42})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TF401320")
}

func TestApplyTransitionPatchDocument(t *testing.T) {
	var gotOps []patchOp
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "application/json-patch+json", r.Header.Get("Content-Type"))
		assert.Equal(t, "true", r.URL.Query().Get("suppressNotifications"))
		assert.Empty(t, r.URL.Query().Get("validateOnly"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotOps))
		fmt.Fprint(w, `{"id":42,"rev":6}`)
	}))

	err := client.ApplyTransition(context.Background(), 42, 5, "Resolved", map[string]any{
		"System.Reason":                        "Moved to Resolved",
		"Microsoft.VSTS.Common.ResolvedReason": "Fixed",
	})
	require.NoError(t, err)

	require.Len(t, gotOps, 4)
	assert.Equal(t, patchOp{Op: "test", Path: "/rev", Value: 5.0}, gotOps[0])
	assert.Equal(t, patchOp{Op: "replace", Path: "/fields/System.State", Value: "Resolved"}, gotOps[1])
	// Field ops are sorted by reference name.
	assert.Equal(t, "/fields/Microsoft.VSTS.Common.ResolvedReason", gotOps[2].Path)
	assert.Equal(t, "/fields/System.Reason", gotOps[3].Path)
}

func TestApplyTransitionZeroRevSkipsConcurrencyCheck(t *testing.T) {
	var gotOps []patchOp
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotOps))
		fmt.Fprint(w, `{"id":42,"rev":2}`)
	}))

	err := client.ApplyTransition(context.Background(), 42, 0, "Active", nil)
	require.NoError(t, err)

	require.Len(t, gotOps, 1)
	assert.Equal(t, "/fields/System.State", gotOps[0].Path)
}

func TestApplyTransitionRemoteRefusal(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"VS403351: you do not have permission"}`)
	}))

	err := client.ApplyTransition(context.Background(), 42, 5, "Resolved", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VS403351")
}

func TestCurrentUser(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/myorg/_apis/connectionData", r.URL.Path)
		fmt.Fprint(w, `{"authenticatedUser":{"providerDisplayName":"Dev Eloper","properties":{"Account":{"$value":"dev@example.com"}}}}`)
	}))

	user, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", user)
}

func TestCurrentUserFallsBackToDisplayName(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"authenticatedUser":{"providerDisplayName":"Dev Eloper"}}`)
	}))

	user, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Dev Eloper", user)
}

func TestRetriesTransientServerErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"id":42,"rev":1,"fields":{}}`)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		Organization: "myorg",
		Project:      "myproject",
		PAT:          "secret",
		BaseURL:      srv.URL,
		MaxElapsed:   5 * time.Second,
	})

	item, err := client.GetWorkItem(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 42, item.ID)
	assert.GreaterOrEqual(t, attempts.Load(), int32(2))
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"work item does not exist"}`)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		Organization: "myorg",
		Project:      "myproject",
		PAT:          "secret",
		BaseURL:      srv.URL,
		MaxElapsed:   5 * time.Second,
	})

	_, err := client.GetWorkItem(context.Background(), 42)
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
	assert.Contains(t, err.Error(), "work item does not exist")
}
