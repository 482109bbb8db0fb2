package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepnsharma/crm-chat-connector/internal/config"
)

// newTestDataverse returns a gateway pointed at the given server with a
// pre-seeded token so no auth round trip happens.
func newTestDataverse(serverURL string) *Dataverse {
	cache := newTestTokenCache("http://unused.invalid")
	cache.token = "test-token"
	cache.expiry = time.Now().Add(time.Hour)

	return NewDataverse(config.Dynamics{
		BaseURL:    serverURL,
		APIVersion: "v9.2",
	}, cache)
}

func TestQueryEncode(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{
			name:  "empty query still caps results",
			query: Query{},
			want:  "?$top=50",
		},
		{
			name:  "explicit top",
			query: Query{Top: 7},
			want:  "?$top=7",
		},
		{
			name: "all clauses in order",
			query: Query{
				Filter:  "statecode eq 0",
				Select:  "name,accountid",
				Expand:  "contacts($select=fullname)",
				OrderBy: "createdon desc",
				Top:     10,
			},
			want: "?$filter=statecode+eq+0&$select=name%2Caccountid&$expand=contacts%28%24select%3Dfullname%29&$orderby=createdon+desc&$top=10",
		},
		{
			name:  "filter only",
			query: Query{Filter: "name eq 'x'"},
			want:  "?$filter=name+eq+%27x%27&$top=50",
		},
		{
			name:  "plus sign in phone filter survives decoding",
			query: Query{Filter: "contains(mobilephone,'+919876543210')"},
			want:  "?$filter=contains%28mobilephone%2C%27%2B919876543210%27%29&$top=50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.Encode())
		})
	}
}

func TestDataverse_RequestHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "4.0", r.Header.Get("OData-MaxVersion"))
		assert.Equal(t, "4.0", r.Header.Get("OData-Version"))
		assert.Equal(t, "odata.include-annotations=*", r.Header.Get("Prefer"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value":[]}`))
	}))
	defer server.Close()

	d := newTestDataverse(server.URL)
	rows, err := d.List(context.Background(), "accounts", Query{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDataverse_CreateParsesEntityID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/data/v9.2/leads", r.URL.Path)

		var fields map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&fields))
		assert.Equal(t, "WhatsApp Lead - Cement", fields["subject"])

		w.Header().Set("OData-EntityId",
			"http://"+r.Host+"/api/data/v9.2/leads(11111111-2222-3333-4444-555555555555)")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := newTestDataverse(server.URL)
	id, err := d.Create(context.Background(), "leads", map[string]any{
		"subject": "WhatsApp Lead - Cement",
	})
	require.NoError(t, err)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", id)
}

func TestDataverse_CreateWithoutEntityIDHeaderFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := newTestDataverse(server.URL)
	_, err := d.Create(context.Background(), "leads", map[string]any{"subject": "x"})

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Contains(t, remote.Body, "OData-EntityId")
}

func TestDataverse_NonSuccessStatusBecomesRemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"invalid filter"}}`))
	}))
	defer server.Close()

	d := newTestDataverse(server.URL)
	_, err := d.List(context.Background(), "accounts", Query{Filter: "bogus"})

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusBadRequest, remote.Status)
	assert.Contains(t, remote.Body, "invalid filter")
}

func TestDataverse_UpdateSendsPatchToRecordAddress(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := newTestDataverse(server.URL)
	err := d.Update(context.Background(), "quotes", "abc-123", map[string]any{"statecode": 1})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/api/data/v9.2/quotes(abc-123)", gotPath)
}

func TestDataverse_DeleteSendsDeleteToRecordAddress(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := newTestDataverse(server.URL)
	err := d.Delete(context.Background(), "incidents", "def-456")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/api/data/v9.2/incidents(def-456)", gotPath)
}

func TestRow_NullSafeAccessors(t *testing.T) {
	raw := `{
		"name": "Acme",
		"telephone1": null,
		"totalamount": 1250.5,
		"statecode": 1,
		"parent": {"accountid": "a-1"},
		"children": [{"contactid": "c-1"}, {"contactid": "c-2"}]
	}`
	var row Row
	require.NoError(t, json.Unmarshal([]byte(raw), &row))

	assert.Equal(t, "Acme", row.Text("name"))
	assert.Equal(t, "", row.Text("telephone1"))
	assert.Equal(t, "", row.Text("missing"))
	assert.Equal(t, 1250.5, row.Number("totalamount"))
	assert.Equal(t, float64(0), row.Number("missing"))
	assert.Equal(t, 1, row.Int("statecode"))

	parent := row.Nested("parent")
	require.NotNil(t, parent)
	assert.Equal(t, "a-1", parent.Text("accountid"))
	assert.Nil(t, row.Nested("missing"))

	children := row.NestedList("children")
	require.Len(t, children, 2)
	assert.Equal(t, "c-2", children[1].Text("contactid"))
	assert.Nil(t, row.NestedList("missing"))
}
