package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deepnsharma/crm-chat-connector/internal/config"
)

// defaultTop caps query result sets when the caller does not ask otherwise.
const defaultTop = 50

// Dataverse is the generic gateway to the Dynamics 365 Web API. Domain
// lookups and writes in entities.go are built on these four verbs.
type Dataverse struct {
	apiURL     string
	auth       *TokenCache
	httpClient *http.Client
}

// NewDataverse wires the gateway to its token source.
func NewDataverse(cfg config.Dynamics, auth *TokenCache) *Dataverse {
	return &Dataverse{
		apiURL:     cfg.APIURL(),
		auth:       auth,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Query describes one OData read. Zero-valued clauses are omitted from the
// query string; Top always applies.
type Query struct {
	Filter  string
	Select  string
	Expand  string
	OrderBy string
	Top     int
}

// Encode renders the query string, leading '?' included. Clause values are
// percent-encoded: filters carry spaces and quotes, and normalized phone
// numbers carry '+', none of which may travel raw in a request line.
func (q Query) Encode() string {
	var clauses []string
	add := func(key, value string) {
		clauses = append(clauses, key+"="+url.QueryEscape(value))
	}
	if q.Filter != "" {
		add("$filter", q.Filter)
	}
	if q.Select != "" {
		add("$select", q.Select)
	}
	if q.Expand != "" {
		add("$expand", q.Expand)
	}
	if q.OrderBy != "" {
		add("$orderby", q.OrderBy)
	}
	top := q.Top
	if top <= 0 {
		top = defaultTop
	}
	clauses = append(clauses, fmt.Sprintf("$top=%d", top))
	return "?" + strings.Join(clauses, "&")
}

// Get runs a query against an entity set and returns the decoded "value"
// rows. rawQuery may be any OData query string, including a "(id)?..."
// single-record address.
func (d *Dataverse) Get(ctx context.Context, entitySet, rawQuery string) (map[string]json.RawMessage, error) {
	body, err := d.do(ctx, http.MethodGet, d.apiURL+"/"+entitySet+rawQuery, nil)
	if err != nil {
		return nil, err
	}

	var result map[string]json.RawMessage
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &RemoteError{Status: http.StatusOK, Body: "unparsable response body"}
	}
	return result, nil
}

// List runs a query and decodes each row of the "value" array into a loose
// field map for null-safe extraction.
func (d *Dataverse) List(ctx context.Context, entitySet string, q Query) ([]Row, error) {
	result, err := d.Get(ctx, entitySet, q.Encode())
	if err != nil {
		return nil, err
	}

	raw, ok := result["value"]
	if !ok {
		return nil, nil
	}
	var rows []Row
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, &RemoteError{Status: http.StatusOK, Body: "unparsable value array"}
	}
	return rows, nil
}

// Create posts a new record and returns its GUID, parsed from the trailing
// "(...)" segment of the OData-EntityId response header.
func (d *Dataverse) Create(ctx context.Context, entitySet string, fields map[string]any) (string, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s record: %w", entitySet, err)
	}

	req, err := d.newRequest(ctx, http.MethodPost, d.apiURL+"/"+entitySet, payload)
	if err != nil {
		return "", err
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", &RemoteError{Status: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return "", &RemoteError{Status: resp.StatusCode, Body: string(body)}
	}

	entityID := resp.Header.Get("OData-EntityId")
	start := strings.LastIndex(entityID, "(")
	end := strings.LastIndex(entityID, ")")
	if start < 0 || end < start+1 {
		return "", &RemoteError{Status: resp.StatusCode, Body: "missing OData-EntityId header"}
	}
	return entityID[start+1 : end], nil
}

// Update applies a partial update to one record.
func (d *Dataverse) Update(ctx context.Context, entitySet, id string, fields map[string]any) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode %s update: %w", entitySet, err)
	}
	_, err = d.do(ctx, http.MethodPatch, fmt.Sprintf("%s/%s(%s)", d.apiURL, entitySet, id), payload)
	if err != nil {
		return err
	}
	log.Info().Str("entity_set", entitySet).Str("id", id).Msg("updated record")
	return nil
}

// Delete removes one record.
func (d *Dataverse) Delete(ctx context.Context, entitySet, id string) error {
	_, err := d.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%s(%s)", d.apiURL, entitySet, id), nil)
	if err != nil {
		return err
	}
	log.Info().Str("entity_set", entitySet).Str("id", id).Msg("deleted record")
	return nil
}

func (d *Dataverse) newRequest(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build dataverse request: %w", err)
	}

	token, err := d.auth.Token()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OData-MaxVersion", "4.0")
	req.Header.Set("OData-Version", "4.0")
	req.Header.Set("Prefer", "odata.include-annotations=*")
	return req, nil
}

func (d *Dataverse) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	req, err := d.newRequest(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		// Timeouts and transport failures surface the same way as remote
		// rejections so callers have one failure path
		return nil, &RemoteError{Status: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Status: resp.StatusCode, Body: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error().Int("status", resp.StatusCode).Str("url", url).Msg("dataverse request failed")
		return nil, &RemoteError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// Row is one entity record decoded without a schema; accessors treat missing
// and null fields as absent values.
type Row map[string]json.RawMessage

// Text extracts a string field, returning "" for missing or null values.
func (r Row) Text(field string) string {
	raw, ok := r[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Number extracts a numeric field, returning 0 for missing or null values.
func (r Row) Number(field string) float64 {
	raw, ok := r[field]
	if !ok {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0
	}
	return f
}

// Int extracts an integer field, returning 0 for missing or null values.
func (r Row) Int(field string) int {
	return int(r.Number(field))
}

// Nested extracts an expanded navigation property as a Row.
func (r Row) Nested(field string) Row {
	raw, ok := r[field]
	if !ok {
		return nil
	}
	var nested Row
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil
	}
	return nested
}

// NestedList extracts an expanded collection navigation property.
func (r Row) NestedList(field string) []Row {
	raw, ok := r[field]
	if !ok {
		return nil
	}
	var nested []Row
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil
	}
	return nested
}
