package ktddesdk

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
)

// Client is a minimal read-only KTDDE HTTP API client.
type Client struct {
	BaseURL    string
	BasePath   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Actor is one party of the trade.
type Actor struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	Documents   int    `json:"documents"`
}

// Card is a document as listed for an actor.
type Card struct {
	Key         string `json:"key"`
	Rank        int    `json:"rank"`
	Title       string `json:"title"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	Type        string `json:"type"`
	HasMapping  bool   `json:"has_mapping"`
}

// Document is a trade document with its content in authored key order.
type Document struct {
	Key         string          `json:"key"`
	Type        string          `json:"type"`
	Title       string          `json:"title"`
	Icon        string          `json:"icon"`
	Description string          `json:"description"`
	BusinessID  string          `json:"business_id,omitempty"`
	HasMapping  bool            `json:"has_mapping"`
	Views       map[string]int  `json:"views"`
	Content     json.RawMessage `json:"content,omitempty"`
}

// TimelineEntry is one dated event.
type TimelineEntry struct {
	Date        string `json:"date"`
	Event       string `json:"event"`
	Actor       string `json:"actor"`
	Doc         string `json:"doc,omitempty"`
	Interactive bool   `json:"interactive"`
	Visible     bool   `json:"visible_to_actor"`
}

// Issue is one failed integrity check.
type Issue struct {
	Check   string `json:"check"`
	Doc     string `json:"doc,omitempty"`
	Message string `json:"message"`
}

// SAPField is one column value of an SAP record.
type SAPField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SAPTable is an SAP extract table; each record keeps its column order.
type SAPTable struct {
	Name    string       `json:"name"`
	Role    string       `json:"role"`
	Records [][]SAPField `json:"records"`
}

// FieldMapping maps an SAP source expression onto a document field.
type FieldMapping struct {
	Source      string `json:"sap"`
	Target      string `json:"ktdde"`
	Description string `json:"desc"`
}

// Mapping is the SAP extract a document was mapped from.
type Mapping struct {
	Doc      string         `json:"doc"`
	Type     string         `json:"type"`
	Tables   []SAPTable     `json:"tables"`
	Mappings []FieldMapping `json:"mappings"`
}

// SourceValue is an SAP field highlighted during a step.
type SourceValue struct {
	Table  string   `json:"table"`
	Field  string   `json:"field"`
	Values []string `json:"values"`
}

// Step is one field mapping applied during the reveal. Frame is the
// document as revealed so far, in authored key order.
type Step struct {
	Index   int             `json:"index"`
	Total   int             `json:"total"`
	Mapping FieldMapping    `json:"mapping"`
	Field   string          `json:"field"`
	Sources []SourceValue   `json:"sources"`
	Status  string          `json:"status"`
	Frame   json.RawMessage `json:"frame"`
}

// Steps is the full scripted reveal ending in the credential.
type Steps struct {
	Doc        string          `json:"doc"`
	Tables     []SAPTable      `json:"tables"`
	Steps      []Step          `json:"steps"`
	Credential json.RawMessage `json:"credential"`
}

// IntegrityReport is the outcome of the scenario checks.
type IntegrityReport struct {
	OK      bool    `json:"ok"`
	Checked int     `json:"checked"`
	Issues  []Issue `json:"issues"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Actors lists every actor.
func (c *Client) Actors(ctx context.Context) ([]Actor, error) {
	var resp struct {
		Items []Actor `json:"items"`
	}
	err := c.do(ctx, "actors", &resp)
	return resp.Items, err
}

// ActorDocuments lists an actor's documents in view order.
func (c *Client) ActorDocuments(ctx context.Context, actor string) ([]Card, error) {
	var resp struct {
		Items []Card `json:"items"`
	}
	err := c.do(ctx, fmt.Sprintf("actors/%s/documents", url.PathEscape(actor)), &resp)
	return resp.Items, err
}

// Documents lists every document without content.
func (c *Client) Documents(ctx context.Context) ([]Document, error) {
	var resp struct {
		Items []Document `json:"items"`
	}
	err := c.do(ctx, "documents", &resp)
	return resp.Items, err
}

// Document fetches one document with content.
func (c *Client) Document(ctx context.Context, key string) (Document, error) {
	var resp Document
	err := c.do(ctx, "documents/"+url.PathEscape(key), &resp)
	return resp, err
}

// Credential fetches the Verifiable Credential of a document as JSON. A
// zero issuedAt lets the server use the current time.
func (c *Client) Credential(ctx context.Context, key string, issuedAt time.Time) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("documents/%s/credential", url.PathEscape(key))
	if !issuedAt.IsZero() {
		endpoint += "?issued_at=" + url.QueryEscape(issuedAt.UTC().Format(time.RFC3339))
	}
	var resp json.RawMessage
	err := c.do(ctx, endpoint, &resp)
	return resp, err
}

// Timeline lists events, marking those the actor sees when actor is set.
func (c *Client) Timeline(ctx context.Context, actor string) ([]TimelineEntry, error) {
	endpoint := "timeline"
	if actor != "" {
		endpoint += "?actor=" + url.QueryEscape(actor)
	}
	var resp struct {
		Items []TimelineEntry `json:"items"`
	}
	err := c.do(ctx, endpoint, &resp)
	return resp.Items, err
}

// Mapping fetches the SAP tables and field mappings of a document.
func (c *Client) Mapping(ctx context.Context, key string) (Mapping, error) {
	var resp Mapping
	err := c.do(ctx, "mappings/"+url.PathEscape(key), &resp)
	return resp, err
}

// Steps fetches the SAP to KTDDE reveal of a document.
func (c *Client) Steps(ctx context.Context, key string, issuedAt time.Time) (Steps, error) {
	endpoint := fmt.Sprintf("mappings/%s/steps", url.PathEscape(key))
	if !issuedAt.IsZero() {
		endpoint += "?issued_at=" + url.QueryEscape(issuedAt.UTC().Format(time.RFC3339))
	}
	var resp Steps
	err := c.do(ctx, endpoint, &resp)
	return resp, err
}

// Integrity runs the scenario checks.
func (c *Client) Integrity(ctx context.Context) (IntegrityReport, error) {
	var resp IntegrityReport
	err := c.do(ctx, "integrity", &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, endpoint string, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if json.NewDecoder(bytes.NewReader(b)).Decode(&env) == nil {
			apiErr.Code = env.Error.Code
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
