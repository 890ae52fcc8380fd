// Package docstore is a client for a hosted document database exposed
// through a PostgREST-style REST gateway (for example Supabase). Documents
// live in the gateway's "documents" table; merge and adjust run as RPC
// functions so they stay atomic on the server.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/fairyhunter13/cafe-inventory/internal/model"
	"github.com/fairyhunter13/cafe-inventory/internal/store"
)

const (
	table = "documents"
	// defaultPageSize stays at or below the max-rows cap hosted gateways
	// usually apply.
	defaultPageSize = 1000
	// numericOutOfRange is the SQLSTATE the gateway forwards when bigint
	// arithmetic overflows.
	numericOutOfRange = "22003"
)

var errOutOfRange = errors.New("numeric value out of range")

// Config configures the Client.
type Config struct {
	URL    string
	APIKey string
	// Timeout bounds each request. Zero means 10s.
	Timeout time.Duration
	// HTTPClient overrides the default client, mostly for tests.
	HTTPClient *http.Client
	// PageSize is the number of rows List asks for per request. Zero means
	// 1000.
	PageSize int
}

// Client is a store.Store talking to the REST gateway.
type Client struct {
	prefix   string
	apiKey   string
	hc       *http.Client
	pageSize int
}

var _ store.Store = (*Client)(nil)

type record struct {
	Collection string          `json:"collection,omitempty"`
	ID         string          `json:"id"`
	Fields     json.RawMessage `json:"fields"`
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("docstore url is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, errors.Wrap(err, "docstore url")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Client{
		prefix:   strings.TrimRight(cfg.URL, "/") + "/rest/v1",
		apiKey:   cfg.APIKey,
		hc:       hc,
		pageSize: pageSize,
	}, nil
}

// List reads the collection page by page until the gateway returns a short
// page, so a server-side row cap cannot truncate the result.
func (c *Client) List(ctx context.Context, collection string) ([]store.Document, error) {
	q := url.Values{}
	q.Set("select", "id,fields")
	q.Set("collection", "eq."+collection)
	q.Set("order", "seq.asc")
	q.Set("limit", strconv.Itoa(c.pageSize))
	var all []record
	for offset := 0; ; offset += c.pageSize {
		q.Set("offset", strconv.Itoa(offset))
		var page []record
		if err := c.do(ctx, http.MethodGet, "/"+table+"?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < c.pageSize {
			break
		}
	}
	return documents(all)
}

func (c *Client) Get(ctx context.Context, collection, id string) (store.Document, error) {
	q := url.Values{}
	q.Set("select", "id,fields")
	q.Set("collection", "eq."+collection)
	q.Set("id", "eq."+id)
	var recs []record
	if err := c.do(ctx, http.MethodGet, "/"+table+"?"+q.Encode(), nil, &recs); err != nil {
		return store.Document{}, err
	}
	if len(recs) == 0 {
		return store.Document{}, errors.Wrapf(model.ErrNotFound, "%s/%s", collection, id)
	}
	docs, err := documents(recs[:1])
	if err != nil {
		return store.Document{}, err
	}
	return docs[0], nil
}

func (c *Client) Create(ctx context.Context, collection string, fields store.Fields) (store.Document, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return store.Document{}, errors.Wrap(err, "encode fields")
	}
	rec := record{Collection: collection, ID: uuid.NewString(), Fields: body}
	if err := c.do(ctx, http.MethodPost, "/"+table, rec, nil); err != nil {
		return store.Document{}, err
	}
	return store.Document{ID: rec.ID, Fields: fields.Clone()}, nil
}

func (c *Client) Update(ctx context.Context, collection, id string, fields store.Fields) error {
	var ok bool
	err := c.do(ctx, http.MethodPost, "/rpc/merge_document", map[string]any{
		"p_collection": collection,
		"p_id":         id,
		"p_fields":     fields,
	}, &ok)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(model.ErrNotFound, "%s/%s", collection, id)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, collection, id string) error {
	q := url.Values{}
	q.Set("collection", "eq."+collection)
	q.Set("id", "eq."+id)
	var recs []record
	if err := c.do(ctx, http.MethodDelete, "/"+table+"?"+q.Encode(), nil, &recs); err != nil {
		return err
	}
	if len(recs) == 0 {
		return errors.Wrapf(model.ErrNotFound, "%s/%s", collection, id)
	}
	return nil
}

func (c *Client) Adjust(ctx context.Context, collection, id, field string, delta, floor int64) (store.Document, error) {
	args := map[string]any{
		"p_collection": collection,
		"p_id":         id,
		"p_field":      field,
		"p_delta":      delta,
	}
	if floor != store.NoFloor {
		args["p_floor"] = floor
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/rpc/adjust_document", args, &raw); err != nil {
		if errors.Is(err, errOutOfRange) {
			return store.Document{}, store.OutOfRange(collection, id, field, delta)
		}
		return store.Document{}, err
	}
	res := gjson.ParseBytes(raw)
	switch status := res.Get("status").String(); status {
	case "ok":
		docs, err := documents([]record{{ID: id, Fields: json.RawMessage(res.Get("fields").Raw)}})
		if err != nil {
			return store.Document{}, err
		}
		return docs[0], nil
	case "insufficient":
		return store.Document{}, errors.Wrapf(model.ErrInsufficientStock, "%s/%s %s delta=%d", collection, id, field, delta)
	case "not_found":
		return store.Document{}, errors.Wrapf(model.ErrNotFound, "%s/%s", collection, id)
	default:
		return store.Document{}, errors.Wrapf(model.ErrStoreUnavailable, "adjust_document: unexpected status %q", status)
	}
}

func (c *Client) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.prefix+path, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.Wrapf(model.ErrStoreUnavailable, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return errors.Wrapf(model.ErrStoreUnavailable, "read response: %v", err)
	}
	if resp.StatusCode >= 300 {
		if gjson.GetBytes(raw, "code").String() == numericOutOfRange {
			return errors.Wrapf(errOutOfRange, "%s %s: %s", method, path, gatewayError(resp.StatusCode, raw))
		}
		return errors.Wrapf(model.ErrStoreUnavailable, "%s %s: %s", method, path, gatewayError(resp.StatusCode, raw))
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(model.ErrStoreUnavailable, "decode response: %v", err)
	}
	return nil
}

// gatewayError extracts the gateway's error message from a failed response.
func gatewayError(status int, body []byte) string {
	msg := http.StatusText(status)
	if !gjson.ValidBytes(body) {
		return msg
	}
	res := gjson.ParseBytes(body)
	if m := res.Get("message").String(); m != "" {
		msg = m
	}
	if code := res.Get("code").String(); code != "" {
		msg = code + ": " + msg
	}
	if hint := res.Get("hint").String(); hint != "" {
		msg += " (" + hint + ")"
	}
	return msg
}

func documents(recs []record) ([]store.Document, error) {
	out := make([]store.Document, 0, len(recs))
	for _, r := range recs {
		f := store.Fields{}
		if len(r.Fields) > 0 {
			dec := json.NewDecoder(bytes.NewReader(r.Fields))
			dec.UseNumber()
			if err := dec.Decode(&f); err != nil {
				return nil, errors.Wrapf(err, "decode document %s", r.ID)
			}
		}
		out = append(out, store.Document{ID: r.ID, Fields: f})
	}
	return out, nil
}
