package docstore

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/cafe-inventory/internal/model"
	"github.com/fairyhunter13/cafe-inventory/internal/store"
)

// gateway is a tiny in-memory stand-in for the REST gateway.
type gateway struct {
	mu      sync.Mutex
	docs    []record
	apiKey  string
	maxRows int
	lists   int
}

func (g *gateway) find(collection, id string) int {
	for i, d := range g.docs {
		if d.Collection == collection && d.ID == id {
			return i
		}
	}
	return -1
}

func (g *gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r.Header.Get("apikey") != g.apiKey || r.Header.Get("Authorization") != "Bearer "+g.apiKey {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"PGRST301","message":"JWT invalid"}`))
		return
	}
	q := r.URL.Query()
	coll := strings.TrimPrefix(q.Get("collection"), "eq.")
	id := strings.TrimPrefix(q.Get("id"), "eq.")

	switch {
	case r.URL.Path == "/rest/v1/documents" && r.Method == http.MethodGet:
		g.lists++
		out := []record{}
		for _, d := range g.docs {
			if d.Collection == coll && (id == "" || d.ID == id) {
				out = append(out, record{ID: d.ID, Fields: d.Fields})
			}
		}
		offset, _ := strconv.Atoi(q.Get("offset"))
		if offset > len(out) {
			offset = len(out)
		}
		out = out[offset:]
		limit, err := strconv.Atoi(q.Get("limit"))
		if err != nil || (g.maxRows > 0 && limit > g.maxRows) {
			limit = g.maxRows
		}
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		_ = json.NewEncoder(w).Encode(out)
	case r.URL.Path == "/rest/v1/documents" && r.Method == http.MethodPost:
		var rec record
		_ = json.NewDecoder(r.Body).Decode(&rec)
		g.docs = append(g.docs, rec)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode([]record{rec})
	case r.URL.Path == "/rest/v1/documents" && r.Method == http.MethodDelete:
		out := []record{}
		if i := g.find(coll, id); i >= 0 {
			out = append(out, g.docs[i])
			g.docs = append(g.docs[:i], g.docs[i+1:]...)
		}
		_ = json.NewEncoder(w).Encode(out)
	case r.URL.Path == "/rest/v1/rpc/merge_document":
		var args struct {
			Collection string         `json:"p_collection"`
			ID         string         `json:"p_id"`
			Fields     map[string]any `json:"p_fields"`
		}
		_ = json.NewDecoder(r.Body).Decode(&args)
		i := g.find(args.Collection, args.ID)
		if i < 0 {
			_, _ = w.Write([]byte("false"))
			return
		}
		cur := map[string]any{}
		_ = json.Unmarshal(g.docs[i].Fields, &cur)
		for k, v := range args.Fields {
			cur[k] = v
		}
		g.docs[i].Fields, _ = json.Marshal(cur)
		_, _ = w.Write([]byte("true"))
	case r.URL.Path == "/rest/v1/rpc/adjust_document":
		var args struct {
			Collection string `json:"p_collection"`
			ID         string `json:"p_id"`
			Field      string `json:"p_field"`
			Delta      int64  `json:"p_delta"`
			Floor      *int64 `json:"p_floor"`
		}
		_ = json.NewDecoder(r.Body).Decode(&args)
		i := g.find(args.Collection, args.ID)
		if i < 0 {
			_, _ = w.Write([]byte(`{"status":"not_found"}`))
			return
		}
		cur := map[string]any{}
		_ = json.Unmarshal(g.docs[i].Fields, &cur)
		n, ok := store.AddInt64(int64(cur[args.Field].(float64)), args.Delta)
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":"22003","message":"bigint out of range"}`))
			return
		}
		if args.Floor != nil && n < *args.Floor {
			_, _ = w.Write([]byte(`{"status":"insufficient"}`))
			return
		}
		cur[args.Field] = n
		g.docs[i].Fields, _ = json.Marshal(cur)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "fields": cur})
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"PGRST202","message":"Could not find the function","hint":"Run the migrations"}`))
	}
}

func newClient(t *testing.T) (*Client, *gateway) {
	t.Helper()
	gw := &gateway{apiKey: "anon-key"}
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)
	c, err := New(Config{URL: srv.URL + "/", APIKey: "anon-key"})
	require.NoError(t, err)
	return c, gw
}

func TestClientCRUD(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	a, err := c.Create(ctx, "products", store.Fields{"name": "Muffin", "quantity": 10, "price": 2.5})
	require.NoError(t, err)
	b, err := c.Create(ctx, "products", store.Fields{"name": "Latte", "quantity": 2, "price": 3.2})
	require.NoError(t, err)
	_, err = c.Create(ctx, "users", store.Fields{"name": "Ana"})
	require.NoError(t, err)

	docs, err := c.List(ctx, "products")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, a.ID, docs[0].ID)
	assert.Equal(t, b.ID, docs[1].ID)
	assert.EqualValues(t, 10, docs[0].Fields.Int("quantity"))
	assert.Equal(t, 2.5, docs[0].Fields.Float("price"))

	require.NoError(t, c.Update(ctx, "products", a.ID, store.Fields{"name": "Blueberry Muffin"}))
	got, err := c.Get(ctx, "products", a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blueberry Muffin", got.Fields.String("name"))
	assert.EqualValues(t, 10, got.Fields.Int("quantity"))
	assert.ErrorIs(t, c.Update(ctx, "products", "nope", store.Fields{"name": "x"}), model.ErrNotFound)

	_, err = c.Get(ctx, "products", "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, c.Delete(ctx, "products", b.ID))
	assert.ErrorIs(t, c.Delete(ctx, "products", b.ID), model.ErrNotFound)
	require.NoError(t, c.Close())
}

func TestClientAdjust(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()
	p, err := c.Create(ctx, "products", store.Fields{"name": "Muffin", "quantity": 10})
	require.NoError(t, err)

	doc, err := c.Adjust(ctx, "products", p.ID, "quantity", -3, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 7, doc.Fields.Int("quantity"))

	_, err = c.Adjust(ctx, "products", p.ID, "quantity", -10, 0)
	assert.ErrorIs(t, err, model.ErrInsufficientStock)

	doc, err = c.Adjust(ctx, "products", p.ID, "quantity", 5, store.NoFloor)
	require.NoError(t, err)
	assert.EqualValues(t, 12, doc.Fields.Int("quantity"))

	_, err = c.Adjust(ctx, "products", "nope", "quantity", 1, 0)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = c.Adjust(ctx, "products", p.ID, "quantity", math.MaxInt64, store.NoFloor)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.NotErrorIs(t, err, model.ErrStoreUnavailable)
}

func TestClientListPages(t *testing.T) {
	gw := &gateway{apiKey: "anon-key", maxRows: 2}
	srv := httptest.NewServer(gw)
	defer srv.Close()
	c, err := New(Config{URL: srv.URL, APIKey: "anon-key", PageSize: 2})
	require.NoError(t, err)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		d, err := c.Create(ctx, "products", store.Fields{"name": "Bagel " + strconv.Itoa(i), "quantity": i})
		require.NoError(t, err)
		ids = append(ids, d.ID)
	}

	docs, err := c.List(ctx, "products")
	require.NoError(t, err)
	require.Len(t, docs, 5)
	for i, d := range docs {
		assert.Equal(t, ids[i], d.ID)
	}
	gw.mu.Lock()
	defer gw.mu.Unlock()
	assert.Equal(t, 3, gw.lists)
}

func TestClientGatewayErrors(t *testing.T) {
	gw := &gateway{apiKey: "anon-key"}
	srv := httptest.NewServer(gw)
	defer srv.Close()
	c, err := New(Config{URL: srv.URL, APIKey: "wrong"})
	require.NoError(t, err)

	_, err = c.List(context.Background(), "products")
	require.ErrorIs(t, err, model.ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "PGRST301: JWT invalid")

	srv.Close()
	_, err = c.List(context.Background(), "products")
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
}

func TestGatewayError(t *testing.T) {
	assert.Equal(t, "PGRST202: Could not find the function (Run the migrations)",
		gatewayError(404, []byte(`{"code":"PGRST202","message":"Could not find the function","hint":"Run the migrations"}`)))
	assert.Equal(t, "Bad Gateway", gatewayError(502, []byte("<html>")))
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
