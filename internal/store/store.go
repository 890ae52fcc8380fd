// Package store defines the document store boundary used by the services and
// an in-memory implementation of it.
package store

import (
	"context"
	"encoding/json"
	"math"
	"strconv"

	"github.com/pkg/errors"

	"github.com/fairyhunter13/cafe-inventory/internal/model"
)

// NoFloor disables the lower bound check of Adjust.
const NoFloor int64 = math.MinInt64

// Fields holds the schema-free body of a document.
type Fields map[string]any

// Document is a stored record addressed by collection and id.
type Document struct {
	ID     string
	Fields Fields
}

// Store is the remote document store client. Implementations list
// collections in creation order and return model.ErrNotFound for unknown ids
// and model.ErrStoreUnavailable (wrapped) for transport failures.
type Store interface {
	List(ctx context.Context, collection string) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Create(ctx context.Context, collection string, fields Fields) (Document, error)
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields Fields) error
	Delete(ctx context.Context, collection, id string) error
	// Adjust atomically adds delta to an integer field. The write is rejected
	// with model.ErrInsufficientStock when the result would fall below floor,
	// and with OutOfRange when it would not fit in an int64.
	Adjust(ctx context.Context, collection, id, field string, delta, floor int64) (Document, error)
	Close() error
}

// AddInt64 returns cur+delta and whether the sum fits in an int64.
func AddInt64(cur, delta int64) (int64, bool) {
	n := cur + delta
	if (delta > 0 && n < cur) || (delta < 0 && n > cur) {
		return 0, false
	}
	return n, true
}

// OutOfRange is the error Adjust returns when the adjusted value would
// overflow. It is a validation failure on the requested amount.
func OutOfRange(collection, id, field string, delta int64) error {
	return errors.Wrapf(model.NewValidationError("would take "+field+" out of range", "amount"),
		"%s/%s %s delta=%d", collection, id, field, delta)
}

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// String returns the string value of key, or "" when absent.
func (f Fields) String(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

// Int returns the integer value of key. Decoded JSON numbers and numeric
// strings are accepted; anything else yields 0.
func (f Fields) Int(key string) int64 {
	switch v := f[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if fl, err := v.Float64(); err == nil {
			return int64(fl)
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// Float returns the float value of key, accepting the same inputs as Int.
func (f Fields) Float(key string) float64 {
	switch v := f[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case json.Number:
		if fl, err := v.Float64(); err == nil {
			return fl
		}
	case string:
		if fl, err := strconv.ParseFloat(v, 64); err == nil {
			return fl
		}
	}
	return 0
}
