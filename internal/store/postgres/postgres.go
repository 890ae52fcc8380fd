// Package postgres implements the document store on a PostgreSQL jsonb table.
package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/fairyhunter13/cafe-inventory/internal/model"
	"github.com/fairyhunter13/cafe-inventory/internal/store"
)

// Store keeps every collection in the documents table. Creation order is
// the seq column.
type Store struct {
	db *sqlx.DB
}

var _ store.Store = (*Store)(nil)

type row struct {
	ID     string `db:"id"`
	Fields []byte `db:"fields"`
}

// Open connects to dsn and pings the server.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, unavailable("connect", err)
	}
	return New(db), nil
}

// New wraps an existing handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) List(ctx context.Context, collection string) ([]store.Document, error) {
	var rows []row
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, fields FROM documents
		WHERE collection = $1
		ORDER BY seq`, collection)
	if err != nil {
		return nil, unavailable("list "+collection, err)
	}
	out := make([]store.Document, 0, len(rows))
	for _, r := range rows {
		d, err := r.document()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	var r row
	err := s.db.GetContext(ctx, &r, `
		SELECT id, fields FROM documents
		WHERE collection = $1 AND id = $2`, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, errors.Wrapf(model.ErrNotFound, "%s/%s", collection, id)
	}
	if err != nil {
		return store.Document{}, unavailable("get "+collection, err)
	}
	return r.document()
}

func (s *Store) Create(ctx context.Context, collection string, fields store.Fields) (store.Document, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return store.Document{}, errors.Wrap(err, "encode fields")
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, fields)
		VALUES ($1, $2, $3::jsonb)`, collection, id, body)
	if err != nil {
		return store.Document{}, unavailable("create "+collection, err)
	}
	return store.Document{ID: id, Fields: fields.Clone()}, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields store.Fields) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return errors.Wrap(err, "encode fields")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET fields = fields || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2`, collection, id, body)
	if err != nil {
		return unavailable("update "+collection, err)
	}
	return affected(res, collection, id)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM documents
		WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return unavailable("delete "+collection, err)
	}
	return affected(res, collection, id)
}

// Adjust applies the delta in a single conditional UPDATE so concurrent
// adjustments serialize on the row lock.
func (s *Store) Adjust(ctx context.Context, collection, id, field string, delta, floor int64) (store.Document, error) {
	var bound any
	if floor != store.NoFloor {
		bound = floor
	}
	var r row
	err := s.db.GetContext(ctx, &r, `
		UPDATE documents
		SET fields = jsonb_set(fields, ARRAY[$3::text], to_jsonb(COALESCE((fields->>$3)::bigint, 0) + $4::bigint)),
		    updated_at = now()
		WHERE collection = $1 AND id = $2
		  AND ($5::bigint IS NULL OR COALESCE((fields->>$3)::bigint, 0) + $4::bigint >= $5::bigint)
		RETURNING id, fields`, collection, id, field, delta, bound)
	if err == nil {
		return r.document()
	}
	if outOfRange(err) {
		return store.Document{}, store.OutOfRange(collection, id, field, delta)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, unavailable("adjust "+collection, err)
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`, collection, id); err != nil {
		return store.Document{}, unavailable("adjust "+collection, err)
	}
	if !exists {
		return store.Document{}, errors.Wrapf(model.ErrNotFound, "%s/%s", collection, id)
	}
	return store.Document{}, errors.Wrapf(model.ErrInsufficientStock, "%s/%s %s delta=%d", collection, id, field, delta)
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (r row) document() (store.Document, error) {
	f := store.Fields{}
	dec := json.NewDecoder(bytes.NewReader(r.Fields))
	dec.UseNumber()
	if err := dec.Decode(&f); err != nil {
		return store.Document{}, errors.Wrapf(err, "decode document %s", r.ID)
	}
	return store.Document{ID: r.ID, Fields: f}, nil
}

func affected(res sql.Result, collection, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("rows affected", err)
	}
	if n == 0 {
		return errors.Wrapf(model.ErrNotFound, "%s/%s", collection, id)
	}
	return nil
}

// numericOutOfRange is the SQLSTATE raised when bigint arithmetic overflows.
const numericOutOfRange = "22003"

func outOfRange(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == numericOutOfRange
}

func unavailable(op string, err error) error {
	return errors.Wrapf(model.ErrStoreUnavailable, "postgres %s: %v", op, err)
}
