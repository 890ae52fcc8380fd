// Package redisstore implements the document store on Redis. Each document is
// a JSON string; a sorted set per collection keeps creation order. Merge and
// adjust are WATCH/MULTI transactions so numbers keep full int64 precision.
package redisstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fairyhunter13/cafe-inventory/internal/model"
	"github.com/fairyhunter13/cafe-inventory/internal/store"
)

const keyPrefix = "cafe"

// maxTxRetries bounds optimistic retries when a watched document changes
// under a merge or adjust.
const maxTxRetries = 100

// Store is a store.Store backed by a Redis client.
type Store struct {
	rdb redis.UniversalClient
}

var _ store.Store = (*Store)(nil)

// Open connects to the Redis server at addr and pings it.
func Open(ctx context.Context, addr string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, unavailable("ping", err)
	}
	return New(rdb), nil
}

// New wraps an existing client.
func New(rdb redis.UniversalClient) *Store {
	return &Store{rdb: rdb}
}

func docKey(collection, id string) string {
	return fmt.Sprintf("%s:%s:doc:%s", keyPrefix, collection, id)
}

func indexKey(collection string) string {
	return fmt.Sprintf("%s:%s:index", keyPrefix, collection)
}

func seqKey(collection string) string {
	return fmt.Sprintf("%s:%s:seq", keyPrefix, collection)
}

func (s *Store) List(ctx context.Context, collection string) ([]store.Document, error) {
	ids, err := s.rdb.ZRange(ctx, indexKey(collection), 0, -1).Result()
	if err != nil {
		return nil, unavailable("list "+collection, err)
	}
	if len(ids) == 0 {
		return []store.Document{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(collection, id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable("list "+collection, err)
	}
	out := make([]store.Document, 0, len(ids))
	for i, v := range vals {
		body, ok := v.(string)
		if !ok {
			// removed between ZRANGE and MGET
			continue
		}
		d, err := decode(ids[i], body)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	body, err := s.rdb.Get(ctx, docKey(collection, id)).Result()
	if errors.Is(err, redis.Nil) {
		return store.Document{}, errors.Wrapf(model.ErrNotFound, "%s/%s", collection, id)
	}
	if err != nil {
		return store.Document{}, unavailable("get "+collection, err)
	}
	return decode(id, body)
}

func (s *Store) Create(ctx context.Context, collection string, fields store.Fields) (store.Document, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return store.Document{}, errors.Wrap(err, "encode fields")
	}
	seq, err := s.rdb.Incr(ctx, seqKey(collection)).Result()
	if err != nil {
		return store.Document{}, unavailable("create "+collection, err)
	}
	id := uuid.NewString()
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, docKey(collection, id), body, 0)
		p.ZAdd(ctx, indexKey(collection), &redis.Z{Score: float64(seq), Member: id})
		return nil
	})
	if err != nil {
		return store.Document{}, unavailable("create "+collection, err)
	}
	return store.Document{ID: id, Fields: fields.Clone()}, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields store.Fields) error {
	_, err := s.modify(ctx, collection, id, func(cur store.Fields) (store.Fields, error) {
		return mergeFields(cur, fields), nil
	})
	return err
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	var del *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, docKey(collection, id))
		p.ZRem(ctx, indexKey(collection), id)
		return nil
	})
	if err != nil {
		return unavailable("delete "+collection, err)
	}
	if del.Val() == 0 {
		return errors.Wrapf(model.ErrNotFound, "%s/%s", collection, id)
	}
	return nil
}

func (s *Store) Adjust(ctx context.Context, collection, id, field string, delta, floor int64) (store.Document, error) {
	return s.modify(ctx, collection, id, func(cur store.Fields) (store.Fields, error) {
		return adjustFields(collection, id, cur, field, delta, floor)
	})
}

// modify applies fn to the current document and writes the result, retrying
// when another client changes the key between the read and the write.
func (s *Store) modify(ctx context.Context, collection, id string, fn func(store.Fields) (store.Fields, error)) (store.Document, error) {
	key := docKey(collection, id)
	for i := 0; i < maxTxRetries; i++ {
		var out store.Document
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			body, err := tx.Get(ctx, key).Result()
			if err != nil {
				return err
			}
			cur, err := decode(id, body)
			if err != nil {
				return err
			}
			next, err := fn(cur.Fields)
			if err != nil {
				return err
			}
			enc, err := json.Marshal(next)
			if err != nil {
				return errors.Wrap(err, "encode fields")
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Set(ctx, key, enc, 0)
				return nil
			})
			if err != nil {
				return err
			}
			out, err = decode(id, string(enc))
			return err
		}, key)
		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, redis.Nil):
			return store.Document{}, errors.Wrapf(model.ErrNotFound, "%s/%s", collection, id)
		case errors.Is(err, model.ErrInsufficientStock), errors.Is(err, model.ErrValidation):
			return store.Document{}, err
		default:
			return store.Document{}, unavailable("modify "+collection, err)
		}
	}
	return store.Document{}, unavailable("modify "+collection, errors.Errorf("%s/%s still contended after %d attempts", collection, id, maxTxRetries))
}

func mergeFields(cur, fields store.Fields) store.Fields {
	next := cur.Clone()
	for k, v := range fields {
		next[k] = v
	}
	return next
}

func adjustFields(collection, id string, cur store.Fields, field string, delta, floor int64) (store.Fields, error) {
	n, ok := store.AddInt64(cur.Int(field), delta)
	if !ok {
		return nil, store.OutOfRange(collection, id, field, delta)
	}
	if n < floor {
		return nil, errors.Wrapf(model.ErrInsufficientStock, "%s/%s %s=%d delta=%d", collection, id, field, cur.Int(field), delta)
	}
	next := cur.Clone()
	next[field] = n
	return next, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *Store) Close() error { return s.rdb.Close() }

func decode(id, body string) (store.Document, error) {
	f := store.Fields{}
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	if err := dec.Decode(&f); err != nil {
		return store.Document{}, errors.Wrapf(err, "decode document %s", id)
	}
	return store.Document{ID: id, Fields: f}, nil
}

func unavailable(op string, err error) error {
	return errors.Wrapf(model.ErrStoreUnavailable, "redis %s: %v", op, err)
}
