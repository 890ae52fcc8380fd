// Package directory manages the staff user list.
package directory

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/cafe-inventory/internal/auth"
	"github.com/fairyhunter13/cafe-inventory/internal/model"
	"github.com/fairyhunter13/cafe-inventory/internal/obs"
	"github.com/fairyhunter13/cafe-inventory/internal/store"
)

// Publisher receives change events after successful writes.
type Publisher interface {
	Enqueue(ev model.Event) bool
}

// Service owns user writes. Like the catalog it re-lists the collection
// after every successful write. Passwords are stored as bcrypt hashes only.
type Service struct {
	st     store.Store
	hasher auth.Hasher
	tracer obs.Tracer
	events Publisher

	mu       sync.RWMutex
	snapshot []model.User
}

// NewService creates a directory Service. tracer and events may be nil.
func NewService(st store.Store, hasher auth.Hasher, tracer obs.Tracer, events Publisher) *Service {
	if tracer == nil {
		tracer = obs.NoopTracer()
	}
	return &Service{st: st, hasher: hasher, tracer: tracer, events: events, snapshot: []model.User{}}
}

// ListUsers fetches the user collection and replaces the snapshot.
func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	ctx, span := s.tracer.Start(ctx, "directory.ListUsers")
	defer span.End()
	users, err := s.list(ctx)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	return users, nil
}

// Users returns a copy of the current snapshot.
func (s *Service) Users() []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, len(s.snapshot))
	copy(out, s.snapshot)
	return out
}

// CreateUser stores a new user.
func (s *Service) CreateUser(ctx context.Context, form model.UserForm) (model.User, error) {
	ctx, span := s.tracer.Start(ctx, "directory.CreateUser")
	defer span.End()

	fields, name, err := s.fields(form)
	if err != nil {
		fail(span, err)
		return model.User{}, err
	}
	doc, err := s.st.Create(ctx, model.CollectionUsers, fields)
	if err != nil {
		fail(span, err)
		return model.User{}, err
	}
	span.SetAttributes(attribute.String("user.id", doc.ID))
	obs.Logger.Infow("user_created", "user_id", doc.ID, "actor", auth.Actor(ctx))
	s.publish(ctx, model.EventUserCreated, doc.ID)
	s.refresh(ctx)
	return model.User{ID: doc.ID, Name: name, PasswordHash: fields.String("password_hash")}, nil
}

// UpdateUser replaces the name and password of user id.
func (s *Service) UpdateUser(ctx context.Context, id string, form model.UserForm) (model.User, error) {
	ctx, span := s.tracer.Start(ctx, "directory.UpdateUser", trace.WithAttributes(attribute.String("user.id", id)))
	defer span.End()

	fields, name, err := s.fields(form)
	if err != nil {
		fail(span, err)
		return model.User{}, err
	}
	if err := s.st.Update(ctx, model.CollectionUsers, id, fields); err != nil {
		fail(span, err)
		return model.User{}, err
	}
	obs.Logger.Infow("user_updated", "user_id", id, "actor", auth.Actor(ctx))
	s.publish(ctx, model.EventUserUpdated, id)
	s.refresh(ctx)
	return model.User{ID: id, Name: name, PasswordHash: fields.String("password_hash")}, nil
}

// DeleteUser removes user id.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "directory.DeleteUser", trace.WithAttributes(attribute.String("user.id", id)))
	defer span.End()

	if err := s.st.Delete(ctx, model.CollectionUsers, id); err != nil {
		fail(span, err)
		return err
	}
	obs.Logger.Infow("user_deleted", "user_id", id, "actor", auth.Actor(ctx))
	s.publish(ctx, model.EventUserDeleted, id)
	s.refresh(ctx)
	return nil
}

// CheckPassword reports whether password matches the one stored for user id.
func (s *Service) CheckPassword(ctx context.Context, id, password string) (bool, error) {
	doc, err := s.st.Get(ctx, model.CollectionUsers, id)
	if err != nil {
		return false, err
	}
	return s.hasher.Check(doc.Fields.String("password_hash"), password), nil
}

// fields validates a form and hashes its password. Only presence of the
// password is required; its strength is up to the staff.
func (s *Service) fields(form model.UserForm) (store.Fields, string, error) {
	name := strings.TrimSpace(form.Name)
	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if form.Password == nil {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, "", model.NewValidationError("is required", missing...)
	}
	hash, err := s.hasher.Hash(*form.Password)
	if err != nil {
		return nil, "", err
	}
	return store.Fields{"name": name, "password_hash": hash}, name, nil
}

func (s *Service) list(ctx context.Context) ([]model.User, error) {
	docs, err := s.st.List(ctx, model.CollectionUsers)
	if err != nil {
		return nil, err
	}
	users := make([]model.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, model.User{
			ID:           d.ID,
			Name:         d.Fields.String("name"),
			PasswordHash: d.Fields.String("password_hash"),
		})
	}
	s.mu.Lock()
	s.snapshot = users
	s.mu.Unlock()
	out := make([]model.User, len(users))
	copy(out, users)
	return out, nil
}

func (s *Service) refresh(ctx context.Context) {
	if _, err := s.list(ctx); err != nil {
		obs.Logger.Warnw("users_refresh_failed", "error", err)
	}
}

func (s *Service) publish(ctx context.Context, kind model.EventKind, id string) {
	if s.events == nil {
		return
	}
	if !s.events.Enqueue(model.Event{
		Kind:       kind,
		Collection: model.CollectionUsers,
		DocumentID: id,
		Actor:      auth.Actor(ctx),
		At:         time.Now().UTC(),
	}) {
		obs.Logger.Warnw("event_dropped", "kind", kind, "user_id", id)
	}
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
