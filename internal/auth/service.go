package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fairyhunter13/cafe-inventory/internal/model"
	"github.com/fairyhunter13/cafe-inventory/internal/obs"
	"github.com/fairyhunter13/cafe-inventory/internal/store"
)

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Service signs accounts up and in, and tracks the sessions it issued.
// Sessions live in process memory: a restart signs everybody out.
type Service struct {
	st     store.Store
	hasher Hasher
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu     sync.Mutex
	active map[string]Session
}

// NewService builds a Service signing tokens with secret.
func NewService(st store.Store, hasher Hasher, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{
		st:     st,
		hasher: hasher,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		active: make(map[string]Session),
	}
}

// SignUp registers a new account.
func (s *Service) SignUp(ctx context.Context, c model.Credentials) (model.Account, error) {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	if err := model.Validate(c); err != nil {
		return model.Account{}, err
	}
	if _, err := s.findByEmail(ctx, c.Email); err == nil {
		return model.Account{}, model.ErrEmailTaken
	} else if !errors.Is(err, model.ErrNotFound) {
		return model.Account{}, err
	}
	hash, err := s.hasher.Hash(c.Password)
	if err != nil {
		return model.Account{}, err
	}
	now := s.now().UTC()
	doc, err := s.st.Create(ctx, model.CollectionAccounts, store.Fields{
		"email":         c.Email,
		"password_hash": hash,
		"created_at":    now.Format(time.RFC3339),
	})
	if err != nil {
		return model.Account{}, err
	}
	obs.Logger.Infow("account_created", "account_id", doc.ID, "email", c.Email)
	return model.Account{ID: doc.ID, Email: c.Email, PasswordHash: hash, CreatedAt: now}, nil
}

// SignIn checks the credentials and starts a session.
func (s *Service) SignIn(ctx context.Context, c model.Credentials) (Session, error) {
	email := strings.ToLower(strings.TrimSpace(c.Email))
	acc, err := s.findByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		return Session{}, model.ErrUnauthorized
	}
	if err != nil {
		return Session{}, err
	}
	if !s.hasher.Check(acc.PasswordHash, c.Password) {
		obs.Logger.Warnw("sign_in_rejected", "email", email)
		return Session{}, model.ErrUnauthorized
	}

	now := s.now().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		AccountID: acc.ID,
		Email:     acc.Email,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: acc.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   acc.ID,
			Issuer:    obs.ServiceName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return Session{}, errors.Wrap(err, "sign session token")
	}
	sess.Token = signed

	s.mu.Lock()
	s.pruneLocked(now)
	s.active[sess.ID] = sess
	s.mu.Unlock()
	obs.Logger.Infow("session_started", "session_id", sess.ID, "email", sess.Email)
	return sess, nil
}

// Authenticate resolves a bearer token into its live session.
func (s *Service) Authenticate(_ context.Context, token string) (Session, error) {
	var cl claims
	_, err := jwt.ParseWithClaims(token, &cl, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Session{}, errors.Wrap(model.ErrUnauthorized, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.active[cl.ID]
	if !ok {
		return Session{}, errors.Wrap(model.ErrUnauthorized, "session ended")
	}
	if !s.now().Before(sess.ExpiresAt) {
		delete(s.active, cl.ID)
		return Session{}, errors.Wrap(model.ErrUnauthorized, "session expired")
	}
	return sess, nil
}

// SignOut ends the session behind token.
func (s *Service) SignOut(ctx context.Context, token string) error {
	sess, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.active, sess.ID)
	s.mu.Unlock()
	obs.Logger.Infow("session_ended", "session_id", sess.ID, "email", sess.Email)
	return nil
}

// ActiveSessions returns the number of live sessions.
func (s *Service) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// PruneExpired drops sessions past their expiry and returns how many were
// dropped.
func (s *Service) PruneExpired() int {
	s.mu.Lock()
	n := s.pruneLocked(s.now())
	s.mu.Unlock()
	if n > 0 {
		obs.Logger.Infow("sessions_pruned", "count", n)
	}
	return n
}

func (s *Service) pruneLocked(now time.Time) int {
	n := 0
	for id, sess := range s.active {
		if !now.Before(sess.ExpiresAt) {
			delete(s.active, id)
			n++
		}
	}
	return n
}

func (s *Service) findByEmail(ctx context.Context, email string) (model.Account, error) {
	docs, err := s.st.List(ctx, model.CollectionAccounts)
	if err != nil {
		return model.Account{}, err
	}
	for _, d := range docs {
		if d.Fields.String("email") != email {
			continue
		}
		created, _ := time.Parse(time.RFC3339, d.Fields.String("created_at"))
		return model.Account{
			ID:           d.ID,
			Email:        email,
			PasswordHash: d.Fields.String("password_hash"),
			CreatedAt:    created,
		}, nil
	}
	return model.Account{}, model.ErrNotFound
}
