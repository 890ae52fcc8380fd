package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fairyhunter13/cafe-inventory/internal/auth"
	"github.com/fairyhunter13/cafe-inventory/internal/model"
	"github.com/fairyhunter13/cafe-inventory/internal/store"
)

func ptr(s string) *string { return &s }

func newService() (*Service, *store.Memory) {
	st := store.NewMemory()
	return NewService(st, auth.NewHasher(bcrypt.MinCost), nil, nil), st
}

func TestCreateUserHashesPassword(t *testing.T) {
	svc, st := newService()
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, model.UserForm{Name: " Ana ", Password: ptr("espresso")})
	require.NoError(t, err)
	assert.Equal(t, "Ana", u.Name)
	assert.NotEmpty(t, u.ID)

	doc, err := st.Get(ctx, model.CollectionUsers, u.ID)
	require.NoError(t, err)
	assert.NotContains(t, doc.Fields, "password")
	assert.NotEqual(t, "espresso", doc.Fields.String("password_hash"))

	ok, err := svc.CheckPassword(ctx, u.ID, "espresso")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.CheckPassword(ctx, u.ID, "latte")
	require.NoError(t, err)
	assert.False(t, ok)

	users := svc.Users()
	require.Len(t, users, 1)
	assert.Equal(t, u.ID, users[0].ID)
}

func TestCreateUserValidation(t *testing.T) {
	svc, st := newService()
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, model.UserForm{Name: "  ", Password: ptr("x")})
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.CreateUser(ctx, model.UserForm{Name: "Ana"})
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"password"}, ve.Fields)

	// an empty password is present, so it is accepted
	_, err = svc.CreateUser(ctx, model.UserForm{Name: "Ben", Password: ptr("")})
	require.NoError(t, err)

	docs, err := st.List(ctx, model.CollectionUsers)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestUpdateAndDeleteUser(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	u, err := svc.CreateUser(ctx, model.UserForm{Name: "Ana", Password: ptr("espresso")})
	require.NoError(t, err)

	_, err = svc.UpdateUser(ctx, u.ID, model.UserForm{Name: "Ana Maria", Password: ptr("ristretto")})
	require.NoError(t, err)
	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Ana Maria", users[0].Name)
	ok, err := svc.CheckPassword(ctx, u.ID, "ristretto")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.UpdateUser(ctx, "missing", model.UserForm{Name: "x", Password: ptr("y")})
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, svc.DeleteUser(ctx, u.ID))
	assert.Empty(t, svc.Users())
	assert.ErrorIs(t, svc.DeleteUser(ctx, u.ID), model.ErrNotFound)
}

func TestDuplicateNamesAllowed(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, model.UserForm{Name: "Ana", Password: ptr("a")})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, model.UserForm{Name: "Ana", Password: ptr("b")})
	require.NoError(t, err)
	assert.Len(t, svc.Users(), 2)
}
