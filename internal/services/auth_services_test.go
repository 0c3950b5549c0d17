package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"StorefrontAPI/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUsers struct {
	mu    sync.Mutex
	users map[int64]*model.Auth
}

func (m *memUsers) CreateUser(_ context.Context, email, hash, role string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users == nil {
		m.users = map[int64]*model.Auth{}
	}
	id := int64(len(m.users) + 1)
	now := time.Now()
	m.users[id] = &model.Auth{AuthID: id, Email: email, PasswordHash: hash, Role: role, CreatedAt: &now}
	return id, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.Auth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*model.Auth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		cp.PasswordHash = ""
		return &cp, nil
	}
	return nil, nil
}

func (m *memUsers) EmailExists(ctx context.Context, email string) (bool, error) {
	u, err := m.GetByEmail(ctx, email)
	return u != nil, err
}

func TestAuthServiceAdminLogin(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(&memUsers{})

	id, err := svc.CreateAdmin(ctx, "ops@store.test", "correct-horse")
	require.NoError(t, err)

	_, err = svc.CreateAdmin(ctx, "ops@store.test", "correct-horse")
	assert.EqualError(t, err, "email already registered")

	u, err := svc.Login(ctx, "ops@store.test", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, id, u.AuthID)
	assert.Equal(t, RoleAdmin, u.Role)
	assert.Empty(t, u.PasswordHash)

	_, err = svc.Login(ctx, "ops@store.test", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@store.test", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	me, err := svc.Me(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ops@store.test", me.Email)
}

func TestAuthServiceValidation(t *testing.T) {
	svc := NewAuthService(&memUsers{})

	_, err := svc.CreateAdmin(context.Background(), "not-an-email", "correct-horse")
	assert.EqualError(t, err, "invalid email format")

	_, err = svc.CreateAdmin(context.Background(), "ops@store.test", "short")
	assert.ErrorContains(t, err, "password too short")
}
