package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aifai-labs/aifai/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockInstanceRepository is a mock implementation of InstanceRepositoryInterface
type MockInstanceRepository struct {
	mock.Mock
}

func (m *MockInstanceRepository) Create(ctx context.Context, i *domain.AIInstance) error {
	args := m.Called(ctx, i)
	return args.Error(0)
}

func (m *MockInstanceRepository) GetByID(ctx context.Context, id int64) (*domain.AIInstance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AIInstance), args.Error(1)
}

func (m *MockInstanceRepository) GetByTokenHash(ctx context.Context, hash string) (*domain.AIInstance, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AIInstance), args.Error(1)
}

func TestInstanceService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("registers and returns plaintext token once", func(t *testing.T) {
		repo := new(MockInstanceRepository)
		svc := NewInstanceService(repo)

		repo.On("Create", mock.Anything, mock.MatchedBy(func(i *domain.AIInstance) bool {
			return i.Name == "claude-helper" && i.TokenHash != ""
		})).Return(nil)

		instance, token, err := svc.Register(ctx, "claude-helper")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(token, "afi_"))
		assert.True(t, IsValidAPIToken(token))
		assert.Equal(t, HashAPIToken(token), instance.TokenHash)
		assert.NotContains(t, instance.TokenHash, token, "plaintext token must not be stored")
	})

	t.Run("rejects blank name", func(t *testing.T) {
		repo := new(MockInstanceRepository)
		svc := NewInstanceService(repo)

		_, _, err := svc.Register(ctx, "   ")
		var domainErr *domain.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestInstanceService_ValidateToken(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves a valid token", func(t *testing.T) {
		repo := new(MockInstanceRepository)
		svc := NewInstanceService(repo)

		token := NewAPIToken()
		repo.On("GetByTokenHash", mock.Anything, HashAPIToken(token)).
			Return(&domain.AIInstance{ID: 12, Name: "n"}, nil)

		id, err := svc.ValidateToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, int64(12), id)
	})

	t.Run("malformed token short-circuits", func(t *testing.T) {
		repo := new(MockInstanceRepository)
		svc := NewInstanceService(repo)

		_, err := svc.ValidateToken(ctx, "not-a-token")
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
		repo.AssertNotCalled(t, "GetByTokenHash", mock.Anything, mock.Anything)
	})

	t.Run("unknown token maps to invalid token", func(t *testing.T) {
		repo := new(MockInstanceRepository)
		svc := NewInstanceService(repo)

		token := NewAPIToken()
		repo.On("GetByTokenHash", mock.Anything, mock.Anything).Return(nil, domain.ErrInstanceNotFound)

		_, err := svc.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})
}

func TestInstanceService_RegisterWithToken(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts a well-formed token", func(t *testing.T) {
		repo := new(MockInstanceRepository)
		svc := NewInstanceService(repo)

		token := "afi_" + strings.Repeat("ab", 32)
		repo.On("Create", mock.Anything, mock.Anything).Return(nil)

		instance, err := svc.RegisterWithToken(ctx, "bootstrap", token)
		require.NoError(t, err)
		assert.Equal(t, HashAPIToken(token), instance.TokenHash)
	})

	t.Run("rejects malformed token", func(t *testing.T) {
		repo := new(MockInstanceRepository)
		svc := NewInstanceService(repo)

		_, err := svc.RegisterWithToken(ctx, "bootstrap", "afi_short")
		var domainErr *domain.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
	})
}

func TestAPITokenHelpers(t *testing.T) {
	t.Run("generated tokens are unique and valid", func(t *testing.T) {
		a := NewAPIToken()
		b := NewAPIToken()
		assert.NotEqual(t, a, b)
		assert.True(t, IsValidAPIToken(a))
		assert.True(t, IsValidAPIToken(b))
	})

	t.Run("format validation", func(t *testing.T) {
		tests := []struct {
			name  string
			token string
			valid bool
		}{
			{"valid", "afi_" + strings.Repeat("0f", 32), true},
			{"wrong prefix", "api_" + strings.Repeat("0f", 32), false},
			{"too short", "afi_abcdef", false},
			{"non-hex", "afi_" + strings.Repeat("zz", 32), false},
			{"empty", "", false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.Equal(t, tt.valid, IsValidAPIToken(tt.token))
			})
		}
	})

	t.Run("hash is stable", func(t *testing.T) {
		token := "afi_" + strings.Repeat("ab", 32)
		assert.Equal(t, HashAPIToken(token), HashAPIToken(token))
		assert.Len(t, HashAPIToken(token), 64)
	})
}
