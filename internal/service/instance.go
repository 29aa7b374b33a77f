package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/aifai-labs/aifai/internal/domain"
	"github.com/google/uuid"
)

const tokenPrefix = "afi_"

// InstanceRepositoryInterface defines the repository interface for AI
// instance persistence
type InstanceRepositoryInterface interface {
	Create(ctx context.Context, i *domain.AIInstance) error
	GetByID(ctx context.Context, id int64) (*domain.AIInstance, error)
	GetByTokenHash(ctx context.Context, hash string) (*domain.AIInstance, error)
}

// InstanceService registers AI instances and validates their API tokens.
type InstanceService struct {
	repo InstanceRepositoryInterface
}

// NewInstanceService creates a new InstanceService instance
func NewInstanceService(repo InstanceRepositoryInterface) *InstanceService {
	return &InstanceService{repo: repo}
}

// Register creates a new AI instance and returns it with its plaintext API
// token. The token is shown exactly once; only its hash is stored.
func (s *InstanceService) Register(ctx context.Context, name string) (*domain.AIInstance, string, error) {
	if strings.TrimSpace(name) == "" {
		return nil, "", domain.NewDomainError(domain.ErrCodeValidation, "instance name is required")
	}

	token := NewAPIToken()
	instance := &domain.AIInstance{
		Name:      strings.TrimSpace(name),
		TokenHash: HashAPIToken(token),
		CreatedAt: time.Now().UTC(),
	}

	if err := domain.ValidateAIInstance(instance); err != nil {
		return nil, "", domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid instance", err)
	}

	if err := s.repo.Create(ctx, instance); err != nil {
		return nil, "", err
	}

	return instance, token, nil
}

// ValidateToken resolves an API token to the owning instance id.
func (s *InstanceService) ValidateToken(ctx context.Context, token string) (int64, error) {
	if !IsValidAPIToken(token) {
		return 0, domain.ErrInvalidToken
	}

	instance, err := s.repo.GetByTokenHash(ctx, HashAPIToken(token))
	if err != nil {
		return 0, domain.ErrInvalidToken
	}
	return instance.ID, nil
}

// RegisterWithToken creates an instance with a caller-supplied token, used
// for bootstrap provisioning.
func (s *InstanceService) RegisterWithToken(ctx context.Context, name, token string) (*domain.AIInstance, error) {
	if !IsValidAPIToken(token) {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "invalid api token format (expected 'afi_<64 hex chars>')")
	}

	instance := &domain.AIInstance{
		Name:      strings.TrimSpace(name),
		TokenHash: HashAPIToken(token),
		CreatedAt: time.Now().UTC(),
	}

	if err := domain.ValidateAIInstance(instance); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid instance", err)
	}

	if err := s.repo.Create(ctx, instance); err != nil {
		return nil, err
	}
	return instance, nil
}

// NewAPIToken generates a fresh API token of the form afi_<64 hex chars>.
func NewAPIToken() string {
	raw := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	return tokenPrefix + raw
}

// HashAPIToken returns the hex SHA-256 digest stored for a token.
func HashAPIToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IsValidAPIToken checks the afi_<64 hex chars> token format.
func IsValidAPIToken(token string) bool {
	if !strings.HasPrefix(token, tokenPrefix) {
		return false
	}
	hexPart := strings.TrimPrefix(token, tokenPrefix)
	if len(hexPart) != 64 {
		return false
	}
	_, err := hex.DecodeString(hexPart)
	return err == nil
}
