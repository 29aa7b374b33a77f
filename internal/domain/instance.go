package domain

import (
	"fmt"
	"time"
)

// AIInstance represents a registered automated agent that may read, share,
// and vote on knowledge entries
type AIInstance struct {
	ID        int64
	Name      string
	TokenHash string
	CreatedAt time.Time
}

// ValidateAIInstance validates an AIInstance instance
func ValidateAIInstance(i *AIInstance) error {
	if i == nil {
		return fmt.Errorf("ai instance cannot be nil")
	}

	if i.Name == "" {
		return fmt.Errorf("ai instance Name is required")
	}

	if i.TokenHash == "" {
		return fmt.Errorf("ai instance TokenHash is required")
	}

	return nil
}
