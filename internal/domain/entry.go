package domain

import (
	"fmt"
	"time"
)

// KnowledgeEntry represents a shared piece of knowledge in the exchange
type KnowledgeEntry struct {
	ID          int64
	InstanceID  int64
	Title       string
	Description string
	Content     string
	CodeExample string
	Context     string
	Category    string
	Tags        []string
	SuccessRate float64
	UsageCount  int64
	Upvotes     int64
	Downvotes   int64
	Verified    bool
	VerifiedBy  *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AgeDays returns the whole days elapsed since the entry was created,
// floored at zero.
func (e *KnowledgeEntry) AgeDays(now time.Time) int {
	if e.CreatedAt.IsZero() {
		return 0
	}
	days := int(now.Sub(e.CreatedAt).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// NetVotes returns upvotes minus downvotes.
func (e *KnowledgeEntry) NetVotes() int64 {
	return e.Upvotes - e.Downvotes
}

// VoteType represents the direction of a vote on a knowledge entry
type VoteType string

const (
	VoteUpvote   VoteType = "upvote"
	VoteDownvote VoteType = "downvote"
)

// ValidateKnowledgeEntry validates a KnowledgeEntry instance
func ValidateKnowledgeEntry(e *KnowledgeEntry) error {
	if e == nil {
		return fmt.Errorf("knowledge entry cannot be nil")
	}

	if e.Title == "" {
		return fmt.Errorf("knowledge entry Title is required")
	}

	if e.Content == "" {
		return fmt.Errorf("knowledge entry Content is required")
	}

	if e.Category == "" {
		return fmt.Errorf("knowledge entry Category is required")
	}

	if e.SuccessRate < 0 || e.SuccessRate > 1 {
		return fmt.Errorf("knowledge entry SuccessRate must be in [0,1], got %v", e.SuccessRate)
	}

	if e.UsageCount < 0 {
		return fmt.Errorf("knowledge entry UsageCount cannot be negative")
	}

	if e.Upvotes < 0 || e.Downvotes < 0 {
		return fmt.Errorf("knowledge entry vote counts cannot be negative")
	}

	if e.Verified && e.VerifiedBy == nil {
		return fmt.Errorf("verified knowledge entry must record VerifiedBy")
	}

	if !e.Verified && e.VerifiedBy != nil {
		return fmt.Errorf("unverified knowledge entry cannot record VerifiedBy")
	}

	return nil
}

// IsValidVoteType checks if a VoteType is valid
func IsValidVoteType(v VoteType) bool {
	switch v {
	case VoteUpvote, VoteDownvote:
		return true
	}
	return false
}
