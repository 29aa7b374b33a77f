package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEntry() *KnowledgeEntry {
	return &KnowledgeEntry{
		ID:          1,
		InstanceID:  1,
		Title:       "Use prepared statements",
		Content:     "Prepared statements avoid SQL injection and repeated parsing.",
		Category:    "database",
		Tags:        []string{"sql", "security"},
		SuccessRate: 0.9,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func TestVoteTypeConstants(t *testing.T) {
	assert.Equal(t, "upvote", string(VoteUpvote))
	assert.Equal(t, "downvote", string(VoteDownvote))
}

func TestIsValidVoteType(t *testing.T) {
	tests := []struct {
		name     string
		vote     VoteType
		expected bool
	}{
		{"upvote", VoteUpvote, true},
		{"downvote", VoteDownvote, true},
		{"empty", VoteType(""), false},
		{"unknown", VoteType("sideways"), false},
		{"case sensitive", VoteType("Upvote"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidVoteType(tt.vote))
		})
	}
}

func TestValidateKnowledgeEntry(t *testing.T) {
	verifier := int64(7)

	tests := []struct {
		name    string
		mutate  func(e *KnowledgeEntry)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid entry",
			mutate: func(e *KnowledgeEntry) {},
		},
		{
			name:    "missing Title",
			mutate:  func(e *KnowledgeEntry) { e.Title = "" },
			wantErr: true,
			errMsg:  "Title",
		},
		{
			name:    "missing Content",
			mutate:  func(e *KnowledgeEntry) { e.Content = "" },
			wantErr: true,
			errMsg:  "Content",
		},
		{
			name:    "missing Category",
			mutate:  func(e *KnowledgeEntry) { e.Category = "" },
			wantErr: true,
			errMsg:  "Category",
		},
		{
			name:    "success rate below range",
			mutate:  func(e *KnowledgeEntry) { e.SuccessRate = -0.1 },
			wantErr: true,
			errMsg:  "SuccessRate",
		},
		{
			name:    "success rate above range",
			mutate:  func(e *KnowledgeEntry) { e.SuccessRate = 1.1 },
			wantErr: true,
			errMsg:  "SuccessRate",
		},
		{
			name:    "negative usage count",
			mutate:  func(e *KnowledgeEntry) { e.UsageCount = -1 },
			wantErr: true,
			errMsg:  "UsageCount",
		},
		{
			name:    "negative downvotes",
			mutate:  func(e *KnowledgeEntry) { e.Downvotes = -1 },
			wantErr: true,
			errMsg:  "vote counts",
		},
		{
			name:    "verified without verifier",
			mutate:  func(e *KnowledgeEntry) { e.Verified = true },
			wantErr: true,
			errMsg:  "VerifiedBy",
		},
		{
			name:    "verifier without verified flag",
			mutate:  func(e *KnowledgeEntry) { e.VerifiedBy = &verifier },
			wantErr: true,
			errMsg:  "VerifiedBy",
		},
		{
			name: "verified with verifier",
			mutate: func(e *KnowledgeEntry) {
				e.Verified = true
				e.VerifiedBy = &verifier
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := validEntry()
			tt.mutate(entry)
			err := ValidateKnowledgeEntry(entry)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}

	t.Run("nil entry", func(t *testing.T) {
		require.Error(t, ValidateKnowledgeEntry(nil))
	})
}

func TestAgeDays(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		createdAt time.Time
		expected  int
	}{
		{"same moment", now, 0},
		{"under a day", now.Add(-23 * time.Hour), 0},
		{"exactly one day", now.Add(-24 * time.Hour), 1},
		{"ten and a half days", now.Add(-252 * time.Hour), 10},
		{"zero time", time.Time{}, 0},
		{"future timestamp", now.Add(48 * time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &KnowledgeEntry{CreatedAt: tt.createdAt}
			assert.Equal(t, tt.expected, e.AgeDays(now))
		})
	}
}

func TestNetVotes(t *testing.T) {
	tests := []struct {
		name      string
		upvotes   int64
		downvotes int64
		expected  int64
	}{
		{"no votes", 0, 0, 0},
		{"positive", 10, 3, 7},
		{"negative", 2, 5, -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &KnowledgeEntry{Upvotes: tt.upvotes, Downvotes: tt.downvotes}
			assert.Equal(t, tt.expected, e.NetVotes())
		})
	}
}
