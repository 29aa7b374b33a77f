package service

import (
	"context"
	"time"

	"github.com/aifai-labs/aifai/internal/collab"
	"github.com/aifai-labs/aifai/internal/domain"
	"github.com/aifai-labs/aifai/internal/graph"
	"github.com/aifai-labs/aifai/internal/jobs"
	"github.com/aifai-labs/aifai/internal/pagination"
	"github.com/aifai-labs/aifai/internal/quality"
	"github.com/aifai-labs/aifai/internal/search"
	"github.com/aifai-labs/aifai/internal/telemetry"
)

// ResourceTypeKnowledge is the lock/watch resource type for knowledge entries.
const ResourceTypeKnowledge = "knowledge"

// EntryFilter narrows the candidate set before ranking. Each field is an
// independent set reduction, so applying them in any order yields the same
// candidate set.
type EntryFilter struct {
	Category       string
	Tags           []string
	MinSuccessRate *float64
	VerifiedOnly   bool
}

// Matches reports whether an entry passes every filter condition. Tag
// filtering requires all requested tags to be present on the entry.
func (f EntryFilter) Matches(e *domain.KnowledgeEntry) bool {
	if e == nil {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.MinSuccessRate != nil && e.SuccessRate < *f.MinSuccessRate {
		return false
	}
	if f.VerifiedOnly && !e.Verified {
		return false
	}
	for _, want := range f.Tags {
		if !hasTag(e.Tags, want) {
			return false
		}
	}
	return true
}

func hasTag(tags []string, want string) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}

// FilterEntries applies a filter to a snapshot of entries, preserving order.
func FilterEntries(entries []*domain.KnowledgeEntry, f EntryFilter) []*domain.KnowledgeEntry {
	out := make([]*domain.KnowledgeEntry, 0, len(entries))
	for _, e := range entries {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// EntryRepositoryInterface defines the repository interface for knowledge
// entry persistence
type EntryRepositoryInterface interface {
	Create(ctx context.Context, e *domain.KnowledgeEntry) error
	GetByID(ctx context.Context, id int64) (*domain.KnowledgeEntry, error)
	ListAll(ctx context.Context) ([]*domain.KnowledgeEntry, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*EntryPageResult, error)
	IncrementUsage(ctx context.Context, id int64) (*domain.KnowledgeEntry, error)
	AddVote(ctx context.Context, id int64, vote domain.VoteType) (*domain.KnowledgeEntry, error)
	SetVerified(ctx context.Context, id, verifiedBy int64) (bool, error)
}

type EntryPageResult struct {
	Items      []*domain.KnowledgeEntry
	NextCursor string
	HasMore    bool
}

// EntryServiceConfig carries the ranking weights and auto-verification
// thresholds. One weight pair applies to both search strategies.
type EntryServiceConfig struct {
	SimilarityWeight float64
	QualityWeight    float64
	Thresholds       quality.Thresholds
}

// DefaultEntryServiceConfig returns the stock ranking configuration.
func DefaultEntryServiceConfig() EntryServiceConfig {
	return EntryServiceConfig{
		SimilarityWeight: 0.7,
		QualityWeight:    0.3,
		Thresholds:       quality.DefaultThresholds(),
	}
}

// EntryService handles business logic for knowledge entries: ranking,
// voting, verification, graph queries, and collaborative edit locks.
type EntryService struct {
	repo       EntryRepositoryInterface
	engine     search.Engine
	locks      *collab.Manager
	dispatcher *jobs.Dispatcher
	cfg        EntryServiceConfig
	now        func() time.Time
}

// NewEntryService creates a new EntryService instance
func NewEntryService(
	repo EntryRepositoryInterface,
	engine search.Engine,
	locks *collab.Manager,
	dispatcher *jobs.Dispatcher,
	cfg EntryServiceConfig,
) *EntryService {
	return &EntryService{
		repo:       repo,
		engine:     engine,
		locks:      locks,
		dispatcher: dispatcher,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateEntryInput represents the input for creating a knowledge entry
type CreateEntryInput struct {
	InstanceID  int64
	Title       string
	Description string
	Content     string
	CodeExample string
	Context     string
	Category    string
	Tags        []string
}

// Create persists a new knowledge entry and broadcasts a best-effort
// creation notification.
func (s *EntryService) Create(ctx context.Context, input CreateEntryInput) (*domain.KnowledgeEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "EntryService.Create", telemetry.SpanAttributes{
		InstanceID: input.InstanceID,
		Operation:  "create",
	})
	defer span.End()

	now := s.now()
	entry := &domain.KnowledgeEntry{
		InstanceID:  input.InstanceID,
		Title:       input.Title,
		Description: input.Description,
		Content:     input.Content,
		CodeExample: input.CodeExample,
		Context:     input.Context,
		Category:    input.Category,
		Tags:        input.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := domain.ValidateKnowledgeEntry(entry); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid knowledge entry", err)
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.notify(jobs.Notification{
		Event:        "knowledge_created",
		ResourceType: ResourceTypeKnowledge,
		ResourceID:   entry.ID,
		Broadcast:    true,
		Data: map[string]interface{}{
			"id":          entry.ID,
			"title":       entry.Title,
			"category":    entry.Category,
			"instance_id": entry.InstanceID,
		},
	})

	return entry, nil
}

// Get retrieves an entry by id. Reads count as usage signals: the usage
// counter is incremented atomically and auto-verification is re-evaluated as
// a side effect of every get.
func (s *EntryService) Get(ctx context.Context, id, callerID int64) (*domain.KnowledgeEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "EntryService.Get", telemetry.SpanAttributes{
		EntryID:    id,
		InstanceID: callerID,
		Operation:  "get",
	})
	defer span.End()

	entry, err := s.repo.IncrementUsage(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.maybeAutoVerify(ctx, entry, callerID)
}

// Vote records an upvote or downvote and re-evaluates auto-verification.
func (s *EntryService) Vote(ctx context.Context, id int64, vote domain.VoteType, callerID int64) (*domain.KnowledgeEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "EntryService.Vote", telemetry.SpanAttributes{
		EntryID:    id,
		InstanceID: callerID,
		Operation:  "vote",
	})
	defer span.End()

	if !domain.IsValidVoteType(vote) {
		return nil, domain.ErrInvalidVoteType
	}

	entry, err := s.repo.AddVote(ctx, id, vote)
	if err != nil {
		return nil, err
	}

	return s.maybeAutoVerify(ctx, entry, callerID)
}

// Verify marks an entry as verified by the caller. Verification is
// monotonic: verifying an already-verified entry is a no-op.
func (s *EntryService) Verify(ctx context.Context, id, callerID int64) (*domain.KnowledgeEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "EntryService.Verify", telemetry.SpanAttributes{
		EntryID:    id,
		InstanceID: callerID,
		Operation:  "verify",
	})
	defer span.End()

	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if entry.Verified {
		return entry, nil
	}

	won, err := s.repo.SetVerified(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	if !won {
		// Another caller verified concurrently; their id is the one on record.
		return s.repo.GetByID(ctx, id)
	}

	entry.Verified = true
	entry.VerifiedBy = &callerID
	return entry, nil
}

// RelatedEntry is one graph neighbor of a queried entry.
type RelatedEntry struct {
	Entry *domain.KnowledgeEntry
	Score float64
	Types []string
}

// Related returns up to limit entries related to the given entry, with the
// relationship score and type labels explaining each connection. The graph
// is rebuilt from a fresh snapshot on every call.
func (s *EntryService) Related(ctx context.Context, id int64, limit int) ([]RelatedEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "EntryService.Related", telemetry.SpanAttributes{
		EntryID:   id,
		Operation: "related",
	})
	defer span.End()

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}

	entries, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	g := graph.Build(entries)
	related := g.Related(id, limit)

	out := make([]RelatedEntry, len(related))
	for i, rel := range related {
		out[i] = RelatedEntry{Entry: rel.Entry, Score: rel.Score, Types: rel.Types}
	}
	return out, nil
}

// Path finds the chain of entries connecting start to end through the
// relationship graph. An empty result means no path exists; that is a valid
// outcome, not an error.
func (s *EntryService) Path(ctx context.Context, startID, endID int64) ([]*domain.KnowledgeEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "EntryService.Path", telemetry.SpanAttributes{
		EntryID:   startID,
		Operation: "path",
	})
	defer span.End()

	entries, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*domain.KnowledgeEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	g := graph.Build(entries)
	ids := g.Path(startID, endID)

	path := make([]*domain.KnowledgeEntry, 0, len(ids))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			path = append(path, e)
		}
	}
	return path, nil
}

// AcquireLock claims the collaborative edit lock on an entry and notifies
// its watchers. Notification delivery is best-effort and never affects the
// lock outcome.
func (s *EntryService) AcquireLock(ctx context.Context, entryID, editorID int64) (*collab.EditLock, error) {
	ctx, span := telemetry.StartSpan(ctx, "EntryService.AcquireLock", telemetry.SpanAttributes{
		EntryID:    entryID,
		InstanceID: editorID,
		Operation:  "lock",
	})
	defer span.End()

	if _, err := s.repo.GetByID(ctx, entryID); err != nil {
		return nil, err
	}

	lock, err := s.locks.Acquire(ResourceTypeKnowledge, entryID, editorID)
	if err != nil {
		return nil, err
	}

	if watchers := s.locks.Watchers(ResourceTypeKnowledge, entryID); len(watchers) > 0 {
		s.notify(jobs.Notification{
			Event:        "knowledge_locked",
			ResourceType: ResourceTypeKnowledge,
			ResourceID:   entryID,
			Recipients:   watchers,
			Data: map[string]interface{}{
				"entry_id":  entryID,
				"editor_id": editorID,
			},
		})
	}

	return lock, nil
}

// ReleaseLock gives up the edit lock on an entry.
func (s *EntryService) ReleaseLock(ctx context.Context, entryID, editorID int64) error {
	_, span := telemetry.StartSpan(ctx, "EntryService.ReleaseLock", telemetry.SpanAttributes{
		EntryID:    entryID,
		InstanceID: editorID,
		Operation:  "unlock",
	})
	defer span.End()

	return s.locks.Release(ResourceTypeKnowledge, entryID, editorID)
}

// Watch subscribes an instance to change notifications for an entry.
func (s *EntryService) Watch(ctx context.Context, entryID, instanceID int64) error {
	ctx, span := telemetry.StartSpan(ctx, "EntryService.Watch", telemetry.SpanAttributes{
		EntryID:    entryID,
		InstanceID: instanceID,
		Operation:  "watch",
	})
	defer span.End()

	if _, err := s.repo.GetByID(ctx, entryID); err != nil {
		return err
	}

	s.locks.Watch(instanceID, ResourceTypeKnowledge, entryID)
	return nil
}

type ListEntriesInput struct {
	Cursor string
	Limit  int
}

type ListEntriesOutput struct {
	Items   []*domain.KnowledgeEntry
	Cursor  string
	HasMore bool
}

// List returns entries in reverse-chronological order with cursor pagination.
func (s *EntryService) List(ctx context.Context, input ListEntriesInput) (*ListEntriesOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "EntryService.List", telemetry.SpanAttributes{
		Operation: "list",
	})
	defer span.End()

	cursor, _ := pagination.DecodeCursor(input.Cursor)
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.repo.ListWithCursor(ctx, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListEntriesOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// maybeAutoVerify promotes an entry to verified when its engagement signals
// clear the configured thresholds. The transition happens at most once; the
// verifier is the caller whose read or vote tipped the entry over.
func (s *EntryService) maybeAutoVerify(ctx context.Context, entry *domain.KnowledgeEntry, callerID int64) (*domain.KnowledgeEntry, error) {
	sig := s.signals(entry)
	score := quality.Score(sig)

	if !quality.ShouldAutoVerify(sig, score, s.cfg.Thresholds) {
		return entry, nil
	}

	won, err := s.repo.SetVerified(ctx, entry.ID, callerID)
	if err != nil {
		return nil, err
	}
	if !won {
		// Another caller verified concurrently; their id is the one on record.
		return s.repo.GetByID(ctx, entry.ID)
	}

	entry.Verified = true
	entry.VerifiedBy = &callerID
	return entry, nil
}

func (s *EntryService) signals(entry *domain.KnowledgeEntry) quality.Signals {
	return quality.Signals{
		SuccessRate: entry.SuccessRate,
		UsageCount:  entry.UsageCount,
		Upvotes:     entry.Upvotes,
		Downvotes:   entry.Downvotes,
		Verified:    entry.Verified,
		AgeDays:     entry.AgeDays(s.now()),
	}
}

func (s *EntryService) notify(n jobs.Notification) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Enqueue(n)
}
