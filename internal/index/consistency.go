package index

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/docfuse/internal/chunk"
	fuseerr "github.com/Aman-CERP/docfuse/internal/errors"
)

// State is the trust level of the persisted vector store.
type State int

const (
	// Stale means vectors must be regenerated before semantic search is trusted.
	Stale State = iota
	// Consistent means every chunk has exactly one current vector.
	Consistent
)

// String returns "stale" or "consistent".
func (s State) String() string {
	if s == Consistent {
		return "consistent"
	}
	return "stale"
}

// InconsistencyType categorizes a detected divergence.
type InconsistencyType int

const (
	// InconsistencyCountMismatch: row count differs from chunk count.
	InconsistencyCountMismatch InconsistencyType = iota
	// InconsistencyMissingVector: a chunk id has no vector row.
	InconsistencyMissingVector
	// InconsistencyChangedContent: the row was computed for different text
	// under the same chunk id.
	InconsistencyChangedContent
)

func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyCountMismatch:
		return "count_mismatch"
	case InconsistencyMissingVector:
		return "missing_vector"
	case InconsistencyChangedContent:
		return "changed_content"
	default:
		return "unknown"
	}
}

// Inconsistency is one detected issue.
type Inconsistency struct {
	Type    InconsistencyType
	ChunkID chunk.ID
	Details string
}

// maxReportedIssues caps per-chunk issues kept in a CheckResult.
const maxReportedIssues = 20

// CheckResult is the outcome of comparing the chunk store to the vector store.
type CheckResult struct {
	State   State
	Chunks  int
	Vectors int
	// Issues lists up to maxReportedIssues problems; Missing and Changed
	// hold the full counts.
	Issues   []Inconsistency
	Missing  int
	Changed  int
	Duration time.Duration

	// Set by Validate when the result was Stale.
	RequestID   string
	Regenerated bool
}

// VectorCache is the persisted vector store as the manager sees it.
type VectorCache interface {
	// Len returns the number of stored rows.
	Len() int
	// Lookup returns the content hash recorded for id. An empty hash means
	// the store does not track content.
	Lookup(id chunk.ID) (hash string, ok bool)
	// Discard drops every stored vector.
	Discard(ctx context.Context) error
}

// RegenerationRequest asks the embedding collaborator for a full vector set.
type RegenerationRequest struct {
	ID          string
	Chunks      []chunk.Chunk
	Reason      string
	RequestedAt time.Time
}

// Regenerator produces a complete vector store for the request's chunks.
type Regenerator interface {
	Regenerate(ctx context.Context, req RegenerationRequest) error
}

// ConsistencyManager decides whether persisted vectors may back the vector
// index. A stale store is discarded whole and one regeneration request is
// issued per stale result; nothing is repaired row by row.
type ConsistencyManager struct {
	regen        Regenerator
	checkContent bool

	mu    sync.Mutex
	state State
	last  *CheckResult
}

// ManagerOption configures a ConsistencyManager.
type ManagerOption func(*ConsistencyManager)

// WithContentCheck makes a recorded content hash that differs from the
// chunk's current hash count as stale. Enabled by default.
func WithContentCheck(enabled bool) ManagerOption {
	return func(m *ConsistencyManager) { m.checkContent = enabled }
}

// NewConsistencyManager creates a manager. It starts Stale: nothing is
// trusted before the first validation.
func NewConsistencyManager(regen Regenerator, opts ...ManagerOption) *ConsistencyManager {
	m := &ConsistencyManager{regen: regen, checkContent: true, state: Stale}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check compares chunks against the vector store without side effects.
func (m *ConsistencyManager) Check(chunks []chunk.Chunk, vectors VectorCache) *CheckResult {
	start := time.Now()
	res := &CheckResult{Chunks: len(chunks), Vectors: vectors.Len()}

	if res.Vectors != res.Chunks {
		res.Issues = append(res.Issues, Inconsistency{
			Type:    InconsistencyCountMismatch,
			Details: "vector rows do not match chunk count",
		})
	}

	for _, c := range chunks {
		hash, ok := vectors.Lookup(c.ID)
		switch {
		case !ok:
			res.Missing++
			res.addIssue(InconsistencyMissingVector, c.ID, "no vector for chunk")
		case m.checkContent && hash != "" && hash != c.Hash():
			res.Changed++
			res.addIssue(InconsistencyChangedContent, c.ID, "vector computed for different text")
		}
	}

	if len(res.Issues) == 0 {
		res.State = Consistent
	}
	res.Duration = time.Since(start)
	return res
}

func (r *CheckResult) addIssue(t InconsistencyType, id chunk.ID, details string) {
	if len(r.Issues) < maxReportedIssues {
		r.Issues = append(r.Issues, Inconsistency{Type: t, ChunkID: id, Details: details})
	}
}

// Validate checks the stores. On Stale it discards the vector store and
// sends one regeneration request carrying all chunks. The returned result
// still reports Stale in that case: the caller confirms with Confirm once
// the regenerated vectors are in place.
//
// A failed discard or regeneration is returned as an error; it is not
// retried.
func (m *ConsistencyManager) Validate(ctx context.Context, chunks []chunk.Chunk, vectors VectorCache) (*CheckResult, error) {
	res := m.Check(chunks, vectors)

	m.mu.Lock()
	m.state = res.State
	m.last = res
	m.mu.Unlock()

	if res.State == Consistent {
		slog.Debug("vector store consistent",
			slog.Int("chunks", res.Chunks),
			slog.Duration("duration", res.Duration))
		return res, nil
	}

	reason := res.Issues[0].Type.String()
	slog.Warn("vector store stale",
		slog.Int("chunks", res.Chunks),
		slog.Int("vectors", res.Vectors),
		slog.Int("missing", res.Missing),
		slog.Int("changed", res.Changed),
		slog.String("reason", reason))

	if err := vectors.Discard(ctx); err != nil {
		return res, fuseerr.New(fuseerr.ErrCodeIndexFailed, "discard stale vector store", err)
	}

	if m.regen == nil {
		return res, nil
	}

	req := RegenerationRequest{
		ID:          uuid.NewString(),
		Chunks:      chunks,
		Reason:      reason,
		RequestedAt: time.Now(),
	}
	res.RequestID = req.ID

	slog.Info("requesting vector regeneration",
		slog.String("request_id", req.ID),
		slog.Int("chunks", len(chunks)))

	if err := m.regen.Regenerate(ctx, req); err != nil {
		return res, fuseerr.New(fuseerr.ErrCodeRegenerationFailed, "vector regeneration failed", err).
			WithDetail("request_id", req.ID).
			WithSuggestion("check the embedding backend, then run `docfuse validate`")
	}
	res.Regenerated = true
	return res, nil
}

// Confirm checks the stores and records the result as the manager state.
// Unlike Validate it never discards or requests regeneration, so a
// regeneration that produced a bad store is reported rather than retried.
func (m *ConsistencyManager) Confirm(chunks []chunk.Chunk, vectors VectorCache) *CheckResult {
	res := m.Check(chunks, vectors)

	m.mu.Lock()
	m.state = res.State
	m.last = res
	m.mu.Unlock()

	if res.State != Consistent {
		slog.Warn("vector store still stale after regeneration",
			slog.Int("chunks", res.Chunks),
			slog.Int("vectors", res.Vectors),
			slog.Int("missing", res.Missing),
			slog.Int("changed", res.Changed))
	}
	return res
}

// State returns the state recorded by the most recent Validate or Confirm.
func (m *ConsistencyManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Last returns the most recent recorded result, or nil.
func (m *ConsistencyManager) Last() *CheckResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
