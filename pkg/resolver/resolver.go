// Package resolver walks an ordered sequence of turns against the stored
// forest, reusing nodes whose full causal input already exists and reporting
// where the sequence diverges or runs past the stored tree.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/loomworks/loom/pkg/hash"
	"github.com/loomworks/loom/pkg/storage"
	"github.com/loomworks/loom/pkg/tree"
	"github.com/loomworks/loom/pkg/turn"
)

// Resolver matches turns against the stored forest.
type Resolver struct {
	driver storage.Driver
	log    *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the structured logger. Defaults to slog's default logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Resolver) {
		r.log = log
	}
}

// New creates a resolver over the given storage driver.
func New(driver storage.Driver, opts ...Option) *Resolver {
	r := &Resolver{
		driver: driver,
		log:    slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Divergence flags a position where a stored node was matched by prompt hash
// but its recorded response differs from the expected response text.
type Divergence struct {
	// Index is the turn's position in the resolved sequence.
	Index int

	// NodeID is the existing node that was matched and kept.
	NodeID string

	// ExpectedResponseHash digests the response the caller expected.
	ExpectedResponseHash string

	// FoundResponseHash digests the response actually stored.
	FoundResponseHash string
}

// Resolution is the outcome of resolving a sequence of turns.
type Resolution struct {
	// NodeIDs are the matched node ids, in turn order.
	NodeIDs []string

	// LastPathHash is the cumulative path hash of the last matched node,
	// nil when nothing matched.
	LastPathHash *string

	// Divergences lists positions where the stored response differed from
	// the expected one. The stored match was kept regardless; branching is
	// the caller's policy decision.
	Divergences []Divergence

	// Unmatched holds the turns past the first miss, in order. Creating
	// nodes for them is the caller's responsibility.
	Unmatched []turn.Turn
}

// FullyMatched reports whether every turn resolved to an existing node.
func (r *Resolution) FullyMatched() bool {
	return len(r.Unmatched) == 0
}

// FindMatching returns the stored node for the exact (conversation, parent,
// prompt hash) triple. Among divergent siblings sharing the triple the
// earliest by creation time wins, with node id breaking exact timestamp ties.
// The tie-break is deliberate and pinned; callers wanting all alternatives
// should enumerate children directly.
func (r *Resolver) FindMatching(ctx context.Context, conversationID string, parentID *string, promptHash string) (*tree.Node, error) {
	return r.driver.FindMatch(ctx, conversationID, parentID, promptHash)
}

// ResolvePath walks the turns from the conversation's roots, matching each
// against the stored forest by prompt hash.
//
// A matched turn with no expected response is accepted as-is (continuation).
// A matched turn whose expected response hash equals the stored response
// hash is an exact replay. When the hashes differ the existing match is
// still kept (first-match wins) and the position is flagged in
// Resolution.Divergences. The walk stops at the first miss; the remaining
// turns are handed back in Resolution.Unmatched.
//
// Terminates in O(len(turns)) storage lookups.
func (r *Resolver) ResolvePath(ctx context.Context, conversationID string, turns []turn.Turn) (*Resolution, error) {
	res := &Resolution{}

	var parentID *string
	for i, t := range turns {
		promptHash, err := hash.Prompt(t.Context)
		if err != nil {
			return nil, fmt.Errorf("hashing turn %d: %w", i, err)
		}

		node, err := r.driver.FindMatch(ctx, conversationID, parentID, promptHash)
		if err != nil {
			var notFound storage.NotFoundError
			if errors.As(err, &notFound) {
				res.Unmatched = turns[i:]
				return res, nil
			}
			return nil, fmt.Errorf("matching turn %d: %w", i, err)
		}

		if t.Response != nil {
			expected := hash.Text(*t.Response)
			if expected != node.ResponseHash {
				res.Divergences = append(res.Divergences, Divergence{
					Index:                i,
					NodeID:               node.ID,
					ExpectedResponseHash: expected,
					FoundResponseHash:    node.ResponseHash,
				})
				r.log.Debug("response diverged from stored match",
					"conversation", conversationID,
					"turn", i,
					"node", node.ID,
				)
			}
		}

		res.NodeIDs = append(res.NodeIDs, node.ID)
		res.LastPathHash = &node.PathHash
		parentID = &node.ID
	}

	return res, nil
}

// HasPath reports whether a node with the given cumulative path hash exists,
// i.e. whether the entire prefix it represents is already stored.
func (r *Resolver) HasPath(ctx context.Context, pathHash string) (bool, error) {
	_, err := r.driver.FindByPathHash(ctx, pathHash)
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}
