// Package session is the write-side entry point for a higher-level session
// manager: it resolves a sequence of turns against the stored forest and
// persists only the turns the store doesn't already have.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/loomworks/loom/pkg/eventstream"
	"github.com/loomworks/loom/pkg/eventstream/nop"
	"github.com/loomworks/loom/pkg/resolver"
	"github.com/loomworks/loom/pkg/storage"
	"github.com/loomworks/loom/pkg/tree"
	"github.com/loomworks/loom/pkg/turn"
)

// Recorder resolves and appends conversation turns. All collaborators,
// including the clock, are injected; there is no process-wide state.
type Recorder struct {
	driver    storage.Driver
	resolver  *resolver.Resolver
	publisher eventstream.Publisher
	now       func() time.Time
	log       *slog.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithPublisher sets the event publisher. Defaults to a no-op publisher.
func WithPublisher(p eventstream.Publisher) Option {
	return func(r *Recorder) {
		r.publisher = p
	}
}

// WithClock sets the timestamp source for created nodes. Defaults to
// time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// WithLogger sets the structured logger. Defaults to slog's default logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Recorder) {
		r.log = log
	}
}

// NewRecorder creates a recorder over the given storage driver.
func NewRecorder(driver storage.Driver, opts ...Option) *Recorder {
	r := &Recorder{
		driver:    driver,
		resolver:  resolver.New(driver),
		publisher: nop.NewPublisher(),
		now:       time.Now,
		log:       slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolver exposes the read-only resolution surface.
func (r *Recorder) Resolver() *resolver.Resolver {
	return r.resolver
}

// RecordResult is the outcome of recording a sequence of turns.
type RecordResult struct {
	// NodeIDs are the node ids for every turn, matched and created alike,
	// in turn order.
	NodeIDs []string

	// CreatedIDs are the ids of nodes created by this call, in turn order.
	// Empty on an exact replay.
	CreatedIDs []string

	// Divergences carries the resolver's divergence flags for positions
	// where a stored response differed from the expected one. The stored
	// node was reused; no sibling was created.
	Divergences []resolver.Divergence
}

// Record resolves the turns against the conversation and persists the
// unmatched tail. Every unmatched turn must carry its realized response
// text. Replaying an identical sequence performs zero inserts and returns
// the same node ids.
//
// Matched positions whose stored response differs from the expected one are
// reused as-is and flagged; creating a divergent sibling instead is a caller
// policy built directly on tree.NewNode and Driver.Insert.
func (r *Recorder) Record(ctx context.Context, conversationID string, turns []turn.Turn) (*RecordResult, error) {
	res, err := r.resolver.ResolvePath(ctx, conversationID, turns)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	result := &RecordResult{
		NodeIDs:     res.NodeIDs,
		Divergences: res.Divergences,
	}

	// Reject an incomplete tail up front so a bad turn cannot leave a
	// partial chain behind.
	for i, t := range res.Unmatched {
		if t.Response == nil {
			return nil, fmt.Errorf("turn %d has no response text to record", len(res.NodeIDs)+i)
		}
	}

	// The unmatched tail chains off the last matched node, if any.
	var parent *tree.Node
	if n := len(res.NodeIDs); n > 0 {
		parent, err = r.driver.Get(ctx, res.NodeIDs[n-1])
		if err != nil {
			return nil, fmt.Errorf("loading last matched node: %w", err)
		}
	}

	for i, t := range res.Unmatched {
		node, err := tree.NewNode(conversationID, parent, t.Context, *t.Response, r.now())
		if err != nil {
			return nil, fmt.Errorf("building node for turn %d: %w", len(res.NodeIDs)+i, err)
		}

		if err := r.driver.Insert(ctx, node); err != nil {
			return nil, fmt.Errorf("inserting node for turn %d: %w", len(res.NodeIDs)+i, err)
		}

		if err := r.publisher.PublishNode(ctx, eventstream.NewNodePersistedEvent(node, r.now())); err != nil {
			// The node is durable; a failed event publish is reported but
			// does not unwind the insert.
			r.log.Warn("publishing node event failed",
				"conversation", conversationID,
				"node", node.ID,
				"error", err,
			)
		}

		result.NodeIDs = append(result.NodeIDs, node.ID)
		result.CreatedIDs = append(result.CreatedIDs, node.ID)
		parent = node
	}

	return result, nil
}

// RecordBranch creates a divergent sibling: a new node under the same parent
// as an existing node, sharing its prompt context but carrying a different
// realized response. This is the explicit branch-creation policy for callers
// that do not want first-match reuse.
func (r *Recorder) RecordBranch(ctx context.Context, existingID string, response string) (*tree.Node, error) {
	existing, err := r.driver.Get(ctx, existingID)
	if err != nil {
		return nil, fmt.Errorf("loading node %s: %w", existingID, err)
	}

	var parent *tree.Node
	if existing.ParentID != nil {
		parent, err = r.driver.Get(ctx, *existing.ParentID)
		if err != nil {
			return nil, fmt.Errorf("loading parent of %s: %w", existingID, err)
		}
	}

	node, err := tree.NewSibling(existing, parent, response, r.now())
	if err != nil {
		return nil, fmt.Errorf("building sibling node: %w", err)
	}

	if err := r.driver.Insert(ctx, node); err != nil {
		return nil, fmt.Errorf("inserting sibling node: %w", err)
	}

	if err := r.publisher.PublishNode(ctx, eventstream.NewNodePersistedEvent(node, r.now())); err != nil {
		r.log.Warn("publishing node event failed",
			"conversation", node.ConversationID,
			"node", node.ID,
			"error", err,
		)
	}

	return node, nil
}
