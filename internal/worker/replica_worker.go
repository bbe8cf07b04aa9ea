// Package worker mirrors the primary record store into a read replica,
// driven by the change feed. Messages carry no payload; every change
// triggers a full snapshot copy of the named collection, so replays and
// duplicate deliveries converge on the same state (last write wins).
package worker

import (
	"context"
	"errors"
	"fmt"

	"obras/internal/log"
	"obras/internal/notify"
	"obras/internal/store"
)

// ReplicaWorker copies collection snapshots from the primary store to the
// replica store whenever a change message arrives.
type ReplicaWorker struct {
	primary store.Store
	replica store.Store
	logger  *log.Logger
}

// NewReplicaWorker creates a worker mirroring primary into replica.
func NewReplicaWorker(primary, replica store.Store, logger *log.Logger) *ReplicaWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentWorker)
	}
	return &ReplicaWorker{
		primary: primary,
		replica: replica,
		logger:  logger,
	}
}

// Run consumes change messages until the context is cancelled. There is no
// automatic reconnect: a lost broker connection ends the run and the
// caller decides whether to restart.
func (w *ReplicaWorker) Run(ctx context.Context, consumer notify.Consumer) error {
	w.logger.InfoContext(ctx, "Replica worker started")
	return consumer.ConsumeChanges(ctx, func(msg *notify.ChangeMessage) error {
		return w.HandleChange(ctx, msg)
	})
}

// HandleChange mirrors the collection named by the message. A returned
// error requeues the message.
func (w *ReplicaWorker) HandleChange(ctx context.Context, msg *notify.ChangeMessage) error {
	w.logger.DebugContext(ctx, "Mirroring change",
		log.FieldCollection, msg.Collection,
		log.FieldProjectID, msg.ProjectID)

	switch msg.Collection {
	case notify.CollectionExpenses:
		return w.mirrorExpenses(ctx, msg.ProjectID)
	case notify.CollectionBudget:
		return w.mirrorBudget(ctx, msg.ProjectID)
	case notify.CollectionProjects:
		return w.mirrorProjects(ctx)
	default:
		// Unknown collections are dropped, not requeued.
		w.logger.WarnContext(ctx, "Unknown collection in change message",
			log.FieldCollection, msg.Collection)
		return nil
	}
}

// mirrorExpenses replaces the replica's expense list for one project with
// the primary's current snapshot.
func (w *ReplicaWorker) mirrorExpenses(ctx context.Context, projectID string) error {
	expenses, err := w.primary.ListExpenses(ctx, projectID)
	if err != nil {
		return fmt.Errorf("read primary expenses: %w", err)
	}

	if err := w.replica.DeleteExpensesByProject(ctx, projectID); err != nil {
		return fmt.Errorf("clear replica expenses: %w", err)
	}
	for _, e := range expenses {
		// Upsert keeps the primary's ids.
		if err := w.replica.UpdateExpense(ctx, e); err != nil {
			return fmt.Errorf("write replica expense %d: %w", e.ID, err)
		}
	}

	w.logger.InfoContext(ctx, "Mirrored expenses",
		log.FieldProjectID, projectID,
		"count", len(expenses))
	return nil
}

func (w *ReplicaWorker) mirrorBudget(ctx context.Context, projectID string) error {
	budget, err := w.primary.GetBudget(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		if err := w.replica.DeleteBudget(ctx, projectID); err != nil {
			return fmt.Errorf("clear replica budget: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read primary budget: %w", err)
	}

	if _, err := w.replica.UpsertBudget(ctx, budget); err != nil {
		return fmt.Errorf("write replica budget: %w", err)
	}
	return nil
}

// mirrorProjects reconciles the replica's project list against the
// primary's. Projects gone from the primary are removed with their
// records.
func (w *ReplicaWorker) mirrorProjects(ctx context.Context) error {
	primary, err := w.primary.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("read primary projects: %w", err)
	}

	keep := make(map[string]bool, len(primary))
	for _, p := range primary {
		keep[p.ID] = true
		if _, err := w.replica.AddProject(ctx, p); err != nil {
			return fmt.Errorf("write replica project %s: %w", p.ID, err)
		}
	}

	mirrored, err := w.replica.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("read replica projects: %w", err)
	}
	for _, p := range mirrored {
		if keep[p.ID] {
			continue
		}
		if err := w.replica.DeleteExpensesByProject(ctx, p.ID); err != nil {
			return fmt.Errorf("clear stale replica expenses: %w", err)
		}
		if err := w.replica.DeleteBudget(ctx, p.ID); err != nil {
			return fmt.Errorf("clear stale replica budget: %w", err)
		}
		if err := w.replica.DeleteProject(ctx, p.ID); err != nil {
			return fmt.Errorf("remove stale replica project: %w", err)
		}
	}

	w.logger.InfoContext(ctx, "Mirrored projects", "count", len(primary))
	return nil
}
