package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"obras/internal/core"
	"obras/internal/store"
)

// errUnknownCollection marks a change message naming a collection this
// version does not know. Such messages are acknowledged and dropped.
var errUnknownCollection = errors.New("unknown collection")

// Snapshot is the full current state of one changed collection. Change
// delivery is snapshot-based, never delta-based.
type Snapshot struct {
	Collection string
	ProjectID  string
	Expenses   []core.Expense
	Budget     *core.Budget
	Projects   []core.Project
}

// Consumer turns raw change messages into full-collection snapshots by
// reloading from a store.
type Consumer interface {
	ConsumeChanges(ctx context.Context, handler func(*ChangeMessage) error) error
}

// Subscription is a scoped handle on a change feed. Cancel releases it;
// the feed is also released on every error exit path of the consume loop.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops snapshot delivery and blocks until the feed is released.
func (s *Subscription) Cancel() {
	s.cancel()
	<-s.done
}

// Done is closed once the feed has been released.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Subscribe starts delivering full-collection snapshots for one project.
// Messages for other projects are acknowledged and skipped. onError
// receives snapshot reload failures; a failed reload requeues the message.
func Subscribe(ctx context.Context, consumer Consumer, st store.Store, projectID string,
	onChange func(Snapshot), onError func(error)) *Subscription {

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)

		err := consumer.ConsumeChanges(ctx, func(msg *ChangeMessage) error {
			if msg.ProjectID != projectID && msg.Collection != CollectionProjects {
				return nil
			}

			snap, err := loadSnapshot(ctx, st, msg)
			if err != nil {
				if errors.Is(err, errUnknownCollection) {
					// A message this version cannot interpret. Returning an
					// error would requeue it and redeliver it forever.
					slog.WarnContext(ctx, "Dropping change message for unknown collection",
						"collection", msg.Collection, "project_id", msg.ProjectID)
					return nil
				}
				if onError != nil {
					onError(err)
				}
				return err
			}

			onChange(snap)
			return nil
		})
		if err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "Change subscription ended", "error", err, "project_id", projectID)
			if onError != nil {
				onError(err)
			}
		}
	}()

	return sub
}

func loadSnapshot(ctx context.Context, st store.Store, msg *ChangeMessage) (Snapshot, error) {
	snap := Snapshot{Collection: msg.Collection, ProjectID: msg.ProjectID}

	switch msg.Collection {
	case CollectionExpenses:
		expenses, err := st.ListExpenses(ctx, msg.ProjectID)
		if err != nil {
			return Snapshot{}, fmt.Errorf("reload expenses: %w", err)
		}
		snap.Expenses = expenses

	case CollectionBudget:
		budget, err := st.GetBudget(ctx, msg.ProjectID)
		switch {
		case err == nil:
			snap.Budget = &budget
		case errors.Is(err, store.ErrNotFound):
			// Budget was removed; deliver a nil snapshot.
		default:
			return Snapshot{}, fmt.Errorf("reload budget: %w", err)
		}

	case CollectionProjects:
		projects, err := st.ListProjects(ctx)
		if err != nil {
			return Snapshot{}, fmt.Errorf("reload projects: %w", err)
		}
		snap.Projects = projects

	default:
		return Snapshot{}, fmt.Errorf("%w: %s", errUnknownCollection, msg.Collection)
	}

	return snap, nil
}
