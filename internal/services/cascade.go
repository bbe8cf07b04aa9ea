package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"obras/internal/store"
)

// CascadeDeleteProject removes a project and everything recorded under it.
// Children go first, concurrently; the project record is deleted only when
// every child delete succeeded, so a partial failure leaves the project
// intact and retryable.
func CascadeDeleteProject(ctx context.Context, st store.Store, projectID string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return st.DeleteExpensesByProject(gctx, projectID)
	})
	g.Go(func() error {
		return st.DeleteBudget(gctx, projectID)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	return st.DeleteProject(ctx, projectID)
}
