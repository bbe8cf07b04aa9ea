// Package store defines the persistence ports for the expense tracker
// collections (projects, expenses, budgets) and the shared error taxonomy.
// Implementations live in internal/storage (SQLite) and store/memory.
package store

import (
	"context"

	"obras/internal/core"
)

type (
	// ExpenseStore persists the expenses collection of a project.
	ExpenseStore interface {
		// AddExpense inserts a new record and returns the store-assigned id.
		AddExpense(ctx context.Context, e core.Expense) (int64, error)
		// UpdateExpense is a full-record upsert keyed by the expense id:
		// it inserts when the id is absent and replaces when present.
		UpdateExpense(ctx context.Context, e core.Expense) error
		// ListExpenses returns an unordered snapshot of the project's expenses.
		ListExpenses(ctx context.Context, projectID string) ([]core.Expense, error)
		// DeleteExpense removes one record. Deleting an absent id is a no-op.
		DeleteExpense(ctx context.Context, projectID string, id int64) error
		// DeleteExpensesByProject removes every expense of a project.
		DeleteExpensesByProject(ctx context.Context, projectID string) error
	}

	// BudgetStore persists the budget collection. At most one budget is
	// active per project; UpsertBudget replaces any prior record.
	BudgetStore interface {
		UpsertBudget(ctx context.Context, b core.Budget) (int64, error)
		// GetBudget returns the project's budget, or ErrNotFound when unset.
		GetBudget(ctx context.Context, projectID string) (core.Budget, error)
		// DeleteBudget removes the project's budget; no-op when unset.
		DeleteBudget(ctx context.Context, projectID string) error
	}

	// ProjectStore persists the projects collection.
	ProjectStore interface {
		// AddProject stores a project and returns its id. An empty p.ID
		// gets a generated id; a caller-provided id makes this an upsert,
		// which replica mirroring relies on.
		AddProject(ctx context.Context, p core.Project) (string, error)
		GetProject(ctx context.Context, id string) (core.Project, error)
		ListProjects(ctx context.Context) ([]core.Project, error)
		// DeleteProject removes the project record only. Child records are
		// the caller's responsibility (cascade order lives in the controller).
		DeleteProject(ctx context.Context, id string) error
	}

	// Store aggregates every collection behind one handle. Each call is its
	// own transaction; callers must not assume a consistent snapshot across
	// multiple calls.
	Store interface {
		ExpenseStore
		BudgetStore
		ProjectStore
		Close() error
	}
)
