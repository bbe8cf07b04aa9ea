// Package storage implements the store ports on SQLite using the pure-Go
// modernc driver. Schema bootstrap runs through embedded golang-migrate
// migrations on open.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"obras/internal/core"
	"obras/internal/store"
)

type SQLiteStore struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) *SQLiteStore {
	return &SQLiteStore{path: dbPath}
}

// Open prepares the database handle. It is idempotent: a second call on an
// already-open store returns immediately. Open failures carry
// store.ErrUnavailable.
func (s *SQLiteStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create db directory: %w: %w", store.ErrUnavailable, err)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open sqlite database: %w: %w", store.ErrUnavailable, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w: %w", store.ErrUnavailable, err)
	}

	if err := RunMigrations(s.path); err != nil {
		db.Close()
		return fmt.Errorf("run migrations: %w: %w", store.ErrUnavailable, err)
	}

	s.db = db
	slog.InfoContext(ctx, "SQLite store opened", "path", s.path)
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *SQLiteStore) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, store.ErrUnavailable
	}
	return s.db, nil
}

func (s *SQLiteStore) AddExpense(ctx context.Context, e core.Expense) (int64, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO expenses (project_id, expense_date, category, description, amount_cents, payment_method)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ProjectID, e.Date.ISO(), string(e.Category), e.Description, e.Amount.Cents, string(e.Payment))
	if err != nil {
		return 0, store.WriteError("insert expense", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, store.WriteError("expense id", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"project_id", e.ProjectID,
		"category", e.Category,
		"amount_cents", e.Amount.Cents)

	return id, nil
}

func (s *SQLiteStore) UpdateExpense(ctx context.Context, e core.Expense) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	// Full-record upsert keyed by id.
	_, err = db.ExecContext(ctx,
		`INSERT INTO expenses (id, project_id, expense_date, category, description, amount_cents, payment_method)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   project_id = excluded.project_id,
		   expense_date = excluded.expense_date,
		   category = excluded.category,
		   description = excluded.description,
		   amount_cents = excluded.amount_cents,
		   payment_method = excluded.payment_method`,
		e.ID, e.ProjectID, e.Date.ISO(), string(e.Category), e.Description, e.Amount.Cents, string(e.Payment))
	if err != nil {
		return store.WriteError("upsert expense", err)
	}

	return nil
}

func (s *SQLiteStore) ListExpenses(ctx context.Context, projectID string) ([]core.Expense, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, project_id, expense_date, category, description, amount_cents, payment_method
		 FROM expenses WHERE project_id = ? ORDER BY id`,
		projectID)
	if err != nil {
		return nil, store.ReadError("list expenses", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e       core.Expense
			date    string
			cat     string
			payment string
		)
		if err := rows.Scan(&e.ID, &e.ProjectID, &date, &cat, &e.Description, &e.Amount.Cents, &payment); err != nil {
			return nil, store.ReadError("scan expense", err)
		}
		if e.Date, err = core.ParseDate(date); err != nil {
			return nil, store.ReadError("parse expense date", err)
		}
		e.Category = core.Category(cat)
		e.Payment = core.PaymentMethod(payment)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, store.ReadError("iterate expenses", err)
	}

	return out, nil
}

func (s *SQLiteStore) DeleteExpense(ctx context.Context, projectID string, id int64) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	// Deleting an absent id affects zero rows and is not an error.
	if _, err := db.ExecContext(ctx,
		`DELETE FROM expenses WHERE project_id = ? AND id = ?`, projectID, id); err != nil {
		return store.WriteError("delete expense", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteExpensesByProject(ctx context.Context, projectID string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		`DELETE FROM expenses WHERE project_id = ?`, projectID); err != nil {
		return store.WriteError("delete project expenses", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertBudget(ctx context.Context, b core.Budget) (int64, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}

	end := ""
	if !b.EndDate.IsZero() {
		end = b.EndDate.ISO()
	}

	// UNIQUE(project_id) keeps at most one budget per project; a second
	// save replaces the stored record.
	_, err = db.ExecContext(ctx,
		`INSERT INTO budgets (project_id, amount_cents, start_date, end_date)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(project_id) DO UPDATE SET
		   amount_cents = excluded.amount_cents,
		   start_date = excluded.start_date,
		   end_date = excluded.end_date`,
		b.ProjectID, b.Amount.Cents, b.StartDate.ISO(), end)
	if err != nil {
		return 0, store.WriteError("upsert budget", err)
	}

	var id int64
	if err := db.QueryRowContext(ctx,
		`SELECT id FROM budgets WHERE project_id = ?`, b.ProjectID).Scan(&id); err != nil {
		return 0, store.ReadError("budget id", err)
	}

	slog.InfoContext(ctx, "Budget saved",
		"id", id,
		"project_id", b.ProjectID,
		"amount_cents", b.Amount.Cents)

	return id, nil
}

func (s *SQLiteStore) GetBudget(ctx context.Context, projectID string) (core.Budget, error) {
	db, err := s.handle()
	if err != nil {
		return core.Budget{}, err
	}

	var (
		b     core.Budget
		start string
		end   string
	)
	err = db.QueryRowContext(ctx,
		`SELECT id, project_id, amount_cents, start_date, end_date
		 FROM budgets WHERE project_id = ?`, projectID).
		Scan(&b.ID, &b.ProjectID, &b.Amount.Cents, &start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, store.ErrNotFound
	}
	if err != nil {
		return core.Budget{}, store.ReadError("get budget", err)
	}

	if b.StartDate, err = core.ParseDate(start); err != nil {
		return core.Budget{}, store.ReadError("parse budget start date", err)
	}
	if end != "" {
		if b.EndDate, err = core.ParseDate(end); err != nil {
			return core.Budget{}, store.ReadError("parse budget end date", err)
		}
	}

	return b, nil
}

func (s *SQLiteStore) DeleteBudget(ctx context.Context, projectID string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		`DELETE FROM budgets WHERE project_id = ?`, projectID); err != nil {
		return store.WriteError("delete budget", err)
	}
	return nil
}

func (s *SQLiteStore) AddProject(ctx context.Context, p core.Project) (string, error) {
	db, err := s.handle()
	if err != nil {
		return "", err
	}

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO projects (id, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, created_at = excluded.created_at`,
		id, p.Name, createdAt.Format(time.RFC3339)); err != nil {
		return "", store.WriteError("insert project", err)
	}

	slog.InfoContext(ctx, "Project created", "id", id, "name", p.Name)
	return id, nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (core.Project, error) {
	db, err := s.handle()
	if err != nil {
		return core.Project{}, err
	}

	var (
		p       core.Project
		created string
	)
	err = db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Project{}, store.ErrNotFound
	}
	if err != nil {
		return core.Project{}, store.ReadError("get project", err)
	}

	if p.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return core.Project{}, store.ReadError("parse project timestamp", err)
	}

	return p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]core.Project, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, name, created_at FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, store.ReadError("list projects", err)
	}
	defer rows.Close()

	var out []core.Project
	for rows.Next() {
		var (
			p       core.Project
			created string
		)
		if err := rows.Scan(&p.ID, &p.Name, &created); err != nil {
			return nil, store.ReadError("scan project", err)
		}
		if p.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, store.ReadError("parse project timestamp", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, store.ReadError("iterate projects", err)
	}

	return out, nil
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		`DELETE FROM projects WHERE id = ?`, id); err != nil {
		return store.WriteError("delete project", err)
	}
	return nil
}
