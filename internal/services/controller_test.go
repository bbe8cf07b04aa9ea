package services

import (
	"context"
	"errors"
	"testing"

	"obras/internal/core"
	"obras/internal/store"
	"obras/internal/store/memory"
)

// countingStore delegates to the in-memory store while counting calls and
// injecting failures per operation.
type countingStore struct {
	*memory.Store

	addExpenseCalls    int
	deleteExpenseCalls int
	deleteProjectCalls int
	upsertBudgetCalls  int

	failDeleteBudget  error
	failDeleteProject error
}

func newCountingStore() *countingStore {
	return &countingStore{Store: memory.New()}
}

func (s *countingStore) AddExpense(ctx context.Context, e core.Expense) (int64, error) {
	s.addExpenseCalls++
	return s.Store.AddExpense(ctx, e)
}

func (s *countingStore) DeleteExpense(ctx context.Context, projectID string, id int64) error {
	s.deleteExpenseCalls++
	return s.Store.DeleteExpense(ctx, projectID, id)
}

func (s *countingStore) UpsertBudget(ctx context.Context, b core.Budget) (int64, error) {
	s.upsertBudgetCalls++
	return s.Store.UpsertBudget(ctx, b)
}

func (s *countingStore) DeleteBudget(ctx context.Context, projectID string) error {
	if s.failDeleteBudget != nil {
		return s.failDeleteBudget
	}
	return s.Store.DeleteBudget(ctx, projectID)
}

func (s *countingStore) DeleteProject(ctx context.Context, id string) error {
	s.deleteProjectCalls++
	if s.failDeleteProject != nil {
		return s.failDeleteProject
	}
	return s.Store.DeleteProject(ctx, id)
}

type fakeNotifier struct {
	errorCount int
	lastTitle  string
}

func (n *fakeNotifier) Info(title, message string)  {}
func (n *fakeNotifier) Error(title, message string) { n.errorCount++; n.lastTitle = title }

type fakeConfirmer struct {
	answer bool
	asked  int
}

func (c *fakeConfirmer) Confirm(_ context.Context, _ string) bool {
	c.asked++
	return c.answer
}

type fakePublisher struct {
	published []string
}

func (p *fakePublisher) PublishChange(_ context.Context, collection, projectID string) error {
	p.published = append(p.published, collection)
	return nil
}

func mustDate(t *testing.T, iso string) core.Date {
	t.Helper()
	d, err := core.ParseDate(iso)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", iso, err)
	}
	return d
}

func openedController(t *testing.T, st store.Store, publisher ChangePublisher, notifier Notifier, confirmer Confirmer) (*Controller, string) {
	t.Helper()
	ctx := context.Background()

	c := NewController(st, publisher, notifier, confirmer)
	if err := c.SignIn(ctx, "mario"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	id, err := c.CreateProject(ctx, "Casa Verde")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if err := c.OpenProject(ctx, id); err != nil {
		t.Fatalf("OpenProject: %v", err)
	}
	return c, id
}

func TestControllerStateMachine(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	c := NewController(st, nil, &fakeNotifier{}, &fakeConfirmer{answer: true})

	if got := c.State(); got != StateUnauthenticated {
		t.Fatalf("initial state = %q, want %q", got, StateUnauthenticated)
	}

	if _, err := c.CreateProject(ctx, "Casa Verde"); err == nil {
		t.Fatal("CreateProject before sign-in should fail")
	}

	if err := c.SignIn(ctx, "mario"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if got := c.State(); got != StateProjectList {
		t.Fatalf("state after sign-in = %q, want %q", got, StateProjectList)
	}

	id, err := c.CreateProject(ctx, "Casa Verde")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if err := c.OpenProject(ctx, id); err != nil {
		t.Fatalf("OpenProject: %v", err)
	}
	if got := c.State(); got != StateDashboard {
		t.Fatalf("state after open = %q, want %q", got, StateDashboard)
	}

	c.SignOut()
	if got := c.State(); got != StateUnauthenticated {
		t.Fatalf("state after sign-out = %q, want %q", got, StateUnauthenticated)
	}
	if got := c.Expenses(); got != nil {
		t.Fatalf("expense mirror after sign-out = %v, want nil", got)
	}
}

func TestSignInRejectsEmptyUser(t *testing.T) {
	c := NewController(newCountingStore(), nil, &fakeNotifier{}, &fakeConfirmer{})
	err := c.SignIn(context.Background(), "  ")
	if !IsValidationError(err) {
		t.Fatalf("SignIn(blank) error = %v, want ValidationError", err)
	}
}

type rejectingAuth struct{}

func (rejectingAuth) Authenticate(context.Context, string) (string, error) {
	return "", errors.New("unknown user")
}

func TestSignInRejectedByAuthenticator(t *testing.T) {
	c := NewController(newCountingStore(), nil, &fakeNotifier{}, &fakeConfirmer{})
	c.SetAuthenticator(rejectingAuth{})

	if err := c.SignIn(context.Background(), "mario"); err == nil {
		t.Fatal("SignIn should fail when the authenticator rejects")
	}
	if got := c.State(); got != StateUnauthenticated {
		t.Fatalf("State() = %q, want %q", got, StateUnauthenticated)
	}
}

func TestOpenProjectUnknownStaysOnList(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	notifier := &fakeNotifier{}
	c := NewController(st, nil, notifier, &fakeConfirmer{})
	if err := c.SignIn(ctx, "mario"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	if err := c.OpenProject(ctx, "missing"); err == nil {
		t.Fatal("OpenProject(missing) should fail")
	}
	if got := c.State(); got != StateProjectList {
		t.Fatalf("state = %q, want %q", got, StateProjectList)
	}
	if notifier.errorCount == 0 {
		t.Fatal("failure was not surfaced to the user")
	}
}

func TestAddExpenseRejectedInputNeverReachesStore(t *testing.T) {
	st := newCountingStore()
	c, _ := openedController(t, st, nil, &fakeNotifier{}, &fakeConfirmer{answer: true})

	_, err := c.AddExpense(context.Background(), ExpenseInput{
		Date:    mustDate(t, "2026-03-10"),
		Detail:  core.MaterialDetail{Name: "cement", Unit: "bag", Quantity: 50},
		Amount:  core.Money{Cents: -500},
		Payment: core.PaymentCash,
	})
	if !IsValidationError(err) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if st.addExpenseCalls != 0 {
		t.Fatalf("AddExpense reached the store %d times, want 0", st.addExpenseCalls)
	}
}

func TestAddExpensePersistsAndPublishes(t *testing.T) {
	st := newCountingStore()
	publisher := &fakePublisher{}
	c, _ := openedController(t, st, publisher, &fakeNotifier{}, &fakeConfirmer{answer: true})

	id, err := c.AddExpense(context.Background(), ExpenseInput{
		Date:    mustDate(t, "2026-03-10"),
		Detail:  core.MaterialDetail{Name: "cement", Unit: "bag", Quantity: 50},
		Amount:  core.Money{Cents: 1200050},
		Payment: core.PaymentCash,
	})
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if id == 0 {
		t.Fatal("AddExpense returned zero id")
	}

	expenses := c.Expenses()
	if len(expenses) != 1 {
		t.Fatalf("mirror has %d expenses, want 1", len(expenses))
	}
	if expenses[0].Description != "cement, 50 x bag" {
		t.Fatalf("description = %q", expenses[0].Description)
	}
	if expenses[0].Category != core.CategoryMaterial {
		t.Fatalf("category = %q, want %q", expenses[0].Category, core.CategoryMaterial)
	}

	found := false
	for _, col := range publisher.published {
		if col == "expenses" {
			found = true
		}
	}
	if !found {
		t.Fatalf("published collections = %v, want an expenses change", publisher.published)
	}
}

func TestEditExpenseReplacesRecord(t *testing.T) {
	st := newCountingStore()
	c, _ := openedController(t, st, nil, &fakeNotifier{}, &fakeConfirmer{answer: true})
	ctx := context.Background()

	id, err := c.AddExpense(ctx, ExpenseInput{
		Date:    mustDate(t, "2026-03-10"),
		Detail:  core.MaterialDetail{Name: "cement", Unit: "bag", Quantity: 50},
		Amount:  core.Money{Cents: 1200050},
		Payment: core.PaymentCash,
	})
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}

	err = c.EditExpense(ctx, id, ExpenseInput{
		Date:    mustDate(t, "2026-03-11"),
		Detail:  core.LaborDetail{Role: "mason", Days: 5},
		Amount:  core.Money{Cents: 300000},
		Payment: core.PaymentCard,
	})
	if err != nil {
		t.Fatalf("EditExpense: %v", err)
	}

	expenses := c.Expenses()
	if len(expenses) != 1 {
		t.Fatalf("mirror has %d expenses, want 1", len(expenses))
	}
	got := expenses[0]
	if got.Category != core.CategoryLabor || got.Amount.Cents != 300000 || got.Payment != core.PaymentCard {
		t.Fatalf("edited expense = %+v", got)
	}
}

func TestDeleteExpenseDeclinedLeavesStoreUntouched(t *testing.T) {
	st := newCountingStore()
	confirmer := &fakeConfirmer{answer: false}
	c, _ := openedController(t, st, nil, &fakeNotifier{}, confirmer)
	ctx := context.Background()

	id, err := c.AddExpense(ctx, ExpenseInput{
		Date:    mustDate(t, "2026-03-10"),
		Detail:  core.OtherDetail{Note: "permits"},
		Amount:  core.Money{Cents: 5000},
		Payment: core.PaymentCash,
	})
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}

	if err := c.DeleteExpense(ctx, id); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}
	if confirmer.asked != 1 {
		t.Fatalf("confirmer asked %d times, want 1", confirmer.asked)
	}
	if st.deleteExpenseCalls != 0 {
		t.Fatalf("DeleteExpense reached the store %d times, want 0", st.deleteExpenseCalls)
	}
	if len(c.Expenses()) != 1 {
		t.Fatal("declined delete removed the expense")
	}
}

func TestDeleteExpenseAbsentIDIsNoOp(t *testing.T) {
	st := newCountingStore()
	c, _ := openedController(t, st, nil, &fakeNotifier{}, &fakeConfirmer{answer: true})

	if err := c.DeleteExpense(context.Background(), 999); err != nil {
		t.Fatalf("DeleteExpense(absent): %v", err)
	}
}

func TestSetBudgetValidatesDateOrder(t *testing.T) {
	st := newCountingStore()
	c, _ := openedController(t, st, nil, &fakeNotifier{}, &fakeConfirmer{answer: true})

	err := c.SetBudget(context.Background(), BudgetInput{
		Amount:    core.Money{Cents: 5000000},
		StartDate: mustDate(t, "2026-06-01"),
		EndDate:   mustDate(t, "2026-01-01"),
	})
	if !IsValidationError(err) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if st.upsertBudgetCalls != 0 {
		t.Fatalf("UpsertBudget reached the store %d times, want 0", st.upsertBudgetCalls)
	}
}

func TestSetBudgetUpsertsAndUpdatesSummary(t *testing.T) {
	st := newCountingStore()
	c, _ := openedController(t, st, nil, &fakeNotifier{}, &fakeConfirmer{answer: true})
	ctx := context.Background()

	err := c.SetBudget(ctx, BudgetInput{
		Amount:    core.Money{Cents: 5000000},
		StartDate: mustDate(t, "2026-01-01"),
	})
	if err != nil {
		t.Fatalf("SetBudget: %v", err)
	}

	// Second save replaces, it does not accumulate.
	err = c.SetBudget(ctx, BudgetInput{
		Amount:    core.Money{Cents: 6000000},
		StartDate: mustDate(t, "2026-01-01"),
	})
	if err != nil {
		t.Fatalf("SetBudget(second): %v", err)
	}

	summary := c.Summary()
	if summary.Balance.Cents != 6000000 {
		t.Fatalf("balance = %d cents, want 6000000", summary.Balance.Cents)
	}
}

func TestDeleteProjectCascadesBeforeProjectRecord(t *testing.T) {
	st := newCountingStore()
	c, id := openedController(t, st, nil, &fakeNotifier{}, &fakeConfirmer{answer: true})
	ctx := context.Background()

	if _, err := c.AddExpense(ctx, ExpenseInput{
		Date:    mustDate(t, "2026-03-10"),
		Detail:  core.ServiceDetail{Provider: "ACME", Description: "plumbing"},
		Amount:  core.Money{Cents: 80000},
		Payment: core.PaymentBankTransfer,
	}); err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if err := c.SetBudget(ctx, BudgetInput{
		Amount:    core.Money{Cents: 5000000},
		StartDate: mustDate(t, "2026-01-01"),
	}); err != nil {
		t.Fatalf("SetBudget: %v", err)
	}

	if err := c.DeleteProject(ctx, id); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if got := c.State(); got != StateProjectList {
		t.Fatalf("state = %q, want %q", got, StateProjectList)
	}
	if got := c.Projects(); len(got) != 0 {
		t.Fatalf("project list has %d entries, want 0", len(got))
	}

	if _, err := st.Store.ListExpenses(ctx, id); err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	expenses, _ := st.Store.ListExpenses(ctx, id)
	if len(expenses) != 0 {
		t.Fatalf("cascade left %d expenses behind", len(expenses))
	}
	if _, err := st.Store.GetBudget(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("budget survived the cascade: %v", err)
	}
	if _, err := st.Store.GetProject(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("project record survived: %v", err)
	}
}

func TestDeleteProjectKeepsRecordOnChildFailure(t *testing.T) {
	st := newCountingStore()
	st.failDeleteBudget = errors.New("disk full")
	notifier := &fakeNotifier{}
	c, id := openedController(t, st, nil, notifier, &fakeConfirmer{answer: true})
	ctx := context.Background()

	if err := c.DeleteProject(ctx, id); err == nil {
		t.Fatal("DeleteProject should fail when a child delete fails")
	}
	if st.deleteProjectCalls != 0 {
		t.Fatalf("project record delete invoked %d times, want 0", st.deleteProjectCalls)
	}
	if _, err := st.Store.GetProject(ctx, id); err != nil {
		t.Fatalf("project record should survive: %v", err)
	}
	if notifier.errorCount == 0 {
		t.Fatal("failure was not surfaced to the user")
	}
}

func TestSnapshotCopiesState(t *testing.T) {
	st := newCountingStore()
	c, id := openedController(t, st, nil, &fakeNotifier{}, &fakeConfirmer{answer: true})
	ctx := context.Background()

	if _, err := c.AddExpense(ctx, ExpenseInput{
		Date:    mustDate(t, "2026-03-10"),
		Detail:  core.MaterialDetail{Name: "cement", Unit: "bag", Quantity: 50},
		Amount:  core.Money{Cents: 1200050},
		Payment: core.PaymentCash,
	}); err != nil {
		t.Fatalf("AddExpense: %v", err)
	}

	snap, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Project.ID != id {
		t.Fatalf("snapshot project = %q, want %q", snap.Project.ID, id)
	}
	if len(snap.Expenses) != 1 {
		t.Fatalf("snapshot has %d expenses, want 1", len(snap.Expenses))
	}
	if snap.Summary.TotalActual.Cents != 1200050 {
		t.Fatalf("snapshot total = %d", snap.Summary.TotalActual.Cents)
	}

	// Mutating the snapshot must not reach the controller's mirror.
	snap.Expenses[0].Description = "mutated"
	if c.Expenses()[0].Description == "mutated" {
		t.Fatal("snapshot aliases the controller mirror")
	}
}

func TestSnapshotWithoutProject(t *testing.T) {
	c := NewController(newCountingStore(), nil, &fakeNotifier{}, &fakeConfirmer{})
	if _, err := c.Snapshot(); err == nil {
		t.Fatal("Snapshot without an open project should fail")
	}
}
