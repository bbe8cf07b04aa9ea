// Package services holds the application controller: it owns the in-memory
// mirrors of the active project, runs the session state machine and turns
// store failures into user-visible messages.
package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"obras/internal/core"
	"obras/internal/notify"
	"obras/internal/store"
)

// Session states.
const (
	StateUnauthenticated State = "unauthenticated"
	StateProjectList     State = "project-list"
	StateDashboard       State = "project-dashboard"
)

type (
	State string

	// Authenticator resolves a raw user identifier into the identity the
	// session runs as. The actual flow lives outside this module; the
	// default accepts any non-blank identifier.
	Authenticator interface {
		Authenticate(ctx context.Context, userID string) (string, error)
	}

	// Notifier surfaces user-visible messages (the single-button
	// acknowledgement dialog of the UI).
	Notifier interface {
		Info(title, message string)
		Error(title, message string)
	}

	// Confirmer gates destructive actions (the two-button confirm/cancel
	// dialog). Confirm returns false when the user declines.
	Confirmer interface {
		Confirm(ctx context.Context, prompt string) bool
	}

	// ChangePublisher announces mutations to interested subscribers.
	// Publishing is best-effort; failures never fail the mutation.
	ChangePublisher interface {
		PublishChange(ctx context.Context, collection, projectID string) error
	}

	// SubscribeFunc starts snapshot delivery for one project. The
	// controller holds at most one active subscription and replaces it on
	// every project switch.
	SubscribeFunc func(ctx context.Context, projectID string,
		onChange func(notify.Snapshot), onError func(error)) *notify.Subscription

	// ExpenseInput is the validated payload of the expense form. The
	// stored description is derived from the category detail variant.
	ExpenseInput struct {
		Date    core.Date
		Detail  core.CategoryDetail
		Amount  core.Money
		Payment core.PaymentMethod
	}

	// BudgetInput is the validated payload of the budget form.
	BudgetInput struct {
		Amount    core.Money
		StartDate core.Date
		EndDate   core.Date
	}

	// ProjectSnapshot is the read-only view handed to report exporters.
	ProjectSnapshot struct {
		Project  core.Project
		Expenses []core.Expense
		Budget   *core.Budget
		Summary  core.Summary
	}
)

// ValidationError marks bad user input caught before any store call.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is a rejected-input error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Controller orchestrates the record store, the derived metric engines and
// the change feed. All mutations of one session flow through a single
// mutex, so a delete racing an add cannot lose updates.
type Controller struct {
	store     store.Store
	publisher ChangePublisher
	notifier  Notifier
	confirmer Confirmer
	auth      Authenticator
	subscribe SubscribeFunc

	mu       sync.Mutex
	state    State
	userID   string
	projects []core.Project

	active   *core.Project
	expenses []core.Expense
	budget   *core.Budget
	sub      *notify.Subscription
}

func NewController(st store.Store, publisher ChangePublisher, notifier Notifier, confirmer Confirmer) *Controller {
	return &Controller{
		store:     st,
		publisher: publisher,
		notifier:  notifier,
		confirmer: confirmer,
		auth:      passthroughAuth{},
		state:     StateUnauthenticated,
	}
}

// SetAuthenticator replaces the default pass-through identity check.
func (c *Controller) SetAuthenticator(auth Authenticator) {
	c.auth = auth
}

// passthroughAuth accepts any non-blank identifier as-is.
type passthroughAuth struct{}

func (passthroughAuth) Authenticate(_ context.Context, userID string) (string, error) {
	return userID, nil
}

// SetSubscribeFunc wires the reactive change feed. Optional: without it the
// controller refreshes its mirrors only after its own mutations.
func (c *Controller) SetSubscribeFunc(fn SubscribeFunc) {
	c.subscribe = fn
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SignIn reacts to a user-identifier transition: it loads the project list
// and moves the session to the project list screen.
func (c *Controller) SignIn(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return &ValidationError{Err: errors.New("empty user identifier")}
	}

	identity, err := c.auth.Authenticate(ctx, userID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	projects, err := c.store.ListProjects(ctx)
	if err != nil {
		c.surface(ctx, "Load failed", "Could not load your projects. Try again.", err)
		return err
	}

	c.userID = identity
	c.projects = projects
	c.state = StateProjectList
	return nil
}

// SignOut releases the active subscription and clears every mirror.
func (c *Controller) SignOut() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.userID = ""
	c.projects = nil
	c.clearActiveLocked()
	c.state = StateUnauthenticated
	c.mu.Unlock()

	// Cancel outside the lock: Cancel blocks until the feed goroutine,
	// whose callbacks take the lock, has exited.
	if sub != nil {
		sub.Cancel()
	}
}

// Projects returns a copy of the project list mirror.
func (c *Controller) Projects() []core.Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Project(nil), c.projects...)
}

// OpenProject loads the project's budget and expenses and enters the
// dashboard. On failure the session stays on the project list and the
// failure is surfaced to the user.
func (c *Controller) OpenProject(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.state == StateUnauthenticated {
		c.mu.Unlock()
		return errors.New("not signed in")
	}
	prev := c.sub
	c.sub = nil
	c.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	project, err := c.store.GetProject(ctx, id)
	if err != nil {
		c.surface(ctx, "Load failed", "Could not open the project. Try again.", err)
		c.state = StateProjectList
		return err
	}

	expenses, err := c.store.ListExpenses(ctx, id)
	if err != nil {
		c.surface(ctx, "Load failed", "Could not load the expenses. Try again.", err)
		c.state = StateProjectList
		return err
	}

	budget, err := c.loadBudget(ctx, id)
	if err != nil {
		c.surface(ctx, "Load failed", "Could not load the budget. Try again.", err)
		c.state = StateProjectList
		return err
	}

	c.active = &project
	c.expenses = expenses
	c.budget = budget
	c.state = StateDashboard

	if c.subscribe != nil {
		c.sub = c.subscribe(ctx, id, c.applySnapshot, func(err error) {
			slog.ErrorContext(ctx, "Change feed error", "project_id", id, "error", err)
		})
	}

	return nil
}

// AddExpense validates the input, persists it and refreshes the mirror.
// Rejected input never reaches the store.
func (c *Controller) AddExpense(ctx context.Context, input ExpenseInput) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	project, err := c.requireDashboardLocked()
	if err != nil {
		return 0, err
	}

	expense, err := c.buildExpense(project.ID, 0, input)
	if err != nil {
		return 0, err
	}

	id, err := c.store.AddExpense(ctx, expense)
	if err != nil {
		c.surface(ctx, "Save failed", "An error occurred while adding the expense.", err)
		return 0, err
	}

	c.publish(ctx, notify.CollectionExpenses, project.ID)
	return id, c.reloadExpensesLocked(ctx, project.ID)
}

// EditExpense is a full replace of the stored record, not a partial patch.
// A target that vanished underneath the edit is benign.
func (c *Controller) EditExpense(ctx context.Context, id int64, input ExpenseInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	project, err := c.requireDashboardLocked()
	if err != nil {
		return err
	}

	expense, err := c.buildExpense(project.ID, id, input)
	if err != nil {
		return err
	}

	if err := c.store.UpdateExpense(ctx, expense); err != nil {
		c.surface(ctx, "Update failed", "Could not update the expense.", err)
		return err
	}

	c.publish(ctx, notify.CollectionExpenses, project.ID)
	return c.reloadExpensesLocked(ctx, project.ID)
}

// DeleteExpense removes one expense after user confirmation. Deleting an
// id that no longer exists is a silent no-op.
func (c *Controller) DeleteExpense(ctx context.Context, id int64) error {
	if !c.confirmer.Confirm(ctx, "Delete this expense?") {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	project, err := c.requireDashboardLocked()
	if err != nil {
		return err
	}

	if err := c.store.DeleteExpense(ctx, project.ID, id); err != nil {
		c.surface(ctx, "Delete failed", "Could not delete the expense.", err)
		return err
	}

	c.publish(ctx, notify.CollectionExpenses, project.ID)
	return c.reloadExpensesLocked(ctx, project.ID)
}

// SetBudget upserts the project budget: the first save creates it, every
// later save replaces it in place.
func (c *Controller) SetBudget(ctx context.Context, input BudgetInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	project, err := c.requireDashboardLocked()
	if err != nil {
		return err
	}

	budget := core.Budget{
		ProjectID: project.ID,
		Amount:    input.Amount,
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
	}
	if err := budget.Validate(); err != nil {
		return &ValidationError{Err: err}
	}

	if _, err := c.store.UpsertBudget(ctx, budget); err != nil {
		c.surface(ctx, "Save failed", "Could not save the budget.", err)
		return err
	}

	c.publish(ctx, notify.CollectionBudget, project.ID)

	reloaded, err := c.loadBudget(ctx, project.ID)
	if err != nil {
		c.surface(ctx, "Load failed", "Could not reload the budget.", err)
		return err
	}
	c.budget = reloaded
	return nil
}

// CreateProject adds a project and refreshes the project list mirror.
func (c *Controller) CreateProject(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateUnauthenticated {
		return "", errors.New("not signed in")
	}

	project := core.Project{Name: strings.TrimSpace(name)}
	if err := project.Validate(); err != nil {
		return "", &ValidationError{Err: err}
	}

	id, err := c.store.AddProject(ctx, project)
	if err != nil {
		c.surface(ctx, "Save failed", "Could not create the project.", err)
		return "", err
	}

	c.publish(ctx, notify.CollectionProjects, id)
	return id, c.reloadProjectsLocked(ctx)
}

// DeleteProject cascades after user confirmation: expenses and budget are
// removed first, concurrently; the project record is deleted only when
// every child delete succeeded, so a partial failure never leaves an
// orphaned project half-gone.
func (c *Controller) DeleteProject(ctx context.Context, id string) error {
	if !c.confirmer.Confirm(ctx, "Delete this project and all of its records?") {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateUnauthenticated {
		return errors.New("not signed in")
	}

	if err := CascadeDeleteProject(ctx, c.store, id); err != nil {
		c.surface(ctx, "Delete failed", "Could not delete the project. Any remaining records were kept.", err)
		return err
	}

	c.publish(ctx, notify.CollectionProjects, id)

	if c.active != nil && c.active.ID == id {
		sub := c.sub
		c.sub = nil
		c.clearActiveLocked()
		if sub != nil {
			go sub.Cancel()
		}
	}
	c.state = StateProjectList

	return c.reloadProjectsLocked(ctx)
}

// Expenses returns a copy of the expense mirror of the active project.
func (c *Controller) Expenses() []core.Expense {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Expense(nil), c.expenses...)
}

// View returns the filtered, date-descending expense list for rendering.
func (c *Controller) View(search string, cat core.Category) []core.Expense {
	c.mu.Lock()
	expenses := append([]core.Expense(nil), c.expenses...)
	c.mu.Unlock()
	return core.View(expenses, search, cat)
}

// Summary recomputes the derived metrics from the current mirrors.
func (c *Controller) Summary() core.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return core.Summarize(c.expenses, c.budget)
}

// Snapshot hands exporters a read-only copy of the active project state.
func (c *Controller) Snapshot() (ProjectSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return ProjectSnapshot{}, errors.New("no active project")
	}

	snap := ProjectSnapshot{
		Project:  *c.active,
		Expenses: append([]core.Expense(nil), c.expenses...),
		Summary:  core.Summarize(c.expenses, c.budget),
	}
	if c.budget != nil {
		b := *c.budget
		snap.Budget = &b
	}
	return snap, nil
}

// Close releases the active subscription and the store handle.
func (c *Controller) Close() error {
	c.SignOut()
	return c.store.Close()
}

func (c *Controller) buildExpense(projectID string, id int64, input ExpenseInput) (core.Expense, error) {
	if input.Detail == nil {
		return core.Expense{}, &ValidationError{Err: errors.New("missing category detail")}
	}

	expense := core.Expense{
		ID:          id,
		ProjectID:   projectID,
		Date:        input.Date,
		Category:    input.Detail.Category(),
		Description: input.Detail.Describe(),
		Amount:      input.Amount,
		Payment:     input.Payment,
	}
	if err := expense.Validate(); err != nil {
		return core.Expense{}, &ValidationError{Err: err}
	}
	return expense, nil
}

func (c *Controller) requireDashboardLocked() (core.Project, error) {
	if c.state != StateDashboard || c.active == nil {
		return core.Project{}, errors.New("no project open")
	}
	return *c.active, nil
}

func (c *Controller) reloadExpensesLocked(ctx context.Context, projectID string) error {
	expenses, err := c.store.ListExpenses(ctx, projectID)
	if err != nil {
		c.surface(ctx, "Load failed", "Could not reload the expenses.", err)
		return err
	}
	c.expenses = expenses
	return nil
}

func (c *Controller) reloadProjectsLocked(ctx context.Context) error {
	projects, err := c.store.ListProjects(ctx)
	if err != nil {
		c.surface(ctx, "Load failed", "Could not reload the projects.", err)
		return err
	}
	c.projects = projects
	return nil
}

func (c *Controller) loadBudget(ctx context.Context, projectID string) (*core.Budget, error) {
	budget, err := c.store.GetBudget(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &budget, nil
}

func (c *Controller) applySnapshot(snap notify.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil || c.active.ID != snap.ProjectID {
		if snap.Collection == notify.CollectionProjects {
			c.projects = snap.Projects
		}
		return
	}

	switch snap.Collection {
	case notify.CollectionExpenses:
		c.expenses = snap.Expenses
	case notify.CollectionBudget:
		c.budget = snap.Budget
	case notify.CollectionProjects:
		c.projects = snap.Projects
	}
}

func (c *Controller) clearActiveLocked() {
	c.active = nil
	c.expenses = nil
	c.budget = nil
}

// publish is best-effort: a broker failure is logged, never returned.
func (c *Controller) publish(ctx context.Context, collection, projectID string) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishChange(ctx, collection, projectID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change message",
			"collection", collection,
			"project_id", projectID,
			"error", err)
	}
}

// surface logs a store failure and turns it into a user-visible message.
// No operation is retried automatically.
func (c *Controller) surface(ctx context.Context, title, message string, err error) {
	slog.ErrorContext(ctx, message, "error", err)
	if c.notifier != nil {
		c.notifier.Error(title, message)
	}
}
