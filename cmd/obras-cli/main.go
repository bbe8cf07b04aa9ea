// Interactive terminal client. Drives a project session against the same
// backend as the HTTP server: sign in, open a project, record expenses and
// watch the summary react. With AMQP configured the session also follows
// changes made by other clients.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"obras/internal/backend"
	"obras/internal/config"
	"obras/internal/core"
	applog "obras/internal/log"
	"obras/internal/notify"
	"obras/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Backend configuration failed", applog.FieldError, err)
		os.Exit(1)
	}
	if err := backendCfg.Validate(); err != nil {
		logger.Error("Backend configuration invalid", applog.FieldError, err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger.Logger)
	result, err := factory.CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", applog.FieldError, err)
			}
		}
	}()

	in := bufio.NewScanner(os.Stdin)
	out := os.Stdout

	var publisher services.ChangePublisher
	if result.Notifier != nil {
		publisher = result.Notifier
		defer result.Notifier.Close()
	}

	ctrl := services.NewController(result.Store, publisher,
		&terminalNotifier{out: out}, &terminalConfirmer{in: in, out: out})
	defer ctrl.Close()

	if result.Notifier != nil {
		consumer := result.Notifier
		ctrl.SetSubscribeFunc(func(ctx context.Context, projectID string,
			onChange func(notify.Snapshot), onError func(error)) *notify.Subscription {
			return notify.Subscribe(ctx, consumer, result.Store, projectID, onChange, onError)
		})
	}

	ctx := context.Background()

	user := os.Getenv("OBRAS_USER")
	if user == "" {
		user = "local"
	}
	if err := ctrl.SignIn(ctx, user); err != nil {
		logger.Error("Sign in failed", applog.FieldError, err)
		os.Exit(1)
	}
	fmt.Fprintf(out, "Signed in as %s. Type 'help' for commands.\n", user)

	repl(ctx, ctrl, in, out)
}

func repl(ctx context.Context, ctrl *services.Controller, in *bufio.Scanner, out *os.File) {
	for {
		fmt.Fprintf(out, "%s> ", ctrl.State())
		if !in.Scan() {
			return
		}
		fields := strings.Fields(in.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]

		var err error
		switch cmd {
		case "help":
			printHelp(out)
		case "projects":
			err = cmdProjects(ctrl, out)
		case "new":
			err = cmdNewProject(ctx, ctrl, out, args)
		case "open":
			err = cmdOpen(ctx, ctrl, args)
		case "rmproject":
			err = cmdRemoveProject(ctx, ctrl, args)
		case "add":
			err = cmdAdd(ctx, ctrl, out, args)
		case "edit":
			err = cmdEdit(ctx, ctrl, args)
		case "del":
			err = cmdDelete(ctx, ctrl, args)
		case "list":
			err = cmdList(ctrl, out, args)
		case "budget":
			err = cmdBudget(ctx, ctrl, args)
		case "summary":
			cmdSummary(ctrl, out)
		case "logout":
			ctrl.SignOut()
		case "quit", "exit":
			return
		default:
			fmt.Fprintf(out, "unknown command %q, type 'help'\n", cmd)
		}
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func printHelp(out *os.File) {
	fmt.Fprint(out, `commands:
  projects                                     list projects
  new <name>                                   create a project
  open <id>                                    open a project
  rmproject <id>                               delete a project and its records
  add <date> <category> <amount> <pay> <desc>  record an expense
  edit <id> <date> <category> <amount> <pay> <desc>
  del <id>                                     delete an expense
  list [category] [search terms]               list expenses, newest first
  budget <amount> <start> [end]                set the project budget
  summary                                      totals, balance and breakdown
  logout                                       back to sign-in
  quit
dates are YYYY-MM-DD, amounts decimal (e.g. 1200.50),
categories: material labor equipment service other (or 'all' in list),
payments: cash card bank-transfer instant-transfer
`)
}

func cmdProjects(ctrl *services.Controller, out *os.File) error {
	projects := ctrl.Projects()
	if len(projects) == 0 {
		fmt.Fprintln(out, "no projects yet, create one with 'new <name>'")
		return nil
	}
	for _, p := range projects {
		fmt.Fprintf(out, "  %s  %s\n", p.ID, p.Name)
	}
	return nil
}

func cmdNewProject(ctx context.Context, ctrl *services.Controller, out *os.File, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: new <name>")
	}
	id, err := ctrl.CreateProject(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created project %s\n", id)
	return nil
}

func cmdOpen(ctx context.Context, ctrl *services.Controller, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: open <id>")
	}
	return ctrl.OpenProject(ctx, args[0])
}

func cmdRemoveProject(ctx context.Context, ctrl *services.Controller, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: rmproject <id>")
	}
	return ctrl.DeleteProject(ctx, args[0])
}

func cmdAdd(ctx context.Context, ctrl *services.Controller, out *os.File, args []string) error {
	input, err := parseExpenseArgs(args)
	if err != nil {
		return err
	}
	id, err := ctrl.AddExpense(ctx, input)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "recorded expense %d\n", id)
	return nil
}

func cmdEdit(ctx context.Context, ctrl *services.Controller, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: edit <id> <date> <category> <amount> <pay> <desc>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid expense id %q", args[0])
	}
	input, err := parseExpenseArgs(args[1:])
	if err != nil {
		return err
	}
	return ctrl.EditExpense(ctx, id, input)
}

func cmdDelete(ctx context.Context, ctrl *services.Controller, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: del <id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid expense id %q", args[0])
	}
	return ctrl.DeleteExpense(ctx, id)
}

func cmdList(ctrl *services.Controller, out *os.File, args []string) error {
	category := core.FilterAll
	search := ""
	if len(args) > 0 {
		cat := core.Category(args[0])
		if cat == core.FilterAll || cat.IsValid() {
			category = cat
			args = args[1:]
		}
		search = strings.Join(args, " ")
	}

	expenses := ctrl.View(search, category)
	if len(expenses) == 0 {
		fmt.Fprintln(out, "no matching expenses")
		return nil
	}
	for _, e := range expenses {
		fmt.Fprintf(out, "  %4d  %s  %-9s  %10s  %s\n",
			e.ID, e.Date.ISO(), e.Category, e.Amount, e.Description)
	}
	return nil
}

func cmdBudget(ctx context.Context, ctrl *services.Controller, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("usage: budget <amount> <start> [end]")
	}
	cents, err := core.ParseDecimalToCents(args[0])
	if err != nil {
		return err
	}
	start, err := core.ParseDate(args[1])
	if err != nil {
		return err
	}
	input := services.BudgetInput{Amount: core.Money{Cents: cents}, StartDate: start}
	if len(args) == 3 {
		end, err := core.ParseDate(args[2])
		if err != nil {
			return err
		}
		input.EndDate = end
	}
	return ctrl.SetBudget(ctx, input)
}

func cmdSummary(ctrl *services.Controller, out *os.File) {
	s := ctrl.Summary()
	fmt.Fprintf(out, "  spent %s\n", s.TotalActual)
	if s.HasBudget {
		fmt.Fprintf(out, "  balance %s (%.1f%% used)\n", s.Balance, s.PercentUsed)
		if s.OverBudget() {
			fmt.Fprintln(out, "  over budget")
		}
	} else {
		fmt.Fprintln(out, "  no budget set")
	}
	for cat, amount := range s.ByCategory {
		fmt.Fprintf(out, "  %-9s %s\n", cat, amount)
	}
}

// parseExpenseArgs reads <date> <category> <amount> <pay> <desc...> and
// builds the controller input. The free-text tail lands in the category's
// primary detail field.
func parseExpenseArgs(args []string) (services.ExpenseInput, error) {
	if len(args) < 5 {
		return services.ExpenseInput{}, fmt.Errorf("usage: <date> <category> <amount> <pay> <desc>")
	}
	date, err := core.ParseDate(args[0])
	if err != nil {
		return services.ExpenseInput{}, err
	}
	cents, err := core.ParseDecimalToCents(args[2])
	if err != nil {
		return services.ExpenseInput{}, err
	}
	detail, err := detailFor(core.Category(args[1]), strings.Join(args[4:], " "))
	if err != nil {
		return services.ExpenseInput{}, err
	}
	return services.ExpenseInput{
		Date:    date,
		Detail:  detail,
		Amount:  core.Money{Cents: cents},
		Payment: core.PaymentMethod(args[3]),
	}, nil
}

func detailFor(cat core.Category, text string) (core.CategoryDetail, error) {
	switch cat {
	case core.CategoryMaterial:
		return core.MaterialDetail{Name: text}, nil
	case core.CategoryLabor:
		return core.LaborDetail{Role: text}, nil
	case core.CategoryEquipment:
		return core.EquipmentDetail{Name: text}, nil
	case core.CategoryService:
		return core.ServiceDetail{Provider: text}, nil
	case core.CategoryOther:
		return core.OtherDetail{Note: text}, nil
	default:
		return nil, fmt.Errorf("unknown category %q", cat)
	}
}

// terminalNotifier surfaces controller messages on stdout.
type terminalNotifier struct {
	out *os.File
}

func (n *terminalNotifier) Info(title, message string)  { fmt.Fprintf(n.out, "%s: %s\n", title, message) }
func (n *terminalNotifier) Error(title, message string) { fmt.Fprintf(n.out, "%s: %s\n", title, message) }

// terminalConfirmer asks destructive questions on the same terminal the
// session runs on.
type terminalConfirmer struct {
	in  *bufio.Scanner
	out *os.File
}

func (c *terminalConfirmer) Confirm(_ context.Context, prompt string) bool {
	fmt.Fprintf(c.out, "%s [y/N] ", prompt)
	if !c.in.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(c.in.Text()))
	return answer == "y" || answer == "yes"
}
