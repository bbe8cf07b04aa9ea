package core

import (
	"errors"
	"strings"
	"time"
)

const (
	CategoryMaterial  Category = "material"
	CategoryLabor     Category = "labor"
	CategoryEquipment Category = "equipment"
	CategoryService   Category = "service"
	CategoryOther     Category = "other"
)

const (
	PaymentCash            PaymentMethod = "cash"
	PaymentInstantTransfer PaymentMethod = "instant-transfer"
	PaymentCard            PaymentMethod = "card"
	PaymentBankTransfer    PaymentMethod = "bank-transfer"
)

type (
	Category string

	PaymentMethod string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Expense struct {
		ID          int64
		ProjectID   string
		Date        Date
		Category    Category
		Description string
		Amount      Money
		Payment     PaymentMethod
	}

	// Budget is the single spending limit of a project. A project holds at
	// most one; saving again replaces the stored record.
	Budget struct {
		ID        int64
		ProjectID string
		Amount    Money
		StartDate Date
		EndDate   Date
	}

	Project struct {
		ID        string
		Name      string
		CreatedAt time.Time
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidPayment   = errors.New("invalid payment method")
	ErrEmptyProjectName = errors.New("empty project name")
	ErrBudgetDatesOrder = errors.New("budget end date before start date")
)

// Categories lists every valid expense category in display order.
func Categories() []Category {
	return []Category{
		CategoryMaterial,
		CategoryLabor,
		CategoryEquipment,
		CategoryService,
		CategoryOther,
	}
}

func (c Category) IsValid() bool {
	switch c {
	case CategoryMaterial, CategoryLabor, CategoryEquipment, CategoryService, CategoryOther:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer
func (c Category) String() string {
	return string(c)
}

func (p PaymentMethod) IsValid() bool {
	switch p {
	case PaymentCash, PaymentInstantTransfer, PaymentCard, PaymentBankTransfer:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer
func (p PaymentMethod) String() string {
	return string(p)
}

// NewDate creates a new Date from year, month, day at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a calendar date in ISO format (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// ISO formats the date as 2006-01-02.
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

// IsEmpty returns true if the date is zero (optional dates).
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Category.IsValid() {
		return ErrInvalidCategory
	}
	if !e.Payment.IsValid() {
		return ErrInvalidPayment
	}
	return nil
}

func (b Budget) Validate() error {
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if err := b.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}

	// End date is optional in the single-date variant.
	if !b.EndDate.IsZero() && b.EndDate.Before(b.StartDate.Time) {
		return ErrBudgetDatesOrder
	}

	return nil
}

func (p Project) Validate() error {
	if len(strings.TrimSpace(p.Name)) == 0 {
		return ErrEmptyProjectName
	}
	if len(p.Name) > 120 {
		return errors.New("project name too long (max 120 characters)")
	}
	return nil
}
