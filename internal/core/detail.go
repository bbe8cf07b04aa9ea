package core

import (
	"fmt"
	"strings"
)

// CategoryDetail carries the category-specific sub-fields entered on the
// expense form. Each category has its own variant; Describe flattens the
// variant into the free-text description that is actually stored.
type CategoryDetail interface {
	Category() Category
	Describe() string
}

type (
	// MaterialDetail describes a purchased material (e.g. "cement, 50 x bag").
	MaterialDetail struct {
		Name     string
		Unit     string
		Quantity float64
	}

	// LaborDetail describes hired labor for a number of days.
	LaborDetail struct {
		Role string
		Days int
	}

	// EquipmentDetail describes rented or purchased equipment.
	EquipmentDetail struct {
		Name   string
		Rental string // rental period, free text; empty for purchases
	}

	// ServiceDetail describes a contracted service.
	ServiceDetail struct {
		Provider    string
		Description string
	}

	// OtherDetail is the free-form fallback.
	OtherDetail struct {
		Note string
	}
)

func (MaterialDetail) Category() Category  { return CategoryMaterial }
func (LaborDetail) Category() Category     { return CategoryLabor }
func (EquipmentDetail) Category() Category { return CategoryEquipment }
func (ServiceDetail) Category() Category   { return CategoryService }
func (OtherDetail) Category() Category     { return CategoryOther }

func (d MaterialDetail) Describe() string {
	name := strings.TrimSpace(d.Name)
	if d.Quantity > 0 && d.Unit != "" {
		return fmt.Sprintf("%s, %s x %s", name, trimFloat(d.Quantity), strings.TrimSpace(d.Unit))
	}
	return name
}

func (d LaborDetail) Describe() string {
	role := strings.TrimSpace(d.Role)
	if d.Days > 0 {
		return fmt.Sprintf("%s, %d day(s)", role, d.Days)
	}
	return role
}

func (d EquipmentDetail) Describe() string {
	name := strings.TrimSpace(d.Name)
	if r := strings.TrimSpace(d.Rental); r != "" {
		return name + ", rental " + r
	}
	return name
}

func (d ServiceDetail) Describe() string {
	provider := strings.TrimSpace(d.Provider)
	if desc := strings.TrimSpace(d.Description); desc != "" {
		return provider + ": " + desc
	}
	return provider
}

func (d OtherDetail) Describe() string {
	return strings.TrimSpace(d.Note)
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
