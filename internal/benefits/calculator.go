package benefits

import (
	"time"

	"ivr-platform/internal/customer"
)

// Calculator derives monetary entitlements from stored personal details.
// It is pure: no storage, no I/O. Amounts are configured, not hard-coded,
// so the menu layer and tests share one source of truth.
type Calculator struct {
	WorkBenefitBase      float64
	BirthBenefitPerChild float64

	// Year is injectable for deterministic tests; defaults to the current
	// calendar year.
	Year func() int
}

// Summary is the result of a full entitlement calculation.
type Summary struct {
	WorkBenefit  float64 `json:"work_benefit"`
	BirthBenefit float64 `json:"birth_benefit"`
	Total        float64 `json:"total_benefit"`
}

func NewCalculator(workBase, perChild int) *Calculator {
	return &Calculator{
		WorkBenefitBase:      float64(workBase),
		BirthBenefitPerChild: float64(perChild),
		Year:                 func() int { return time.Now().Year() },
	}
}

// WorkBenefit depends only on the combined employed-spouse workplace count:
// none pays nothing, one pays the base, two or more pays base times 1.5.
func (c *Calculator) WorkBenefit(spouse1, spouse2 int) float64 {
	total := spouse1 + spouse2
	switch {
	case total >= 2:
		return c.WorkBenefitBase * 1.5
	case total == 1:
		return c.WorkBenefitBase
	default:
		return 0
	}
}

// BirthBenefit pays the per-child amount for every child aged 18 or under.
func (c *Calculator) BirthBenefit(birthYears []int) float64 {
	if len(birthYears) == 0 {
		return 0
	}
	currentYear := c.currentYear()
	var total float64
	for _, year := range birthYears {
		if currentYear-year <= 18 {
			total += c.BirthBenefitPerChild
		}
	}
	return total
}

// Calculate combines both entitlements for a customer's stored details.
func (c *Calculator) Calculate(d customer.Details) Summary {
	work := c.WorkBenefit(d.Spouse1Workplaces, d.Spouse2Workplaces)
	birth := c.BirthBenefit(d.ChildrenBirthYears)
	return Summary{
		WorkBenefit:  work,
		BirthBenefit: birth,
		Total:        work + birth,
	}
}

func (c *Calculator) currentYear() int {
	if c.Year != nil {
		return c.Year()
	}
	return time.Now().Year()
}
