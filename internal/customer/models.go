package customer

import "time"

// Customer is a subscriber record keyed by phone number.
//
// Subscription validity is computed, never stored: a customer is active while
// today is on or before SubscriptionEnd (date precision). The Active flag is
// an operational kill switch, not the subscription state.
type Customer struct {
	ID          int64  `json:"id" db:"id"`
	PhoneNumber string `json:"phone_number" db:"phone_number"`
	Name        string `json:"name,omitempty" db:"name"`
	Email       string `json:"email,omitempty" db:"email"`

	SubscriptionStart time.Time `json:"subscription_start" db:"subscription_start"`
	SubscriptionEnd   time.Time `json:"subscription_end" db:"subscription_end"`

	Active bool `json:"active" db:"active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SubscriptionActiveAt reports whether the subscription covers the given day.
// The end date itself is still active; the day after is not.
func (c Customer) SubscriptionActiveAt(today time.Time) bool {
	if c.SubscriptionEnd.IsZero() {
		return false
	}
	y1, m1, d1 := today.Date()
	y2, m2, d2 := c.SubscriptionEnd.Date()
	t := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	end := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return !t.After(end)
}

// Details holds the personal data collected by the details-update journey.
// One row per customer; each completed journey overwrites all four fields.
//
// Invariant: len(ChildrenBirthYears) == NumChildren once a journey completes.
// The state machine refuses to finalize otherwise.
type Details struct {
	CustomerID         int64 `json:"customer_id" db:"customer_id"`
	NumChildren        int   `json:"num_children" db:"num_children"`
	ChildrenBirthYears []int `json:"children_birth_years" db:"children_birth_years"`
	Spouse1Workplaces  int   `json:"spouse1_workplaces" db:"spouse1_workplaces"`
	Spouse2Workplaces  int   `json:"spouse2_workplaces" db:"spouse2_workplaces"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
