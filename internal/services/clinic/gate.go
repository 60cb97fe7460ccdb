package clinic

import (
	"math"
	"sort"

	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
)

type DenyReason string

const (
	ReasonOrderingBlocked DenyReason = "ORDERING_BLOCKED"
	ReasonLimitExceeded   DenyReason = "LIMIT_EXCEEDED"
)

type Decision struct {
	Allowed bool
	Reason  DenyReason

	assignmentID  int64
	surveyEnabled bool
	category      string
	max           int
	requested     int
}

// Err is nil for an allowed decision and the typed rejection otherwise.
func (d Decision) Err() error {
	switch {
	case d.Allowed:
		return nil
	case d.Reason == ReasonOrderingBlocked:
		return &kiosk.OrderingBlockedError{AssignmentID: d.assignmentID, SurveyEnabled: d.surveyEnabled}
	default:
		return &kiosk.LimitExceededError{Category: d.category, Max: d.max, Requested: d.requested}
	}
}

// Evaluate decides whether a self-service order for requested (quantities
// summed per category) is admitted under a. Categories without a configured
// limit are unlimited. Categories are checked in name order.
func Evaluate(a kiosk.Assignment, requested map[string]int) Decision {
	if !a.CanPatientOrder {
		return Decision{Reason: ReasonOrderingBlocked, assignmentID: a.ID, surveyEnabled: a.SurveyEnabled}
	}

	categories := make([]string, 0, len(requested))
	for c := range requested {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	for _, c := range categories {
		limit, ok := a.OrderLimits[c]
		if !ok {
			continue
		}
		if n := requested[c]; n > limit {
			return Decision{Reason: ReasonLimitExceeded, assignmentID: a.ID, category: c, max: limit, requested: n}
		}
	}
	return Decision{Allowed: true}
}

// CategoryTotals sums item quantities per product category. A sum that
// does not fit in an int is rejected as an invalid argument.
func CategoryTotals(items []kiosk.OrderItem, products map[int64]kiosk.Product) (map[string]int, error) {
	out := make(map[string]int)
	for _, it := range items {
		c := products[it.ProductID].Category
		if it.Quantity < 0 || out[c] > math.MaxInt-it.Quantity {
			return nil, kiosk.Invalid("quantity for category %s is out of range", c)
		}
		out[c] += it.Quantity
	}
	return out, nil
}
