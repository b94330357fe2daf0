package enums

import "fmt"

// SalesOrderStatus tracks the lifecycle of a sales order.
type SalesOrderStatus string

const (
	SalesOrderStatusDraft     SalesOrderStatus = "draft"
	SalesOrderStatusConfirmed SalesOrderStatus = "confirmed"
	SalesOrderStatusShipped   SalesOrderStatus = "shipped"
	SalesOrderStatusInvoiced  SalesOrderStatus = "invoiced"
	SalesOrderStatusCancelled SalesOrderStatus = "cancelled"
)

var validSalesOrderStatuses = []SalesOrderStatus{
	SalesOrderStatusDraft,
	SalesOrderStatusConfirmed,
	SalesOrderStatusShipped,
	SalesOrderStatusInvoiced,
	SalesOrderStatusCancelled,
}

// salesOrderTransitions is the closed transition table; anything not listed
// is rejected.
var salesOrderTransitions = map[SalesOrderStatus][]SalesOrderStatus{
	SalesOrderStatusDraft:     {SalesOrderStatusConfirmed, SalesOrderStatusCancelled},
	SalesOrderStatusConfirmed: {SalesOrderStatusShipped, SalesOrderStatusCancelled},
	SalesOrderStatusShipped:   {SalesOrderStatusInvoiced},
	SalesOrderStatusInvoiced:  {},
	SalesOrderStatusCancelled: {},
}

// String implements fmt.Stringer.
func (s SalesOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SalesOrderStatus.
func (s SalesOrderStatus) IsValid() bool {
	for _, candidate := range validSalesOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist from this status.
func (s SalesOrderStatus) IsTerminal() bool {
	return s.IsValid() && len(salesOrderTransitions[s]) == 0
}

// CanTransitionTo reports whether the transition table allows moving to next.
func (s SalesOrderStatus) CanTransitionTo(next SalesOrderStatus) bool {
	for _, candidate := range salesOrderTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseSalesOrderStatus converts raw input into a SalesOrderStatus.
func ParseSalesOrderStatus(value string) (SalesOrderStatus, error) {
	for _, candidate := range validSalesOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sales order status %q", value)
}
