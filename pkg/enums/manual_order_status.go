package enums

import "fmt"

// ManualOrderStatus tracks the lifecycle of an order entered through the manual channel.
type ManualOrderStatus string

const (
	ManualOrderStatusPending    ManualOrderStatus = "pending"
	ManualOrderStatusProcessing ManualOrderStatus = "processing"
	ManualOrderStatusShipped    ManualOrderStatus = "shipped"
	ManualOrderStatusDelivered  ManualOrderStatus = "delivered"
	ManualOrderStatusCancelled  ManualOrderStatus = "cancelled"
	ManualOrderStatusOnHold     ManualOrderStatus = "on-hold"
)

var validManualOrderStatuses = []ManualOrderStatus{
	ManualOrderStatusPending,
	ManualOrderStatusProcessing,
	ManualOrderStatusShipped,
	ManualOrderStatusDelivered,
	ManualOrderStatusCancelled,
	ManualOrderStatusOnHold,
}

// String implements fmt.Stringer.
func (s ManualOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ManualOrderStatus.
func (s ManualOrderStatus) IsValid() bool {
	for _, candidate := range validManualOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseManualOrderStatus converts raw input into a ManualOrderStatus.
func ParseManualOrderStatus(value string) (ManualOrderStatus, error) {
	for _, candidate := range validManualOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid manual order status %q", value)
}
