package enum

// ── Group A: State machines (ordered, enforced by the store) ──

const (
	ItemStatusPending       = "pending"
	ItemStatusConfirmed     = "confirmed"
	ItemStatusInPreparation = "in_preparation"
	ItemStatusReady         = "ready"
)

// itemStatusRank orders the preparation statuses. A line may only move to a
// status with a higher or equal rank.
var itemStatusRank = map[string]int{
	ItemStatusPending:       0,
	ItemStatusConfirmed:     1,
	ItemStatusInPreparation: 2,
	ItemStatusReady:         3,
}

// ItemStatuses lists the preparation statuses in progression order.
var ItemStatuses = []string{
	ItemStatusPending,
	ItemStatusConfirmed,
	ItemStatusInPreparation,
	ItemStatusReady,
}

// IsValidItemStatus reports whether s is a known preparation status.
func IsValidItemStatus(s string) bool {
	_, ok := itemStatusRank[s]
	return ok
}

// ItemStatusRank returns the position of s in the progression, or -1.
func ItemStatusRank(s string) int {
	if r, ok := itemStatusRank[s]; ok {
		return r
	}
	return -1
}

// ── Group B: Sync event kinds (tipo on the wire) ──

const (
	EventNewOrder         = "new_order"
	EventStaffCalled      = "staff_called"
	EventCallAcknowledged = "call_acknowledged"
	EventBillRequested    = "bill_requested"
	EventBillAcknowledged = "bill_acknowledged"
	EventTableSettled     = "table_settled"
	EventStatusChanged    = "status_changed"
)

// EventKinds lists every kind a SyncEvent may carry.
var EventKinds = []string{
	EventNewOrder,
	EventStaffCalled,
	EventCallAcknowledged,
	EventBillRequested,
	EventBillAcknowledged,
	EventTableSettled,
	EventStatusChanged,
}

// ── Group C: Configurable labels ──

const (
	DestinationKitchen = "kitchen"
	DestinationBar     = "bar"
)

const (
	RoleCustomer = "customer"
	RoleWaiter   = "waiter"
	RoleKitchen  = "kitchen"
	RoleBar      = "bar"
	RoleAdmin    = "admin"
)

// StaffRoles are the roles unlocked by the shared staff passcode.
var StaffRoles = []string{RoleWaiter, RoleKitchen, RoleBar, RoleAdmin}

// IsStaffRole reports whether role is one of StaffRoles.
func IsStaffRole(role string) bool {
	for _, r := range StaffRoles {
		if r == role {
			return true
		}
	}
	return false
}

const (
	ChannelState  = "mesas-sync"
	ChannelNotify = "mesas-notify"
)
