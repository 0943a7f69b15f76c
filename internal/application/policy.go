package application

// Permission names an operation class that some roles may perform.
type Permission string

const (
	// PermissionReadAllBookings lists bookings of every user.
	PermissionReadAllBookings Permission = "bookings:read_all"
	// PermissionDeleteAnyBooking deletes any booking regardless of owner or start time.
	PermissionDeleteAnyBooking Permission = "bookings:delete_any"
	// PermissionWriteRooms creates, updates and deletes rooms.
	PermissionWriteRooms Permission = "rooms:write"
)

// Policy decides whether a role holds a permission. Unknown roles hold none.
type Policy interface {
	Can(role Role, permission Permission) bool
}

// StaticPolicy is an in-process Policy keyed by role.
type StaticPolicy map[Role][]Permission

// DefaultPolicy grants managers every permission and employees none.
func DefaultPolicy() StaticPolicy {
	return StaticPolicy{
		RoleManager: {PermissionReadAllBookings, PermissionDeleteAnyBooking, PermissionWriteRooms},
	}
}

// Can implements Policy.
func (p StaticPolicy) Can(role Role, permission Permission) bool {
	for _, granted := range p[role] {
		if granted == permission {
			return true
		}
	}
	return false
}

func policyOrDefault(policy Policy) Policy {
	if policy == nil {
		return DefaultPolicy()
	}
	return policy
}
