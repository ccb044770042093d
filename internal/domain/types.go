package domain

import "strings"

// ID is used across domain entities.
type ID int64

// Role is the coarse permission level supplied by the identity layer.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleAdmin     Role = "admin"
	RoleConductor Role = "conductor"
)

// ParseRole normalizes a role claim. Unknown values collapse to passenger.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleConductor:
		return RoleConductor
	default:
		return RolePassenger
	}
}

// Actor carries authenticated caller info.
type Actor struct {
	ID   ID   `json:"actor_id"`
	Role Role `json:"role"`
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// IsStaff reports whether the actor works the counter or the bus.
func (a Actor) IsStaff() bool { return a.Role == RoleAdmin || a.Role == RoleConductor }

// CanAccess is the owner-or-admin rule applied to bookings and cancellations.
func (a Actor) CanAccess(owner ID) bool {
	return a.IsAdmin() || (a.ID != 0 && a.ID == owner)
}

// Pagination carries paging params.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// Normalize clamps paging to sane values and returns limit/offset.
func (p Pagination) Normalize() (limit, offset int) {
	if p.PageSize <= 0 || p.PageSize > 200 {
		p.PageSize = 50
	}
	if p.Page <= 0 {
		p.Page = 1
	}
	return p.PageSize, (p.Page - 1) * p.PageSize
}
