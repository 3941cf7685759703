package model

import "github.com/google/uuid"

type UserRole string

const (
	UserRoleAdmin    UserRole = "ADMIN"
	UserRoleOperator UserRole = "OPERATOR"
	UserRoleViewer   UserRole = "VIEWER"
)

type Principal struct {
	UserID uuid.UUID
	Role   UserRole
}

func (p Principal) IsAdmin() bool {
	return p.Role == UserRoleAdmin
}

func (p Principal) IsOperator() bool {
	return p.Role == UserRoleOperator
}

func (p Principal) IsViewer() bool {
	return p.Role == UserRoleViewer
}

// CanMutate reports whether the principal may change contracts and the ledger.
func (p Principal) CanMutate() bool {
	return p.IsAdmin() || p.IsOperator()
}
