package model

// Role is the caller's role as carried in the access token.
type Role string

const (
    RoleVisitor  Role = "VISITOR"
    RoleOperator Role = "OPERATOR"
    RoleAdmin    Role = "ADMIN"
)

// Principal identifies who is performing an operation.  It is threaded
// explicitly through every service call; the zero value is an anonymous
// visitor.
type Principal struct {
    UserID uint64
    Role   Role
    Name   string
}

// Anonymous reports whether no authenticated user is attached.
func (p Principal) Anonymous() bool { return p.UserID == 0 }

// UserRef returns the user ID as a nullable column value.
func (p Principal) UserRef() *uint64 {
    if p.UserID == 0 {
        return nil
    }
    id := p.UserID
    return &id
}

// IsStaff reports whether the principal may operate the gate.
func (p Principal) IsStaff() bool {
    switch p.Role {
    case RoleOperator, RoleAdmin:
        return true
    case RoleVisitor:
        return false
    }
    return false
}
