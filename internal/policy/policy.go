package policy

import (
	"strings"

	apperrors "github.com/htverse/apiserver/internal/errors"
	"github.com/htverse/apiserver/types"
)

// Operation describes a category of hackathon operation for policy checks.
type Operation int

const (
	// OpUnspecified represents an invalid operation and is always denied.
	OpUnspecified Operation = iota
	// OpRead covers listing and fetching; no identity is required.
	OpRead
	// OpCreate covers creating a hackathon.
	OpCreate
	// OpUpdate covers editing a hackathon, including its banner.
	OpUpdate
	// OpDelete covers removing a hackathon.
	OpDelete
	// OpRegister covers joining a hackathon.
	OpRegister
	// OpUnregister covers leaving a hackathon.
	OpUnregister
	// OpAdmin covers platform administration endpoints.
	OpAdmin
)

func (op Operation) String() string {
	switch op {
	case OpRead:
		return "read"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpRegister:
		return "register"
	case OpUnregister:
		return "unregister"
	case OpAdmin:
		return "admin"
	default:
		return "unspecified"
	}
}

// Actor is the identity behind a request. The zero value is anonymous.
type Actor struct {
	ID   string
	Role types.Role
}

// Anonymous reports whether the actor carries no identity.
func (a Actor) Anonymous() bool {
	return strings.TrimSpace(a.ID) == ""
}

// Authorize decides whether actor may perform op on a resource owned by
// ownerID. ownerID is ignored for operations without an owner.
func Authorize(op Operation, actor Actor, ownerID string) error {
	if op == OpRead {
		return nil
	}
	if op == OpUnspecified {
		return deny(op, "operation not allowed")
	}
	if actor.Anonymous() {
		return apperrors.New(apperrors.KindUnauthorized, apperrors.CodeUnauthorized, "Not authorized to access this route")
	}

	switch op {
	case OpCreate:
		if actor.Role == types.RoleAdmin || actor.Role == types.RoleOrganizer {
			return nil
		}
		return deny(op, "Not authorized to create hackathon. Admin or organizer role required.")
	case OpUpdate, OpDelete:
		if actor.Role == types.RoleAdmin || (ownerID != "" && actor.ID == ownerID) {
			return nil
		}
		return deny(op, "Not authorized to "+op.String()+" this hackathon")
	case OpRegister, OpUnregister:
		return nil
	case OpAdmin:
		if actor.Role == types.RoleAdmin {
			return nil
		}
		return deny(op, "Admin access required")
	default:
		return deny(op, "operation not allowed")
	}
}

func deny(op Operation, message string) error {
	return apperrors.New(apperrors.KindForbidden, apperrors.CodeForbidden, message).
		WithMetadata("operation", op.String())
}
