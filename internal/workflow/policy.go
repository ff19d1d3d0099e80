package workflow

import "strings"

// Role is the authority class of the caller requesting a transition.
type Role string

const (
	RoleApplicant Role = "applicant"
	RolePCCAdmin  Role = "pccAdmin"
	RoleDirector  Role = "director"
)

// ParseRole normalizes the spellings seen in tokens and headers.
// Unrecognized input maps to "" which carries no authority.
func ParseRole(raw string) Role {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	switch key {
	case "applicant", "student", "faculty":
		return RoleApplicant
	case "pccadmin", "admin":
		return RolePCCAdmin
	case "director":
		return RoleDirector
	default:
		return ""
	}
}

// IsAdmin reports whether the role may move applications between statuses.
func (r Role) IsAdmin() bool {
	return r == RolePCCAdmin || r == RoleDirector
}

// Reason is the machine-readable cause of a denied transition.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonNotAdjacent      Reason = "NOT_ADJACENT"
	ReasonTerminalLocked   Reason = "TERMINAL_LOCKED"
	ReasonUnauthorizedRole Reason = "UNAUTHORIZED_ROLE"
	ReasonUnknownStatus    Reason = "UNKNOWN_STATUS"
	ReasonOutcomeRequired  Reason = "OUTCOME_REQUIRED"
)

// Direction describes an allowed move.
type Direction string

const (
	DirectionNone     Direction = ""
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
	DirectionReject   Direction = "reject"
)

// Decision is the result of evaluating a transition request.
type Decision struct {
	Allowed   bool
	NoOp      bool
	Reason    Reason
	Direction Direction
}

func allow(d Direction) Decision { return Decision{Allowed: true, Direction: d} }

func deny(r Reason) Decision { return Decision{Reason: r} }

// Evaluate decides whether role may move an application from one status to
// another. It has no side effects.
func Evaluate(from, to Status, role Role) Decision {
	fromEntry, okFrom := byName[from]
	toEntry, okTo := byName[to]
	if !okFrom || !okTo {
		return deny(ReasonUnknownStatus)
	}
	if !role.IsAdmin() {
		return deny(ReasonUnauthorizedRole)
	}
	if from == to {
		return Decision{Allowed: true, NoOp: true}
	}
	if fromEntry.Terminal {
		return deny(ReasonTerminalLocked)
	}
	if toEntry.Kind == KindException {
		return allow(DirectionReject)
	}
	switch toEntry.Step - fromEntry.Step {
	case 1:
		return allow(DirectionForward)
	case -1:
		return allow(DirectionBackward)
	default:
		return deny(ReasonNotAdjacent)
	}
}
