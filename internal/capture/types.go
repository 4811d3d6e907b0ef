// Package capture tracks screen-capture permission grants and the lifecycle
// of the single capture session they authorize.
package capture

import "fmt"

// State of the capture session.
type State int

const (
	StateIdle State = iota
	StatePermissionPending
	StateGranted
	StateActive
	StateDenied
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePermissionPending:
		return "permissionPending"
	case StateGranted:
		return "granted"
	case StateActive:
		return "active"
	case StateDenied:
		return "denied"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Token correlates a permission request with its asynchronous result.
// Tokens increase monotonically per Manager; the first request gets 1.
type Token uint64

// Payload is the platform's opaque grant data needed to acquire the capture resource.
type Payload any

// Grant is an authorization to start one capture session.
type Grant struct {
	Token    Token
	Payload  Payload
	Consumed bool
}

// GrantResult is the platform's answer to a permission request.
type GrantResult struct {
	Granted bool
	Payload Payload
	Reason  string // why the grant was refused, if it was
}

// Resource is the live platform capture handle.
type Resource interface {
	ID() string
	Release() error
}

// Platform is the screen-capture service of the host.
type Platform interface {
	Supported() bool
	// RequestGrant shows the permission dialog. The answer must be delivered
	// later through Manager.OnGrantResult, never from inside RequestGrant.
	RequestGrant(token Token) error
	Acquire(payload Payload) (Resource, error)
}

// Status is what the UI bridge reports for getPermissionStatus.
type Status struct {
	HasPermission bool
	IsActive      bool
}

// Session is a read-only snapshot of the capture session.
type Session struct {
	State        State
	PendingToken Token  // zero unless PermissionPending
	Grant        *Grant // copy of the current grant, if any
	ResourceID   string // set while Active
}

// Outcome describes the most recent state change and its reason.
type Outcome struct {
	State  State
	Reason string
	Token  Token
}
