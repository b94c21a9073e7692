// Package fixture provides the reference waPC guest used to validate host
// runtimes: an echo handler demonstrating a pass-through success with a
// discarded nested host call, and a handler that always fails.
package fixture

import (
	"errors"

	"github.com/wippyai/wapc-runtime/guest"
)

// Host call address used by the echo handler.
const (
	Binding   = "wapc"
	Namespace = "testing"
	Operation = "echo"
)

// PlannedFailureMessage is the exact error text the nope handler reports.
const PlannedFailureMessage = "Planned Failure"

// Register installs the echo and nope handlers into r. It is the guest's
// initialization entry point and may run more than once; later registrations
// overwrite earlier ones.
func Register(r *guest.Registry) {
	r.RegisterFunctions(guest.Functions{
		"echo": echo(r.Bridge()),
		"nope": nope,
	})
}

// echo calls back into the host once, ignores the outcome, and returns the
// payload unchanged. A failed host call is deliberately inert here: the
// handler still reports its own success.
func echo(bridge guest.HostCaller) guest.Function {
	return func(payload []byte) ([]byte, error) {
		_, _ = bridge.HostCall(Binding, Namespace, Operation, payload)
		return payload, nil
	}
}

// nope ignores its payload and always fails.
func nope(payload []byte) ([]byte, error) {
	return nil, errors.New(PlannedFailureMessage)
}
