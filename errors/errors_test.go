package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want []string
	}{
		{
			name: "phase and kind",
			err:  &Error{Phase: PhaseLoad, Kind: KindInvalidBinary},
			want: []string{"[load]", "invalid_binary"},
		},
		{
			name: "operation quoted",
			err:  Unregistered("frobnicate"),
			want: []string{"[invoke]", "not_found", `"frobnicate"`, "no handler registered"},
		},
		{
			name: "guest fault keeps message verbatim",
			err:  GuestFault("nope", "Planned Failure"),
			want: []string{"guest_fault", "Planned Failure"},
		},
		{
			name: "cause appended",
			err:  InvalidBinary(stderrors.New("magic mismatch")),
			want: []string{"compile guest code", "caused by: magic mismatch"},
		},
		{
			name: "module name",
			err:  MissingExport("3", "__guest_call"),
			want: []string{"module 3", `"__guest_call"`},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := tc.err.Error()
			for _, part := range tc.want {
				if !strings.Contains(msg, part) {
					t.Errorf("message %q missing %q", msg, part)
				}
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Unregistered("echo"))

	if !stderrors.Is(err, &Error{Phase: PhaseInvoke, Kind: KindNotFound}) {
		t.Error("expected match on phase+kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseInvoke, Kind: KindGuestFault}) {
		t.Error("unexpected match on different kind")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := Instantiation("1", cause)

	if !stderrors.Is(err, cause) {
		t.Error("expected unwrap to reach cause")
	}
}

func TestBuilder(t *testing.T) {
	cause := stderrors.New("ring buffer disposed")
	err := New(PhasePool, KindExhausted).
		Module("hello").
		Operation("echo").
		Detail("waited %dms", 250).
		Cause(cause).
		Build()

	if err.Phase != PhasePool || err.Kind != KindExhausted {
		t.Errorf("unexpected phase/kind: %s/%s", err.Phase, err.Kind)
	}
	if err.Detail != "waited 250ms" {
		t.Errorf("unexpected detail: %q", err.Detail)
	}
	if stderrors.Unwrap(err) != cause {
		t.Error("cause not preserved")
	}
}

func TestGuestMessage(t *testing.T) {
	msg, ok := GuestMessage(GuestFault("nope", "Planned Failure"))
	if !ok || msg != "Planned Failure" {
		t.Errorf("got (%q, %v), want (Planned Failure, true)", msg, ok)
	}

	if _, ok := GuestMessage(Unregistered("nope")); ok {
		t.Error("non-fault error should not carry a guest message")
	}

	if _, ok := GuestMessage(stderrors.New("plain")); ok {
		t.Error("plain error should not carry a guest message")
	}
}
