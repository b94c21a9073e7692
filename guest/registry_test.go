package guest

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/wippyai/wapc-runtime/errors"
)

func TestRegistry_Invoke(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("upper", func(payload []byte) ([]byte, error) {
		out := make([]byte, len(payload))
		for i, c := range payload {
			if c >= 'a' && c <= 'z' {
				c -= 'a' - 'A'
			}
			out[i] = c
		}
		return out, nil
	})

	resp, err := r.Invoke("upper", []byte("hello"))
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if string(resp) != "HELLO" {
		t.Errorf("got %q, want %q", resp, "HELLO")
	}
}

func TestRegistry_InvokeUnregistered(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Invoke("404", []byte("payload"))
	if err == nil {
		t.Fatal("expected error for unregistered operation")
	}
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseInvoke, Kind: errors.KindNotFound}) {
		t.Errorf("expected not_found error, got %v", err)
	}
}

func TestRegistry_LastWriteWins(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("op", func([]byte) ([]byte, error) { return []byte("first"), nil })
	r.Register("op", func([]byte) ([]byte, error) { return []byte("second"), nil })

	if r.Len() != 1 {
		t.Fatalf("expected 1 entry after re-registration, got %d", r.Len())
	}

	resp, err := r.Invoke("op", nil)
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if string(resp) != "second" {
		t.Errorf("got %q, want the later handler's response", resp)
	}
}

func TestRegistry_RegisterFunctions(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterFunctions(Functions{
		"a": func([]byte) ([]byte, error) { return nil, nil },
		"b": func([]byte) ([]byte, error) { return nil, nil },
	})

	if got := r.Names(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Names() = %v, want [a b]", got)
	}
}

func TestRegistry_BridgeDefault(t *testing.T) {
	r := NewRegistry(nil)

	resp, err := r.Bridge().HostCall("wapc", "testing", "echo", []byte("x"))
	if err != nil {
		t.Fatalf("NoOpHostCaller error: %v", err)
	}
	if len(resp) != 0 {
		t.Errorf("expected empty response, got %q", resp)
	}
}

func TestRegistry_BridgeReachesHost(t *testing.T) {
	var gotOp string
	bridge := HostCallerFunc(func(binding, namespace, operation string, payload []byte) ([]byte, error) {
		gotOp = binding + "/" + namespace + "/" + operation
		return payload, nil
	})

	r := NewRegistry(bridge)
	r.Register("relay", func(payload []byte) ([]byte, error) {
		return r.Bridge().HostCall("wapc", "testing", "relay", payload)
	})

	resp, err := r.Invoke("relay", []byte("ping"))
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if string(resp) != "ping" {
		t.Errorf("got %q, want relayed payload", resp)
	}
	if gotOp != "wapc/testing/relay" {
		t.Errorf("host saw %q, want wapc/testing/relay", gotOp)
	}
}

func TestRegistry_HandlerErrorPropagates(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("fail", func([]byte) ([]byte, error) {
		return nil, fmt.Errorf("handler exploded")
	})

	_, err := r.Invoke("fail", nil)
	if err == nil || err.Error() != "handler exploded" {
		t.Errorf("got %v, want handler's own error", err)
	}
}
