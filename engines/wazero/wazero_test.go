package wazero

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	wapcruntime "github.com/wippyai/wapc-runtime"
	"github.com/wippyai/wapc-runtime/errors"
	"github.com/wippyai/wapc-runtime/internal/guestwasm"
)

var ctx = context.Background()

func TestEngine_Name(t *testing.T) {
	if got := Engine().Name(); got != "wazero" {
		t.Errorf("Name() = %q, want wazero", got)
	}
}

func TestEngine_BadBytes(t *testing.T) {
	code := []byte("Do not do this at home kids")

	_, err := Engine().New(ctx, code, wapcruntime.NoOpHostCallHandler)
	if err == nil {
		t.Fatal("expected error when creating module with invalid wasm")
	}
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindInvalidBinary}) {
		t.Errorf("got %v, want invalid_binary load error", err)
	}
}

func TestEngine_MissingGuestCall(t *testing.T) {
	// A valid module without the required __guest_call export.
	b := guestwasm.NewBuilder()
	t0 := b.AddType(nil, nil)
	fn := b.AddFunc(t0, guestwasm.NewCode(0).Finish())
	b.ExportFunc("noop", fn)

	m, err := Engine().New(ctx, b.Encode(), wapcruntime.NoOpHostCallHandler)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer m.Close(ctx)

	_, err = m.Instantiate(ctx)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseInstantiate, Kind: errors.KindMissingExport}) {
		t.Errorf("got %v, want missing_export error", err)
	}
}

func TestModule_Fixture(t *testing.T) {
	code := guestwasm.Fixture()

	callbackCh := make(chan []byte, 2)
	m, err := Engine().New(ctx, code, func(ctx context.Context, binding, namespace, operation string, payload []byte) ([]byte, error) {
		if binding != "wapc" || namespace != "testing" || operation != "echo" {
			t.Errorf("host call addressed (%s, %s, %s)", binding, namespace, operation)
		}
		callbackCh <- payload
		return []byte(""), nil
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer m.Close(ctx)

	m.SetLogger(wapcruntime.Println)
	m.SetWriter(wapcruntime.Print)

	i, err := m.Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate error: %v", err)
	}
	defer i.Close(ctx)

	t.Run("Call Successful Function", func(t *testing.T) {
		payload := []byte("Testing")

		r, err := i.Invoke(ctx, "echo", payload)
		if err != nil {
			t.Fatalf("Invoke error: %v", err)
		}
		if !bytes.Equal(r, payload) {
			t.Errorf("got %q, want %q", r, payload)
		}

		select {
		case got := <-callbackCh:
			if !bytes.Equal(got, payload) {
				t.Errorf("host call payload %q, want %q", got, payload)
			}
		default:
			t.Error("host call handler was not invoked")
		}
	})

	t.Run("Call With Empty Payload", func(t *testing.T) {
		r, err := i.Invoke(ctx, "echo", []byte{})
		if err != nil {
			t.Fatalf("Invoke error: %v", err)
		}
		if len(r) != 0 {
			t.Errorf("got %q, want empty", r)
		}
		<-callbackCh
	})

	t.Run("Call Failing Function", func(t *testing.T) {
		_, err := i.Invoke(ctx, "nope", []byte("Testing"))
		if err == nil {
			t.Fatal("expected error when calling failing function")
		}
		if msg, ok := errors.GuestMessage(err); !ok || msg != "Planned Failure" {
			t.Errorf("got %v, want guest fault with message Planned Failure", err)
		}
	})

	t.Run("Call Unregistered Function", func(t *testing.T) {
		_, err := i.Invoke(ctx, "404", []byte("Testing"))
		if err == nil {
			t.Fatal("expected error when calling unregistered function")
		}
		if msg, ok := errors.GuestMessage(err); !ok || msg != "Could not find function" {
			t.Errorf("got %v, want guest fault for unknown operation", err)
		}
	})
}

func TestModule_HostFailureIsInert(t *testing.T) {
	code := guestwasm.Fixture()

	m, err := Engine().New(ctx, code, func(ctx context.Context, binding, namespace, operation string, payload []byte) ([]byte, error) {
		return nil, fmt.Errorf("host is down")
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer m.Close(ctx)

	i, err := m.Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate error: %v", err)
	}
	defer i.Close(ctx)

	payload := []byte("hello")
	r, err := i.Invoke(ctx, "echo", payload)
	if err != nil {
		t.Fatalf("echo must succeed despite host failure, got %v", err)
	}
	if !bytes.Equal(r, payload) {
		t.Errorf("got %q, want %q", r, payload)
	}
}

func TestModule_MemorySize(t *testing.T) {
	m, err := Engine().New(ctx, guestwasm.Fixture(), wapcruntime.NoOpHostCallHandler)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer m.Close(ctx)

	i, err := m.Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate error: %v", err)
	}
	defer i.Close(ctx)

	// One page. Catches implementations that confuse pages with bytes.
	if got := i.MemorySize(); got != 65536 {
		t.Errorf("MemorySize() = %d, want 65536", got)
	}
}

func TestModule_ClosedInstance(t *testing.T) {
	m, err := Engine().New(ctx, guestwasm.Fixture(), wapcruntime.NoOpHostCallHandler)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer m.Close(ctx)

	i, err := m.Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate error: %v", err)
	}
	i.Close(ctx)

	_, err = i.Invoke(ctx, "echo", []byte("Testing"))
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseInvoke, Kind: errors.KindClosed}) {
		t.Errorf("got %v, want closed error", err)
	}
}

func TestModule_ClosedModule(t *testing.T) {
	m, err := Engine().New(ctx, guestwasm.Fixture(), wapcruntime.NoOpHostCallHandler)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	m.Close(ctx)

	if _, err := m.Instantiate(ctx); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseInstantiate, Kind: errors.KindClosed}) {
		t.Errorf("got %v, want closed error", err)
	}

	// Close is idempotent.
	if err := m.Close(ctx); err != nil {
		t.Errorf("second Close error: %v", err)
	}
}

func TestModule_MultipleInstances(t *testing.T) {
	m, err := Engine().New(ctx, guestwasm.Fixture(), wapcruntime.NoOpHostCallHandler)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer m.Close(ctx)

	for n := 0; n < 3; n++ {
		i, err := m.Instantiate(ctx)
		if err != nil {
			t.Fatalf("Instantiate #%d error: %v", n, err)
		}

		payload := []byte{byte('a' + n)}
		r, err := i.Invoke(ctx, "echo", payload)
		if err != nil {
			t.Fatalf("Invoke #%d error: %v", n, err)
		}
		if !bytes.Equal(r, payload) {
			t.Errorf("instance %d: got %q, want %q", n, r, payload)
		}
		i.Close(ctx)
	}
}

func TestEngineWithConfig_MemoryLimit(t *testing.T) {
	// The fixture needs one page; a one-page limit must still instantiate.
	m, err := EngineWithConfig(&Config{MemoryLimitPages: 1}).New(ctx, guestwasm.Fixture(), wapcruntime.NoOpHostCallHandler)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer m.Close(ctx)

	i, err := m.Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate error: %v", err)
	}
	defer i.Close(ctx)

	if got := i.MemorySize(); got != 65536 {
		t.Errorf("MemorySize() = %d, want one page", got)
	}
}
