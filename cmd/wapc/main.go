package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/term"

	wapcruntime "github.com/wippyai/wapc-runtime"
	"github.com/wippyai/wapc-runtime/engines/wazero"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to waPC guest wasm file")
		operation   = flag.String("operation", "", "Guest operation to invoke")
		payload     = flag.String("payload", "", "Payload string to send")
		payloadFile = flag.String("payload-file", "", "Read payload from file instead of -payload")
		poolSize    = flag.Uint64("pool", 0, "Invoke through a pool of N instances")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Enable engine debug logging")
	)
	flag.Parse()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: wapc -wasm <file.wasm> -operation <name> [-payload string | -payload-file path]")
		fmt.Fprintln(os.Stderr, "       wapc -wasm <file.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer l.Sync()
		wazero.SetLogger(l)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode requires a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*wasmFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *operation == "" {
		fmt.Fprintln(os.Stderr, "Error: -operation is required outside interactive mode")
		os.Exit(1)
	}

	if err := run(*wasmFile, *operation, *payload, *payloadFile, *poolSize); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// hostCall services calls the guest makes back into the host. The CLI has
// no capabilities to offer, so it logs the call and echoes the payload.
func hostCall(ctx context.Context, binding, namespace, operation string, payload []byte) ([]byte, error) {
	fmt.Printf("host call: (%s, %s, %s) %d bytes\n", binding, namespace, operation, len(payload))
	return payload, nil
}

func run(wasmFile, operation, payloadStr, payloadFile string, poolSize uint64) error {
	ctx := context.Background()

	code, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	data := []byte(payloadStr)
	if payloadFile != "" {
		if data, err = os.ReadFile(payloadFile); err != nil {
			return fmt.Errorf("read payload: %w", err)
		}
	}

	module, err := wazero.Engine().New(ctx, code, hostCall)
	if err != nil {
		return fmt.Errorf("load module: %w", err)
	}
	defer module.Close(ctx)

	module.SetLogger(wapcruntime.Println)
	module.SetWriter(wapcruntime.Print)

	var instance wapcruntime.Instance
	if poolSize > 0 {
		pool, err := wapcruntime.NewPool(ctx, module, poolSize)
		if err != nil {
			return fmt.Errorf("create pool: %w", err)
		}
		defer pool.Close(ctx)

		if instance, err = pool.Get(10 * time.Second); err != nil {
			return fmt.Errorf("get instance: %w", err)
		}
		defer pool.Return(instance)
	} else {
		if instance, err = module.Instantiate(ctx); err != nil {
			return fmt.Errorf("instantiate: %w", err)
		}
		defer instance.Close(ctx)
	}

	result, err := instance.Invoke(ctx, operation, data)
	if err != nil {
		return fmt.Errorf("invoke %s: %w", operation, err)
	}

	fmt.Printf("%s\n", result)
	return nil
}

func runInteractive(filename string) error {
	p := tea.NewProgram(newInteractiveModel(filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
