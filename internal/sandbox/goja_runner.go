package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// GojaRunner executes scripts in-process with a pure-Go JavaScript VM.
// It is used where no external interpreter is installed (CI, offline
// development), mirroring the isolation-free simulation mode other
// environments need for the same reason: exercising the evaluation
// pipeline without provisioning a real sandbox. Scripts must be
// JavaScript and must print their metrics object via console.log as the
// last line, matching the sandbox protocol.
type GojaRunner struct {
	timeout time.Duration
}

// NewGojaRunner builds a GojaRunner with the given wall-clock timeout.
func NewGojaRunner(timeout time.Duration) *GojaRunner {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &GojaRunner{timeout: timeout}
}

// Run executes script in a fresh VM, capturing console.log lines as
// stdout.
func (g *GojaRunner) Run(ctx context.Context, script string) (Result, error) {
	vm := goja.New()

	var out strings.Builder
	console := vm.NewObject()
	_ = console.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = a.String()
		}
		out.WriteString(strings.Join(parts, " "))
		out.WriteByte('\n')
		return goja.Undefined()
	})
	_ = vm.Set("console", console)

	runCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := vm.RunString(script)
		done <- err
	}()

	select {
	case <-runCtx.Done():
		vm.Interrupt("timeout")
		return Result{Stdout: capOutput(out.String()), TimedOut: true}, nil
	case err := <-done:
		if err != nil {
			return Result{Stdout: capOutput(out.String()), Stderr: fmt.Sprintf("%v", err), ExitCode: 1}, nil
		}
		return Result{Stdout: capOutput(out.String())}, nil
	}
}
