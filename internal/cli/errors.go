package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/vburojevic/qcdash/internal/output"
)

// outputErrorCommon normalizes error emission across commands, respecting
// ndjson vs text formats so scripts always get machine-readable failures.
func outputErrorCommon(globals *Globals, code, message string, hint ...string) error {
	h := ""
	if len(hint) > 0 {
		h = hint[0]
	}
	if globals != nil {
		w := globals.Stdout
		if globals.Format != "ndjson" {
			w = globals.Stderr
		}
		if err := output.New(globals.Format, w).WriteError(code, message, h); err != nil {
			fmt.Fprintf(os.Stderr, "Error [%s]: %s\n", code, message)
		}
	}
	return &CLIError{Code: code, Message: message, Hint: h}
}

// outputCLIError emits err when it is a CLIError, otherwise code and
// err's message
func outputCLIError(globals *Globals, code string, err error) error {
	var ce *CLIError
	if errors.As(err, &ce) {
		return outputErrorCommon(globals, ce.Code, ce.Message, ce.Hint)
	}
	return outputErrorCommon(globals, code, err.Error())
}

// warn emits a warning line unless quiet
func warn(globals *Globals, message string) {
	if globals.Quiet {
		return
	}
	w := globals.Stdout
	if globals.Format != "ndjson" {
		w = globals.Stderr
	}
	_ = output.New(globals.Format, w).WriteWarning(message)
}
