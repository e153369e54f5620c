package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vburojevic/qcdash/internal/domain"
)

// LoadCmd runs one load cycle
type LoadCmd struct {
	RecordFilterFlags

	FillDefaults bool   `help:"Use fallback sections for domains that have no records"`
	Timeout      string `help:"Give up waiting after this duration (e.g. 2m). Default waits for the full retry budget"`
	Progress     bool   `help:"Also print the loading state that starts the cycle"`
}

// Run executes the load command
func (c *LoadCmd) Run(globals *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil || d <= 0 {
			return outputErrorCommon(globals, codeInvalidFlag, "invalid --timeout: "+c.Timeout, "Use a positive Go duration such as 90s or 2m")
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	f, err := c.buildFilters()
	if err != nil {
		return outputErrorCommon(globals, codeInvalidFilter, err.Error())
	}

	p, err := buildPipeline(globals, globals.Config, pipelineOptions{filter: f, fillDefaults: c.FillDefaults})
	if err != nil {
		return outputErrorCommon(globals, codeInvalidConfig, err.Error(), hintForConfig(err))
	}
	defer p.Close()

	w := globals.Writer()
	if c.Progress {
		unsubscribe := p.Subscribe(func(s domain.LoadState) {
			if s.IsLoading {
				_ = w.WriteState(s)
			}
		})
		defer unsubscribe()
	}

	state, err := p.Load(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return outputErrorCommon(globals, codeInterrupted, "load did not finish within "+c.Timeout, "Raise --timeout or lower retry.attempts")
		}
		return outputErrorCommon(globals, codeInterrupted, "load interrupted")
	}
	// the loading-state observer must not race the terminal state onto stdout
	p.Close()

	if err := w.WriteState(state); err != nil {
		return err
	}

	if state.Data == nil {
		// the state already carries the message; emit only the hint
		if hint := hintForLoad(state); hint != "" {
			warn(globals, hint)
		}
		return &CLIError{Code: codeLoadFailed, Message: state.ErrorMessage()}
	}
	return nil
}
