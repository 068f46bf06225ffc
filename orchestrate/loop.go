package orchestrate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Run drives cycles until ctx is cancelled. Cancellation is cooperative and
// checked only between cycles; a cycle in flight always runs to completion.
// A failed cycle raises exactly one alert and the loop retries after the
// configured backoff instead of terminating.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		wait := o.interval
		if err := o.safeCycle(ctx); err != nil {
			o.logger.Error("cycle failed", zap.Error(err))
			o.alertCycleFailure(ctx, err)
			wait = o.backoff
		}

		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator stopping")
			return
		case <-time.After(wait):
		}
	}
}

// safeCycle runs one cycle and converts a panic into an ordinary cycle
// error, so no single bad cycle can take the process down.
func (o *Orchestrator) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()
	_, err = o.RunCycle(context.WithoutCancel(ctx))
	return err
}

func (o *Orchestrator) alertCycleFailure(ctx context.Context, cause error) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	msg := fmt.Sprintf("decision cycle failed: %v", cause)
	if err := o.notifier.SendAlert(actx, msg, "high"); err != nil {
		o.logger.Error("alert delivery failed", zap.Error(err))
	}
}
