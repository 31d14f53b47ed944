package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
)

// waitForStartup polls the unit with exponential backoff until it runs,
// exits, fails, or the startup deadline passes. A backend error while the
// deadline is still open ends polling at once.
func (r *Reconciler) waitForStartup(ctx context.Context, service, unitName string) (models.UnitStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.StartupTimeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.PollInterval
	b.MaxInterval = r.opts.MaxPollInterval

	var (
		lastErr   error
		lastState = "unknown"
	)
	op := func() (models.UnitStatus, error) {
		r.recorder.RecordPollAttempt(service)

		status, err := r.backend.GetUnitState(ctx, unitName)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return status, err
			}
			return status, backoff.Permanent(models.NewBackendUnavailableError(
				fmt.Sprintf("read state of unit %s", unitName), err).WithOperation("poll"))
		}
		lastErr = nil
		lastState = status.State

		switch status.Phase {
		case models.UnitPhaseRunning, models.UnitPhaseExited:
			return status, nil
		case models.UnitPhaseFailed:
			msg := status.Message
			if msg == "" {
				msg = status.State
			}
			return status, backoff.Permanent(models.NewStartupFailureError(msg, nil))
		default:
			return status, models.NewNotReadyError(fmt.Sprintf("unit %s is %s", unitName, status.State))
		}
	}

	status, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(r.opts.StartupTimeout))
	if err == nil {
		return status, nil
	}

	var stopErr *models.ReconcileError
	if errors.As(err, &stopErr) {
		switch stopErr.Kind {
		case models.ErrorKindStartupFailure, models.ErrorKindBackendUnavailable:
			return status, stopErr
		}
	}

	// The not-ready signal stays internal; only the last observation surfaces.
	cause := lastErr
	if cause == nil {
		cause = fmt.Errorf("last observed state %s", lastState)
	}
	if cerr := context.Cause(ctx); cerr != nil && !errors.Is(cause, cerr) {
		cause = fmt.Errorf("%w: %w", cerr, cause)
	}
	return status, models.NewTimeoutError(
		fmt.Sprintf("unit %s not ready within %s", unitName, r.opts.StartupTimeout), cause)
}
