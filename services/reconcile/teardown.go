package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/ezenkico/deploy-commander/stack-reconciler/services"
)

// networkRemoveWindow bounds retries while units release their endpoints.
const networkRemoveWindow = 30 * time.Second

type TeardownResult struct {
	Units   []string
	Secrets []string
	Configs []string
	Network bool
}

// Teardown removes everything the stack owns: units first, then named objects
// of both kinds, then the stack network. Absent resources are skipped.
func (r *Reconciler) Teardown(ctx context.Context, stack string) (TeardownResult, error) {
	var result TeardownResult
	if err := services.ValidateStackName(stack); err != nil {
		return result, err
	}
	log := r.log.With().Str("stack", stack).Logger()

	units, err := r.backend.ListUnits(ctx, stack)
	if err != nil {
		return result, models.NewBackendUnavailableError("list stack units", err).WithOperation("teardown")
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Name < units[j].Name })

	for _, u := range units {
		if err := r.backend.RemoveUnit(ctx, u.Name); err != nil {
			return result, models.NewBackendUnavailableError(fmt.Sprintf("remove unit %s", u.Name), err).
				WithOperation("teardown")
		}
		result.Units = append(result.Units, u.Name)
	}

	for _, kind := range []models.ObjectKind{models.ObjectKindSecret, models.ObjectKindConfig} {
		removed, err := r.removeObjects(ctx, stack, kind)
		if err != nil {
			return result, err
		}
		if kind == models.ObjectKindSecret {
			result.Secrets = removed
		} else {
			result.Configs = removed
		}
	}

	removed, err := r.removeNetwork(ctx, stack)
	if err != nil {
		return result, models.NewBackendUnavailableError("remove stack network", err).WithOperation("teardown")
	}
	result.Network = removed

	log.Info().
		Int("units", len(result.Units)).
		Int("secrets", len(result.Secrets)).
		Int("configs", len(result.Configs)).
		Bool("network", result.Network).
		Msg("stack torn down")
	return result, nil
}

func (r *Reconciler) removeObjects(ctx context.Context, stack string, kind models.ObjectKind) ([]string, error) {
	objects, err := r.backend.ListNamedObjects(ctx, kind, services.StackPrefix(stack))
	if err != nil {
		return nil, models.NewBackendUnavailableError(fmt.Sprintf("list %ss", kind), err).WithOperation("teardown")
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })

	var removed []string
	for _, obj := range objects {
		if !services.OwnedBy(stack, obj) {
			continue
		}
		if err := r.backend.RemoveNamedObject(ctx, kind, obj); err != nil {
			return removed, models.NewBackendUnavailableError(fmt.Sprintf("remove %s %s", kind, obj.Name), err).
				WithOperation("teardown")
		}
		r.recorder.RecordNamedObjectOp(kind, "remove")
		removed = append(removed, obj.Name)
	}
	return removed, nil
}

// removeNetwork retries for a while since a network stays in use until the
// removed units have released their endpoints.
func (r *Reconciler) removeNetwork(ctx context.Context, stack string) (bool, error) {
	network, err := r.backend.LookupNetwork(ctx, services.NetworkName(stack))
	if err != nil || network == nil {
		return false, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.opts.PollInterval
	bo.MaxInterval = r.opts.MaxPollInterval

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, r.backend.RemoveNetwork(ctx, *network)
	}, backoff.WithBackOff(bo), backoff.WithMaxElapsedTime(networkRemoveWindow))
	if err != nil {
		return false, err
	}
	return true, nil
}
