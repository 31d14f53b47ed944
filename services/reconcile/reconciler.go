package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	backends "github.com/ezenkico/deploy-commander/stack-reconciler/interfaces"
	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/ezenkico/deploy-commander/stack-reconciler/services"
	"github.com/ezenkico/deploy-commander/stack-reconciler/services/descriptor"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const cleanupTimeout = 30 * time.Second

// EndpointPublisher makes an endpoint record discoverable by dependents.
type EndpointPublisher interface {
	Publish(ctx context.Context, stack string, record models.EndpointRecord) error
}

type Options struct {
	// Source-of-truth directories. Empty disables synchronization of that kind.
	SecretsDir string
	ConfigsDir string

	StartupTimeout  time.Duration
	PollInterval    time.Duration
	MaxPollInterval time.Duration

	Validator *descriptor.Validator
	Publisher EndpointPublisher
	Recorder  Recorder
	Logger    zerolog.Logger
}

// Reconciler drives one backend. It holds no per-stack state; every call
// works from what the backend reports.
type Reconciler struct {
	backend  backends.Backend
	sync     *Synchronizer
	networks *NetworkManager
	recorder Recorder
	log      zerolog.Logger
	opts     Options
}

func NewReconciler(backend backends.Backend, opts Options) *Reconciler {
	if opts.Validator == nil {
		opts.Validator = descriptor.NewValidator(descriptor.Options{})
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = models.DefaultStartupTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = models.DefaultPollInterval
	}
	if opts.MaxPollInterval < opts.PollInterval {
		opts.MaxPollInterval = opts.PollInterval
	}

	return &Reconciler{
		backend:  backend,
		sync:     NewSynchronizer(backend, opts.Logger.With().Str("component", "sync").Logger(), opts.Recorder),
		networks: NewNetworkManager(backend, opts.Logger.With().Str("component", "network").Logger()),
		recorder: opts.Recorder,
		log:      opts.Logger,
		opts:     opts,
	}
}

func (r *Reconciler) Synchronizer() *Synchronizer { return r.sync }

func (r *Reconciler) Networks() *NetworkManager { return r.networks }

// Reconcile converges the backend to the descriptor and returns the live
// handle of its unit.
func (r *Reconciler) Reconcile(ctx context.Context, stack string, d models.ServiceDescriptor) (handle models.RuntimeHandle, err error) {
	started := time.Now()
	d = d.Clone()
	runID := uuid.NewString()
	log := r.log.With().Str("stack", stack).Str("service", d.Name).Str("run", runID).Logger()

	defer func() {
		r.recorder.RecordReconcile(d.Name, outcome(handle, err), time.Since(started))
		if err != nil {
			log.Error().Err(err).Str("state", string(handle.State)).Msg("reconcile failed")
		}
	}()

	if err := services.ValidateStackName(stack); err != nil {
		return handle, withService(err, d.Name)
	}
	if err := r.opts.Validator.Validate(d); err != nil {
		return handle, err
	}

	if err := r.synchronize(ctx, stack, runID); err != nil {
		return handle, withService(err, d.Name)
	}

	secrets, configs, err := r.resolveRefs(ctx, stack, d)
	if err != nil {
		return handle, withService(err, d.Name)
	}

	network, err := r.networks.EnsureNetwork(ctx, stack)
	if err != nil {
		return handle, models.NewBackendUnavailableError("ensure stack network", err).
			WithService(d.Name).WithOperation("network")
	}

	handle = models.RuntimeHandle{
		UnitName: services.UnitName(stack, d.Name),
		Hostname: d.Name,
		Network:  network.Name,
	}

	r.transition(log, &handle, models.UnitStatePulling)
	if err := r.backend.EnsureImage(ctx, d.Image); err != nil {
		r.transition(log, &handle, models.UnitStateFailed)
		return handle, models.NewBackendUnavailableError(fmt.Sprintf("pull image %s", d.Image), err).
			WithService(d.Name).WithOperation("pull")
	}

	specDigest, err := services.SpecDigest(stack, d)
	if err != nil {
		r.transition(log, &handle, models.UnitStateFailed)
		return handle, models.NewValidationError("digest descriptor", err).WithService(d.Name)
	}

	reused, err := r.reuseExisting(ctx, log, &handle, specDigest)
	if err != nil {
		r.transition(log, &handle, models.UnitStateFailed)
		return handle, models.NewBackendUnavailableError("inspect existing unit", err).
			WithService(d.Name).WithOperation("lookup")
	}

	if !reused {
		spec := models.UnitSpec{
			Stack:      stack,
			Name:       handle.UnitName,
			Hostname:   d.Name,
			Descriptor: d,
			Network:    network,
			Secrets:    secrets,
			Configs:    configs,
			Labels:     services.UnitLabels(stack, d.Name, runID, specDigest, d.Labels),
			SpecDigest: specDigest,
		}

		r.transition(log, &handle, models.UnitStateCreating)
		unitID, err := r.backend.CreateOrReplaceUnit(ctx, spec)
		if err != nil {
			r.cleanup(ctx, log, handle.UnitName)
			r.transition(log, &handle, models.UnitStateFailed)
			return handle, models.NewBackendUnavailableError("create unit", err).
				WithService(d.Name).WithOperation("create")
		}
		handle.UnitID = unitID

		r.transition(log, &handle, models.UnitStateStarting)
		status, err := r.waitForStartup(ctx, d.Name, handle.UnitName)
		if err != nil {
			r.cleanup(ctx, log, handle.UnitName)
			r.transition(log, &handle, models.UnitStateFailed)
			return handle, withService(err, d.Name)
		}

		handle.ContainerID = status.ContainerID
		handle.Exited = status.Phase == models.UnitPhaseExited

		if !handle.Exited {
			if err := r.runPostStart(ctx, log, handle.ContainerID, d.PostStart); err != nil {
				r.cleanup(ctx, log, handle.UnitName)
				r.transition(log, &handle, models.UnitStateFailed)
				return handle, withService(err, d.Name)
			}
		}
		r.transition(log, &handle, models.UnitStateRunning)
	}

	if !handle.Exited && handle.ContainerID != "" {
		if err := r.networks.AttachToNetwork(ctx, network, handle.ContainerID, []string{d.Name}); err != nil {
			return handle, models.NewBackendUnavailableError("attach to stack network", err).
				WithService(d.Name).WithOperation("network")
		}
	}

	if r.opts.Publisher != nil {
		for _, record := range d.Endpoints {
			if err := r.opts.Publisher.Publish(ctx, stack, record); err != nil {
				return handle, models.NewConvergenceFailureError(fmt.Sprintf("publish endpoint %q", record.Name), err).
					WithService(d.Name).WithOperation("publish")
			}
		}
	}

	log.Info().
		Str("unit", handle.UnitName).
		Str("container", handle.ContainerID).
		Bool("exited", handle.Exited).
		Bool("reused", reused).
		Msg("reconciled")
	return handle, nil
}

func (r *Reconciler) synchronize(ctx context.Context, stack, runID string) error {
	dirs := []struct {
		kind models.ObjectKind
		dir  string
	}{
		{models.ObjectKindSecret, r.opts.SecretsDir},
		{models.ObjectKindConfig, r.opts.ConfigsDir},
	}

	for _, s := range dirs {
		if s.dir == "" {
			continue
		}
		if _, err := r.sync.synchronize(ctx, stack, s.kind, s.dir, runID); err != nil {
			return err
		}
	}
	return nil
}

// resolveRefs binds every referenced secret and config to its backend object.
// A missing object is a validation error and nothing has been created yet.
func (r *Reconciler) resolveRefs(ctx context.Context, stack string, d models.ServiceDescriptor) (secrets, configs []models.ResolvedObjectRef, err error) {
	resolve := func(kind models.ObjectKind, refs []models.ObjectRef) ([]models.ResolvedObjectRef, error) {
		if len(refs) == 0 {
			return nil, nil
		}
		listed, err := r.backend.ListNamedObjects(ctx, kind, services.StackPrefix(stack))
		if err != nil {
			return nil, models.NewBackendUnavailableError(fmt.Sprintf("list %ss", kind), err).WithOperation("verify")
		}
		remote := listed[:0:0]
		for _, obj := range listed {
			if services.OwnedBy(stack, obj) {
				remote = append(remote, obj)
			}
		}
		resolved, missing := services.ResolveObjectRefs(stack, refs, remote)
		if len(missing) > 0 {
			return nil, models.NewValidationError(fmt.Sprintf("referenced %s %q does not exist", kind, missing[0]), nil).
				WithOperation("verify")
		}
		return resolved, nil
	}

	if secrets, err = resolve(models.ObjectKindSecret, d.Secrets); err != nil {
		return nil, nil, err
	}
	if configs, err = resolve(models.ObjectKindConfig, d.Configs); err != nil {
		return nil, nil, err
	}
	return secrets, configs, nil
}

// reuseExisting keeps a running unit built from the same descriptor.
func (r *Reconciler) reuseExisting(ctx context.Context, log zerolog.Logger, handle *models.RuntimeHandle, specDigest string) (bool, error) {
	unit, err := r.backend.FindUnit(ctx, handle.UnitName)
	if err != nil || unit == nil {
		return false, err
	}
	if unit.Labels[services.LabelSpecDigest] != specDigest {
		log.Info().Str("unit", handle.UnitName).Msg("descriptor changed; unit will be recreated")
		return false, nil
	}

	status, err := r.backend.GetUnitState(ctx, handle.UnitName)
	if err != nil {
		return false, err
	}
	if status.Phase != models.UnitPhaseRunning {
		return false, nil
	}

	handle.UnitID = unit.ID
	handle.ContainerID = status.ContainerID
	if handle.ContainerID == "" {
		handle.ContainerID = unit.ContainerID
	}
	r.transition(log, handle, models.UnitStateRunning)
	return true, nil
}

// runPostStart runs each hook in the new container and stops at the first
// that cannot run or exits non-zero.
func (r *Reconciler) runPostStart(ctx context.Context, log zerolog.Logger, containerID string, hooks [][]string) error {
	for i, cmd := range hooks {
		res, err := r.backend.ExecInUnit(ctx, containerID, cmd)
		if err != nil {
			return models.NewBackendUnavailableError(fmt.Sprintf("run post-start hook %d", i), err).
				WithOperation("post-start")
		}
		if res.ExitCode != 0 {
			msg := strings.TrimSpace(res.Stderr)
			if msg == "" {
				msg = strings.TrimSpace(res.Stdout)
			}
			return models.NewStartupFailureError(
				fmt.Sprintf("post-start hook %d %q exited %d: %s", i, strings.Join(cmd, " "), res.ExitCode, msg), nil).
				WithOperation("post-start")
		}
		log.Debug().Int("hook", i).Strs("cmd", cmd).Msg("post-start hook done")
	}
	return nil
}

// cleanup removes a partially created unit. It runs even when ctx is done.
func (r *Reconciler) cleanup(ctx context.Context, log zerolog.Logger, unitName string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := r.backend.RemoveUnit(ctx, unitName); err != nil {
		log.Warn().Err(err).Str("unit", unitName).Msg("cleanup failed")
		return
	}
	log.Info().Str("unit", unitName).Msg("removed failed unit")
}

func (r *Reconciler) transition(log zerolog.Logger, handle *models.RuntimeHandle, to models.UnitState) {
	from := handle.State
	if err := handle.Transition(to); err != nil {
		log.Warn().Err(err).Msg("ignored state transition")
		return
	}
	log.Debug().Str("from", string(from)).Str("to", string(to)).Msg("state")
}

func withService(err error, service string) error {
	if re, ok := err.(*models.ReconcileError); ok && re.Service == "" {
		return re.WithService(service)
	}
	return err
}

func outcome(handle models.RuntimeHandle, err error) string {
	if err != nil {
		if kind := models.KindOf(err); kind != "" {
			return string(kind)
		}
		return "error"
	}
	if handle.Exited {
		return "exited"
	}
	return "running"
}
