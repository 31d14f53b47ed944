package reconcile

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/containerd/errdefs"
	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/ezenkico/deploy-commander/stack-reconciler/services"
)

type fakeUnit struct {
	unit  models.Unit
	spec  models.UnitSpec
	polls int
}

type fakeNetwork struct {
	handle  models.NetworkHandle
	members []string
}

// fakeBackend is an in-memory backend recording every mutating call.
type fakeBackend struct {
	mu sync.Mutex

	units    map[string]*fakeUnit
	networks map[string]*fakeNetwork
	objects  map[models.ObjectKind]map[string]models.NamedObject
	data     map[string][]byte

	ops    []string
	nextID int

	// status returns the state reported on the n-th poll of a unit.
	status func(unitName string, poll int) models.UnitStatus

	// exec answers ExecInUnit; nil means exit 0 with no output.
	exec func(containerID string, cmd []string) (models.ExecResult, error)

	pullErr          error
	stateErr         error
	createErr        error
	createNetworkErr error
	connectErr       error
	// removeNetworkErrs is returned by successive RemoveNetwork calls.
	removeNetworkErrs []error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		units:    map[string]*fakeUnit{},
		networks: map[string]*fakeNetwork{},
		objects: map[models.ObjectKind]map[string]models.NamedObject{
			models.ObjectKindSecret: {},
			models.ObjectKindConfig: {},
		},
		data: map[string][]byte{},
		status: func(unitName string, _ int) models.UnitStatus {
			return models.UnitStatus{Phase: models.UnitPhaseRunning, ContainerID: "c-" + unitName, State: "running"}
		},
	}
}

func (f *fakeBackend) record(op string, args ...any) {
	f.ops = append(f.ops, strings.TrimSpace(op+" "+fmt.Sprint(args...)))
}

func (f *fakeBackend) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, op := range f.ops {
		if strings.HasPrefix(op, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeBackend) opsSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.ops)
}

func (f *fakeBackend) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%d", prefix, f.nextID)
}

func (f *fakeBackend) seedObject(kind models.ObjectKind, name string, labels map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[kind][name] = models.NamedObject{ID: f.id("o"), Name: name, Kind: kind, Labels: labels}
}

func (f *fakeBackend) objectNames(kind models.ObjectKind) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Sorted(maps.Keys(f.objects[kind]))
}

func (f *fakeBackend) unit(name string) *fakeUnit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.units[name]
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Initialise(context.Context) error { return nil }

func (f *fakeBackend) EnsureImage(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pullErr
}

func (f *fakeBackend) FindUnit(_ context.Context, unitName string) (*models.Unit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.units[unitName]
	if !ok {
		return nil, nil
	}
	unit := u.unit
	return &unit, nil
}

func (f *fakeBackend) CreateOrReplaceUnit(_ context.Context, spec models.UnitSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.units[spec.Name]; ok {
		delete(f.units, spec.Name)
		f.record("RemoveUnit", spec.Name)
	}
	if f.createErr != nil {
		return "", f.createErr
	}
	id := f.id("u")
	f.units[spec.Name] = &fakeUnit{
		unit: models.Unit{ID: id, Name: spec.Name, Labels: maps.Clone(spec.Labels)},
		spec: spec,
	}
	f.record("CreateUnit", spec.Name)
	return id, nil
}

func (f *fakeBackend) GetUnitState(_ context.Context, unitName string) (models.UnitStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.units[unitName]
	if !ok {
		return models.UnitStatus{}, fmt.Errorf("unit %s: %w", unitName, errdefs.ErrNotFound)
	}
	u.polls++
	if f.stateErr != nil {
		return models.UnitStatus{}, f.stateErr
	}
	return f.status(unitName, u.polls), nil
}

func (f *fakeBackend) RemoveUnit(_ context.Context, unitName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.units[unitName]; ok {
		delete(f.units, unitName)
		f.record("RemoveUnit", unitName)
	}
	return nil
}

func (f *fakeBackend) ListUnits(_ context.Context, stack string) ([]models.Unit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Unit
	for _, u := range f.units {
		if u.unit.Labels[services.LabelStack] == stack {
			out = append(out, u.unit)
		}
	}
	return out, nil
}

func (f *fakeBackend) LookupNetwork(_ context.Context, name string) (*models.NetworkHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.networks[name]
	if !ok {
		return nil, nil
	}
	h := n.handle
	return &h, nil
}

func (f *fakeBackend) CreateNetwork(_ context.Context, name string, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.networks[name]; !ok {
		f.networks[name] = &fakeNetwork{handle: models.NetworkHandle{ID: f.id("n"), Name: name}}
		f.record("CreateNetwork", name)
	}
	return f.createNetworkErr
}

func (f *fakeBackend) NetworkHasMember(_ context.Context, network models.NetworkHandle, containerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.networks[network.Name]
	if !ok {
		return false, errdefs.ErrNotFound
	}
	return slices.Contains(n.members, containerID), nil
}

func (f *fakeBackend) ConnectNetwork(_ context.Context, network models.NetworkHandle, containerID string, _ []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	n := f.networks[network.Name]
	if slices.Contains(n.members, containerID) {
		return fmt.Errorf("endpoint %s: %w", containerID, errdefs.ErrAlreadyExists)
	}
	n.members = append(n.members, containerID)
	f.record("ConnectNetwork", containerID)
	return nil
}

func (f *fakeBackend) RemoveNetwork(_ context.Context, network models.NetworkHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.removeNetworkErrs) > 0 {
		err := f.removeNetworkErrs[0]
		f.removeNetworkErrs = f.removeNetworkErrs[1:]
		if err != nil {
			return err
		}
	}
	if _, ok := f.networks[network.Name]; ok {
		delete(f.networks, network.Name)
		f.record("RemoveNetwork", network.Name)
	}
	return nil
}

func (f *fakeBackend) members(network string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.networks[network].members)
}

func (f *fakeBackend) ListNamedObjects(_ context.Context, kind models.ObjectKind, prefix string) ([]models.NamedObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.NamedObject
	for name, obj := range f.objects[kind] {
		if strings.HasPrefix(name, prefix) {
			out = append(out, obj)
		}
	}
	return out, nil
}

func (f *fakeBackend) AddNamedObject(_ context.Context, kind models.ObjectKind, name string, data []byte, labels map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[kind][name]; ok {
		return nil
	}
	f.objects[kind][name] = models.NamedObject{ID: f.id("o"), Name: name, Kind: kind, Labels: labels}
	f.data[name] = slices.Clone(data)
	f.record("AddNamedObject", name)
	return nil
}

func (f *fakeBackend) RemoveNamedObject(_ context.Context, kind models.ObjectKind, obj models.NamedObject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects[kind], obj.Name)
	f.record("RemoveNamedObject", obj.Name)
	return nil
}

func (f *fakeBackend) ExecInUnit(_ context.Context, containerID string, cmd []string) (models.ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Exec", containerID, " ", strings.Join(cmd, " "))
	if f.exec == nil {
		return models.ExecResult{}, nil
	}
	return f.exec(containerID, cmd)
}

type fakePublisher struct {
	mu        sync.Mutex
	published []models.EndpointRecord
}

func (p *fakePublisher) Publish(_ context.Context, _ string, record models.EndpointRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, record)
	return nil
}
