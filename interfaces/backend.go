package backends

import (
	"context"

	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
)

// Backend is the narrow surface the reconciler drives. The swarm and podman
// implementations share nothing but this interface.
type Backend interface {
	Name() string

	// Initialise prepares the backend for use (swarm init, service ping).
	Initialise(ctx context.Context) error

	// EnsureImage makes the image available locally, pulling when absent.
	EnsureImage(ctx context.Context, ref string) error

	// FindUnit returns nil, nil when no unit with that name exists.
	FindUnit(ctx context.Context, unitName string) (*models.Unit, error)
	CreateOrReplaceUnit(ctx context.Context, spec models.UnitSpec) (string, error)
	GetUnitState(ctx context.Context, unitName string) (models.UnitStatus, error)
	// RemoveUnit succeeds when the unit is already absent.
	RemoveUnit(ctx context.Context, unitName string) error
	// ListUnits returns every unit labelled with the stack.
	ListUnits(ctx context.Context, stack string) ([]models.Unit, error)

	// LookupNetwork returns nil, nil when the network does not exist.
	LookupNetwork(ctx context.Context, name string) (*models.NetworkHandle, error)
	CreateNetwork(ctx context.Context, name string, labels map[string]string) error
	NetworkHasMember(ctx context.Context, network models.NetworkHandle, containerID string) (bool, error)
	ConnectNetwork(ctx context.Context, network models.NetworkHandle, containerID string, aliases []string) error
	// RemoveNetwork succeeds when the network is already absent.
	RemoveNetwork(ctx context.Context, network models.NetworkHandle) error

	ListNamedObjects(ctx context.Context, kind models.ObjectKind, prefix string) ([]models.NamedObject, error)
	// AddNamedObject succeeds when an object with that name already exists.
	AddNamedObject(ctx context.Context, kind models.ObjectKind, name string, data []byte, labels map[string]string) error
	// RemoveNamedObject succeeds when the object is already absent.
	RemoveNamedObject(ctx context.Context, kind models.ObjectKind, obj models.NamedObject) error

	ExecInUnit(ctx context.Context, containerID string, cmd []string) (models.ExecResult, error)
}
