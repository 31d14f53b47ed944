package swarm

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/ezenkico/deploy-commander/stack-reconciler/services"

	"github.com/moby/moby/api/types/swarm"
	"github.com/moby/moby/client"
)

func (b *Backend) findService(ctx context.Context, unitName string) (*swarm.Service, error) {
	// The name filter matches prefixes, so compare exactly.
	list, err := b.client.ServiceList(ctx, client.ServiceListOptions{
		Filters: make(client.Filters).Add("name", unitName),
	})
	if err != nil {
		return nil, fmt.Errorf("list services %q: %w", unitName, err)
	}
	for i := range list.Items {
		if list.Items[i].Spec.Name == unitName {
			return &list.Items[i], nil
		}
	}
	return nil, nil
}

func (b *Backend) tasks(ctx context.Context, unitName string) ([]swarm.Task, error) {
	list, err := b.client.TaskList(ctx, client.TaskListOptions{
		Filters: make(client.Filters).Add("service", unitName),
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks of %q: %w", unitName, err)
	}
	return list.Items, nil
}

func (b *Backend) FindUnit(ctx context.Context, unitName string) (*models.Unit, error) {
	svc, err := b.findService(ctx, unitName)
	if err != nil || svc == nil {
		return nil, err
	}

	unit := &models.Unit{
		ID:     svc.ID,
		Name:   svc.Spec.Name,
		Labels: svc.Spec.Labels,
	}

	tasks, err := b.tasks(ctx, unitName)
	if err != nil {
		return nil, err
	}
	unit.ContainerID = taskStatus(latestTask(tasks)).ContainerID
	return unit, nil
}

// CreateOrReplaceUnit removes any service of the same name and creates a new
// one. Services are never updated in place.
func (b *Backend) CreateOrReplaceUnit(ctx context.Context, spec models.UnitSpec) (string, error) {
	if err := b.RemoveUnit(ctx, spec.Name); err != nil {
		return "", err
	}

	created, err := b.client.ServiceCreate(ctx, client.ServiceCreateOptions{
		Spec: serviceSpec(spec),
	})
	if err != nil {
		return "", fmt.Errorf("create service %q: %w", spec.Name, err)
	}

	b.log.Info().Str("service", spec.Name).Str("id", created.ID).Msg("created service")
	return created.ID, nil
}

func (b *Backend) GetUnitState(ctx context.Context, unitName string) (models.UnitStatus, error) {
	tasks, err := b.tasks(ctx, unitName)
	if err != nil {
		return models.UnitStatus{}, err
	}
	return taskStatus(latestTask(tasks)), nil
}

func (b *Backend) RemoveUnit(ctx context.Context, unitName string) error {
	if _, err := b.client.ServiceRemove(ctx, unitName, client.ServiceRemoveOptions{}); err != nil {
		// If it was already gone, that's fine.
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove service %q: %w", unitName, err)
	}
	b.log.Info().Str("service", unitName).Msg("removed service")
	return nil
}

func (b *Backend) ListUnits(ctx context.Context, stack string) ([]models.Unit, error) {
	list, err := b.client.ServiceList(ctx, client.ServiceListOptions{
		Filters: make(client.Filters).Add("label", services.LabelStack+"="+stack),
	})
	if err != nil {
		return nil, fmt.Errorf("list stack services (stack=%s): %w", stack, err)
	}

	units := make([]models.Unit, 0, len(list.Items))
	for _, svc := range list.Items {
		units = append(units, models.Unit{
			ID:     svc.ID,
			Name:   svc.Spec.Name,
			Labels: svc.Spec.Labels,
		})
	}
	return units, nil
}
