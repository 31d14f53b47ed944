package swarm

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/ezenkico/deploy-commander/stack-reconciler/models"

	"github.com/moby/moby/api/types/network"
	"github.com/moby/moby/client"
)

const networkDriver = "overlay"

func (b *Backend) LookupNetwork(ctx context.Context, name string) (*models.NetworkHandle, error) {
	list, err := b.client.NetworkList(ctx, client.NetworkListOptions{
		Filters: make(client.Filters).Add("name", name),
	})
	if err != nil {
		return nil, fmt.Errorf("list networks %q: %w", name, err)
	}
	for _, n := range list.Items {
		if n.Name == name {
			return &models.NetworkHandle{ID: n.ID, Name: n.Name}, nil
		}
	}
	return nil, nil
}

// CreateNetwork creates an attachable overlay network so plain containers,
// not only services, can join it.
func (b *Backend) CreateNetwork(ctx context.Context, name string, labels map[string]string) error {
	_, err := b.client.NetworkCreate(ctx, name, client.NetworkCreateOptions{
		Driver:     networkDriver,
		Attachable: true,
		Labels:     labels,
	})
	if err != nil {
		return fmt.Errorf("create network %q: %w", name, err)
	}
	return nil
}

func (b *Backend) NetworkHasMember(ctx context.Context, n models.NetworkHandle, containerID string) (bool, error) {
	res, err := b.client.NetworkInspect(ctx, n.ID, client.NetworkInspectOptions{})
	if err != nil {
		return false, fmt.Errorf("inspect network %q: %w", n.Name, err)
	}
	if _, ok := res.Network.Containers[containerID]; ok {
		return true, nil
	}
	// Inspect only lists containers on this node; a service task running
	// elsewhere is attached through its network attachments.
	return b.taskAttached(ctx, n, containerID)
}

func (b *Backend) taskAttached(ctx context.Context, n models.NetworkHandle, containerID string) (bool, error) {
	list, err := b.client.TaskList(ctx, client.TaskListOptions{
		Filters: make(client.Filters).Add("desired-state", "running"),
	})
	if err != nil {
		return false, fmt.Errorf("list tasks for network %q: %w", n.Name, err)
	}
	for _, t := range list.Items {
		cs := t.Status.ContainerStatus
		if cs == nil || cs.ContainerID != containerID {
			continue
		}
		for _, a := range t.NetworksAttachments {
			if a.Network.ID == n.ID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (b *Backend) ConnectNetwork(ctx context.Context, n models.NetworkHandle, containerID string, aliases []string) error {
	_, err := b.client.NetworkConnect(ctx, n.ID, client.NetworkConnectOptions{
		Container:      containerID,
		EndpointConfig: &network.EndpointSettings{Aliases: aliases},
	})
	return err
}

func (b *Backend) RemoveNetwork(ctx context.Context, n models.NetworkHandle) error {
	// Prefer removing by ID to avoid name collisions.
	id := n.ID
	if id == "" {
		id = n.Name
	}
	if _, err := b.client.NetworkRemove(ctx, id, client.NetworkRemoveOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove network %q (%s): %w", n.Name, n.ID, err)
	}
	b.log.Info().Str("network", n.Name).Msg("removed network")
	return nil
}
