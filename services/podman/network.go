package podman

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/containerd/errdefs"
	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
)

type networkResource struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Driver string            `json:"driver"`
	Labels map[string]string `json:"labels"`
}

type networkCreate struct {
	Name   string            `json:"name"`
	Driver string            `json:"driver"`
	Labels map[string]string `json:"labels,omitempty"`
}

type networkConnect struct {
	Container string   `json:"container"`
	Aliases   []string `json:"aliases,omitempty"`
}

type containerNetworks struct {
	NetworkSettings struct {
		Networks map[string]struct {
			NetworkID string `json:"NetworkID"`
		} `json:"Networks"`
	} `json:"NetworkSettings"`
}

func (b *Backend) LookupNetwork(ctx context.Context, name string) (*models.NetworkHandle, error) {
	var n networkResource
	err := b.api.do(ctx, http.MethodGet, "/libpod/networks/"+url.PathEscape(name)+"/json", nil, nil, &n)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("inspect network %q: %w", name, err)
	}
	return &models.NetworkHandle{ID: n.ID, Name: n.Name}, nil
}

func (b *Backend) CreateNetwork(ctx context.Context, name string, labels map[string]string) error {
	var n networkResource
	req := networkCreate{Name: name, Driver: "bridge", Labels: labels}
	if err := b.api.do(ctx, http.MethodPost, "/libpod/networks/create", nil, req, &n); err != nil {
		return fmt.Errorf("create network %q: %w", name, err)
	}
	b.log.Info().Str("network", name).Str("id", n.ID).Msg("created network")
	return nil
}

// NetworkHasMember inspects the container, since libpod network inspect does
// not list attached containers.
func (b *Backend) NetworkHasMember(ctx context.Context, network models.NetworkHandle, containerID string) (bool, error) {
	var c containerNetworks
	if err := b.api.do(ctx, http.MethodGet, "/libpod/containers/"+url.PathEscape(containerID)+"/json", nil, nil, &c); err != nil {
		return false, fmt.Errorf("inspect container %q: %w", containerID, err)
	}
	for name, ep := range c.NetworkSettings.Networks {
		if name == network.Name || (network.ID != "" && ep.NetworkID == network.ID) {
			return true, nil
		}
	}
	return false, nil
}

func (b *Backend) ConnectNetwork(ctx context.Context, network models.NetworkHandle, containerID string, aliases []string) error {
	req := networkConnect{Container: containerID, Aliases: aliases}
	if err := b.api.do(ctx, http.MethodPost, "/libpod/networks/"+url.PathEscape(network.Name)+"/connect", nil, req, nil); err != nil {
		return fmt.Errorf("connect %q to network %q: %w", containerID, network.Name, err)
	}
	return nil
}

func (b *Backend) RemoveNetwork(ctx context.Context, network models.NetworkHandle) error {
	err := b.api.do(ctx, http.MethodDelete, "/libpod/networks/"+url.PathEscape(network.Name), nil, nil, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove network %q: %w", network.Name, err)
	}
	b.log.Info().Str("network", network.Name).Msg("removed network")
	return nil
}
