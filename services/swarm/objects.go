package swarm

import (
	"context"
	"fmt"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/ezenkico/deploy-commander/stack-reconciler/models"

	"github.com/moby/moby/api/types/swarm"
	"github.com/moby/moby/client"
)

func (b *Backend) ListNamedObjects(ctx context.Context, kind models.ObjectKind, prefix string) ([]models.NamedObject, error) {
	f := make(client.Filters).Add("name", prefix)
	var out []models.NamedObject

	switch kind {
	case models.ObjectKindSecret:
		list, err := b.client.SecretList(ctx, client.SecretListOptions{Filters: f})
		if err != nil {
			return nil, fmt.Errorf("list secrets: %w", err)
		}
		for _, s := range list.Items {
			out = appendIfPrefixed(out, prefix, models.NamedObject{
				ID: s.ID, Name: s.Spec.Name, Kind: kind, Labels: s.Spec.Labels,
			})
		}
	case models.ObjectKindConfig:
		list, err := b.client.ConfigList(ctx, client.ConfigListOptions{Filters: f})
		if err != nil {
			return nil, fmt.Errorf("list configs: %w", err)
		}
		for _, c := range list.Items {
			out = appendIfPrefixed(out, prefix, models.NamedObject{
				ID: c.ID, Name: c.Spec.Name, Kind: kind, Labels: c.Spec.Labels,
			})
		}
	default:
		return nil, fmt.Errorf("unknown object kind %q", kind)
	}
	return out, nil
}

func appendIfPrefixed(out []models.NamedObject, prefix string, obj models.NamedObject) []models.NamedObject {
	if !strings.HasPrefix(obj.Name, prefix) {
		return out
	}
	return append(out, obj)
}

func (b *Backend) AddNamedObject(ctx context.Context, kind models.ObjectKind, name string, data []byte, labels map[string]string) error {
	annotations := swarm.Annotations{Name: name, Labels: labels}

	var err error
	switch kind {
	case models.ObjectKindSecret:
		_, err = b.client.SecretCreate(ctx, client.SecretCreateOptions{
			Spec: swarm.SecretSpec{Annotations: annotations, Data: data},
		})
	case models.ObjectKindConfig:
		_, err = b.client.ConfigCreate(ctx, client.ConfigCreateOptions{
			Spec: swarm.ConfigSpec{Annotations: annotations, Data: data},
		})
	default:
		return fmt.Errorf("unknown object kind %q", kind)
	}

	if err != nil {
		if errdefs.IsConflict(err) || errdefs.IsAlreadyExists(err) {
			return nil
		}
		return fmt.Errorf("create %s %q: %w", kind, name, err)
	}
	return nil
}

func (b *Backend) RemoveNamedObject(ctx context.Context, kind models.ObjectKind, obj models.NamedObject) error {
	id := obj.ID
	if id == "" {
		id = obj.Name
	}

	var err error
	switch kind {
	case models.ObjectKindSecret:
		_, err = b.client.SecretRemove(ctx, id, client.SecretRemoveOptions{})
	case models.ObjectKindConfig:
		_, err = b.client.ConfigRemove(ctx, id, client.ConfigRemoveOptions{})
	default:
		return fmt.Errorf("unknown object kind %q", kind)
	}

	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove %s %q: %w", kind, obj.Name, err)
	}
	return nil
}
