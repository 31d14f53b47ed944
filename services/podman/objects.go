package podman

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/ezenkico/deploy-commander/stack-reconciler/services"
)

type secretInfo struct {
	ID   string `json:"ID"`
	Spec struct {
		Name   string            `json:"Name"`
		Labels map[string]string `json:"Labels"`
	} `json:"Spec"`
}

// objectKind reads the kind label. Secrets created outside the reconciler
// carry no label and count as secrets.
func objectKind(labels map[string]string) models.ObjectKind {
	if k := labels[services.LabelKind]; k != "" {
		return models.ObjectKind(k)
	}
	return models.ObjectKindSecret
}

// ListNamedObjects lists secrets of the given kind. Podman stores configs as
// secrets too; the kind label tells them apart.
func (b *Backend) ListNamedObjects(ctx context.Context, kind models.ObjectKind, prefix string) ([]models.NamedObject, error) {
	var list []secretInfo
	if err := b.api.do(ctx, http.MethodGet, "/libpod/secrets/json", nil, nil, &list); err != nil {
		return nil, fmt.Errorf("list %ss: %w", kind, err)
	}

	var out []models.NamedObject
	for _, s := range list {
		if !strings.HasPrefix(s.Spec.Name, prefix) || objectKind(s.Spec.Labels) != kind {
			continue
		}
		out = append(out, models.NamedObject{
			ID:     s.ID,
			Name:   s.Spec.Name,
			Kind:   kind,
			Labels: s.Spec.Labels,
		})
	}
	return out, nil
}

func (b *Backend) AddNamedObject(ctx context.Context, kind models.ObjectKind, name string, data []byte, labels map[string]string) error {
	query := url.Values{"name": []string{name}}
	if len(labels) > 0 {
		lb, err := json.Marshal(labels)
		if err != nil {
			return err
		}
		query.Set("labels", string(lb))
	}

	err := b.api.doRaw(ctx, http.MethodPost, "/libpod/secrets/create", query, bytes.NewReader(data), nil)
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
	err := b.api.do(ctx, http.MethodDelete, "/libpod/secrets/"+url.PathEscape(id), nil, nil, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove %s %q: %w", kind, obj.Name, err)
	}
	return nil
}
