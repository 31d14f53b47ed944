package podman

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/ezenkico/deploy-commander/stack-reconciler/services"
)

type listContainer struct {
	ID      string            `json:"Id"`
	Names   []string          `json:"Names"`
	State   string            `json:"State"`
	Status  string            `json:"Status"`
	Labels  map[string]string `json:"Labels"`
	PodName string            `json:"PodName"`
}

type idResponse struct {
	ID string `json:"Id"`
}

func (b *Backend) findContainer(ctx context.Context, unitName string) (*listContainer, error) {
	query := filters(map[string][]string{
		"name": {unitName},
		"pod":  {services.PodName(unitName)},
	})
	query.Set("all", "true")

	var list []listContainer
	if err := b.api.do(ctx, http.MethodGet, "/libpod/containers/json", query, nil, &list); err != nil {
		return nil, fmt.Errorf("list containers %q: %w", unitName, err)
	}
	// The name filter is a regex, so compare exactly.
	for i := range list {
		if slices.Contains(list[i].Names, unitName) {
			return &list[i], nil
		}
	}
	return nil, nil
}

func (b *Backend) FindUnit(ctx context.Context, unitName string) (*models.Unit, error) {
	c, err := b.findContainer(ctx, unitName)
	if err != nil || c == nil {
		return nil, err
	}
	return &models.Unit{
		ID:          c.ID,
		Name:        unitName,
		ContainerID: c.ID,
		Labels:      c.Labels,
	}, nil
}

// CreateOrReplaceUnit removes any previous pod, then creates the pod, creates
// the container in it and starts it. A failure after the pod exists removes
// the pod again.
func (b *Backend) CreateOrReplaceUnit(ctx context.Context, spec models.UnitSpec) (string, error) {
	if err := b.RemoveUnit(ctx, spec.Name); err != nil {
		return "", err
	}

	var pod idResponse
	if err := b.api.do(ctx, http.MethodPost, "/libpod/pods/create", nil, translatePod(spec), &pod); err != nil {
		return "", fmt.Errorf("create pod %q: %w", services.PodName(spec.Name), err)
	}

	id, err := b.createContainer(ctx, spec)
	if err != nil {
		if rerr := b.RemoveUnit(context.WithoutCancel(ctx), spec.Name); rerr != nil {
			b.log.Warn().Err(rerr).Str("pod", services.PodName(spec.Name)).Msg("remove pod after failed create")
		}
		return "", err
	}

	b.log.Info().Str("container", spec.Name).Str("id", id).Msg("started container")
	return id, nil
}

func (b *Backend) createContainer(ctx context.Context, spec models.UnitSpec) (string, error) {
	var created idResponse
	if err := b.api.do(ctx, http.MethodPost, "/libpod/containers/create", nil, translateContainer(spec), &created); err != nil {
		return "", fmt.Errorf("create container %q: %w", spec.Name, err)
	}

	if err := b.api.do(ctx, http.MethodPost, "/libpod/containers/"+url.PathEscape(spec.Name)+"/start", nil, nil, nil); err != nil {
		return "", fmt.Errorf("start container %q: %w", spec.Name, err)
	}
	return created.ID, nil
}

func (b *Backend) GetUnitState(ctx context.Context, unitName string) (models.UnitStatus, error) {
	c, err := b.findContainer(ctx, unitName)
	if err != nil {
		return models.UnitStatus{}, err
	}
	return containerStatus(c), nil
}

// containerStatus classifies a listed container. A running container is only
// up once it has no health status or is healthy.
func containerStatus(c *listContainer) models.UnitStatus {
	if c == nil {
		return models.UnitStatus{Phase: models.UnitPhaseNotReady, State: "no-container"}
	}

	status := models.UnitStatus{
		ContainerID: c.ID,
		State:       c.State,
		Message:     c.Status,
	}

	switch c.State {
	case "created", "restarting", "configured", "initialized":
		status.Phase = models.UnitPhaseNotReady
	case "running":
		if c.Status == "" || c.Status == "healthy" {
			status.Phase = models.UnitPhaseRunning
		} else {
			status.Phase = models.UnitPhaseNotReady
		}
	case "exited", "stopped":
		status.Phase = models.UnitPhaseExited
	default:
		status.Phase = models.UnitPhaseFailed
		status.Message = fmt.Sprintf("container is %s (status %q)", c.State, c.Status)
	}
	return status
}

// RemoveUnit force-removes the pod and with it the container.
func (b *Backend) RemoveUnit(ctx context.Context, unitName string) error {
	podName := services.PodName(unitName)
	err := b.api.do(ctx, http.MethodDelete, "/libpod/pods/"+url.PathEscape(podName), url.Values{"force": []string{"true"}}, nil, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove pod %q: %w", podName, err)
	}
	b.log.Info().Str("pod", podName).Msg("removed pod")
	return nil
}

type listPod struct {
	ID     string            `json:"Id"`
	Name   string            `json:"Name"`
	Labels map[string]string `json:"Labels"`
}

// ListUnits lists the stack's pods; the unit is the pod name without the
// pod suffix.
func (b *Backend) ListUnits(ctx context.Context, stack string) ([]models.Unit, error) {
	query := filters(map[string][]string{"label": {services.LabelStack + "=" + stack}})

	var pods []listPod
	if err := b.api.do(ctx, http.MethodGet, "/libpod/pods/json", query, nil, &pods); err != nil {
		return nil, fmt.Errorf("list stack pods (stack=%s): %w", stack, err)
	}

	units := make([]models.Unit, 0, len(pods))
	for _, p := range pods {
		name, ok := strings.CutSuffix(p.Name, services.PodName(""))
		if !ok {
			continue
		}
		units = append(units, models.Unit{ID: p.ID, Name: name, Labels: p.Labels})
	}
	return units, nil
}
