package swarm

import (
	"os"
	"time"

	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/ezenkico/deploy-commander/stack-reconciler/services"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/api/types/network"
	"github.com/moby/moby/api/types/swarm"
)

// serviceSpec translates a unit spec into a single-replica swarm service that
// is never restarted by the orchestrator.
func serviceSpec(spec models.UnitSpec) swarm.ServiceSpec {
	d := spec.Descriptor

	cs := &swarm.ContainerSpec{
		Image:       d.Image,
		Labels:      spec.Labels,
		Command:     d.Command,
		Env:         services.SortedEnv(d.Environment),
		Hostname:    spec.Hostname,
		Mounts:      mounts(d.Mounts),
		Secrets:     secretRefs(spec.Secrets),
		Configs:     configRefs(spec.Configs),
		Healthcheck: healthConfig(d.HealthCheck),
	}

	var attachments []swarm.NetworkAttachmentConfig
	if spec.Network.ID != "" || spec.Network.Name != "" {
		target := spec.Network.ID
		if target == "" {
			target = spec.Network.Name
		}
		attachments = append(attachments, swarm.NetworkAttachmentConfig{
			Target:  target,
			Aliases: []string{spec.Hostname},
		})
	}

	out := swarm.ServiceSpec{
		Annotations: swarm.Annotations{
			Name:   spec.Name,
			Labels: spec.Labels,
		},
		TaskTemplate: swarm.TaskSpec{
			ContainerSpec: cs,
			RestartPolicy: &swarm.RestartPolicy{
				Condition: swarm.RestartPolicyConditionNone,
			},
			Networks: attachments,
		},
	}

	if len(d.Ports) > 0 {
		out.EndpointSpec = &swarm.EndpointSpec{Ports: ports(d.Ports)}
	}
	return out
}

func mounts(specs []models.MountSpec) []mount.Mount {
	var out []mount.Mount
	for _, m := range specs {
		t := mount.TypeVolume
		if m.Kind == models.MountKindBind {
			t = mount.TypeBind
		}
		out = append(out, mount.Mount{
			Type:     t,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}
	return out
}

func secretRefs(refs []models.ResolvedObjectRef) []*swarm.SecretReference {
	var out []*swarm.SecretReference
	for _, r := range refs {
		out = append(out, &swarm.SecretReference{
			File: &swarm.SecretReferenceFileTarget{
				Name: r.File.Name,
				UID:  r.File.UID,
				GID:  r.File.GID,
				Mode: os.FileMode(r.FileMode()),
			},
			SecretID:   r.ObjectID,
			SecretName: r.ObjectName,
		})
	}
	return out
}

func configRefs(refs []models.ResolvedObjectRef) []*swarm.ConfigReference {
	var out []*swarm.ConfigReference
	for _, r := range refs {
		out = append(out, &swarm.ConfigReference{
			File: &swarm.ConfigReferenceFileTarget{
				Name: r.File.Name,
				UID:  r.File.UID,
				GID:  r.File.GID,
				Mode: os.FileMode(r.FileMode()),
			},
			ConfigID:   r.ObjectID,
			ConfigName: r.ObjectName,
		})
	}
	return out
}

func healthConfig(hc *models.HealthCheckSpec) *container.HealthConfig {
	if hc == nil {
		return nil
	}
	return &container.HealthConfig{
		Test:        hc.Test,
		Interval:    time.Duration(hc.Interval),
		Timeout:     time.Duration(hc.Timeout),
		StartPeriod: time.Duration(hc.StartPeriod),
		Retries:     hc.Retries,
	}
}

func ports(mappings []models.PortMapping) []swarm.PortConfig {
	var out []swarm.PortConfig
	for _, p := range mappings {
		pc := swarm.PortConfig{
			Protocol:   network.IPProtocol(p.ProtocolOrDefault()),
			TargetPort: uint32(p.Target),
		}
		if p.Published != 0 {
			pc.PublishedPort = uint32(p.Published)
			pc.PublishMode = swarm.PortConfigPublishModeIngress
		}
		out = append(out, pc)
	}
	return out
}
