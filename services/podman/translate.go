package podman

import (
	"maps"
	"strconv"
	"time"

	"github.com/distribution/reference"
	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/ezenkico/deploy-commander/stack-reconciler/services"
)

const restartPolicyNo = "no"

// Wire types for the libpod pod and container generators. Only the fields the
// reconciler sets are declared.

type portMapping struct {
	ContainerPort uint16 `json:"container_port"`
	HostPort      uint16 `json:"host_port,omitempty"`
	Protocol      string `json:"protocol,omitempty"`
}

type namespace struct {
	NSMode string `json:"nsmode"`
}

type perNetworkOptions struct {
	Aliases []string `json:"aliases,omitempty"`
}

type podSpec struct {
	Name         string                       `json:"name"`
	Hostname     string                       `json:"hostname,omitempty"`
	Labels       map[string]string            `json:"labels,omitempty"`
	PortMappings []portMapping                `json:"portmappings,omitempty"`
	Netns        *namespace                   `json:"netns,omitempty"`
	Networks     map[string]perNetworkOptions `json:"Networks,omitempty"`
	SecurityOpt  []string                     `json:"security_opt,omitempty"`
}

type secretMount struct {
	Source string `json:"source"`
	Target string `json:"target,omitempty"`
	UID    uint32 `json:"uid"`
	GID    uint32 `json:"gid"`
	Mode   uint32 `json:"mode"`
}

type mountPoint struct {
	Destination string   `json:"destination"`
	Type        string   `json:"type"`
	Source      string   `json:"source"`
	Options     []string `json:"options,omitempty"`
}

type namedVolume struct {
	Name    string   `json:"Name"`
	Dest    string   `json:"Dest"`
	Options []string `json:"Options,omitempty"`
}

// healthConfig durations are nanoseconds on the wire.
type healthConfig struct {
	Test        []string      `json:"Test,omitempty"`
	Interval    time.Duration `json:"Interval,omitempty"`
	Timeout     time.Duration `json:"Timeout,omitempty"`
	StartPeriod time.Duration `json:"StartPeriod,omitempty"`
	Retries     int           `json:"Retries,omitempty"`
}

type containerSpec struct {
	Name          string            `json:"name"`
	Pod           string            `json:"pod"`
	Image         string            `json:"image"`
	Env           map[string]string `json:"env,omitempty"`
	Entrypoint    []string          `json:"entrypoint,omitempty"`
	Secrets       []secretMount     `json:"secrets,omitempty"`
	Mounts        []mountPoint      `json:"mounts,omitempty"`
	Volumes       []namedVolume     `json:"volumes,omitempty"`
	Labels        map[string]string `json:"labels,omitempty"`
	RestartPolicy string            `json:"restart_policy"`
	HealthConfig  *healthConfig     `json:"healthconfig,omitempty"`
}

// normaliseImage fully qualifies a reference (nginx -> docker.io/library/nginx:latest)
// since podman does not resolve short names without registries.conf.
func normaliseImage(image string) string {
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return image
	}
	return reference.TagNameOnly(named).String()
}

// translatePod builds the pod wrapper. Ports and the network live on the pod,
// not the container.
func translatePod(spec models.UnitSpec) podSpec {
	pod := podSpec{
		Name:     services.PodName(spec.Name),
		Hostname: spec.Hostname,
		Labels:   maps.Clone(spec.Labels),
		// Disable SELinux labelling so files and sockets can be bind mounted.
		SecurityOpt: []string{"label=disable"},
	}

	for _, p := range spec.Descriptor.Ports {
		pod.PortMappings = append(pod.PortMappings, portMapping{
			ContainerPort: p.Target,
			HostPort:      p.Published,
			Protocol:      p.ProtocolOrDefault(),
		})
	}

	if spec.Network.Name != "" {
		pod.Netns = &namespace{NSMode: "bridge"}
		pod.Networks = map[string]perNetworkOptions{
			spec.Network.Name: {Aliases: []string{spec.Hostname}},
		}
	}
	return pod
}

// translateContainer builds the container that runs inside the pod. Podman
// has no configs, so configs are secrets mounted at /<file name>.
func translateContainer(spec models.UnitSpec) containerSpec {
	d := spec.Descriptor

	c := containerSpec{
		Name:          spec.Name,
		Pod:           services.PodName(spec.Name),
		Image:         normaliseImage(d.Image),
		Env:           maps.Clone(d.Environment),
		Entrypoint:    d.Command,
		Labels:        maps.Clone(spec.Labels),
		RestartPolicy: restartPolicyNo,
	}

	for _, s := range spec.Secrets {
		c.Secrets = append(c.Secrets, secretMount{
			Source: s.ObjectName,
			Target: s.File.Name,
			UID:    parseID(s.File.UID),
			GID:    parseID(s.File.GID),
			Mode:   s.FileMode(),
		})
	}
	for _, cfg := range spec.Configs {
		c.Secrets = append(c.Secrets, secretMount{
			Source: cfg.ObjectName,
			Target: "/" + cfg.File.Name,
			UID:    parseID(cfg.File.UID),
			GID:    parseID(cfg.File.GID),
			Mode:   cfg.FileMode(),
		})
	}

	for _, m := range d.Mounts {
		var opts []string
		if m.ReadOnly {
			opts = []string{"ro"}
		}
		switch m.Kind {
		case models.MountKindBind:
			c.Mounts = append(c.Mounts, mountPoint{
				Destination: m.Target,
				Type:        "bind",
				Source:      m.Source,
				Options:     append([]string{"rbind"}, opts...),
			})
		case models.MountKindVolume:
			c.Volumes = append(c.Volumes, namedVolume{Name: m.Source, Dest: m.Target, Options: opts})
		}
	}

	if hc := d.HealthCheck; hc != nil {
		c.HealthConfig = &healthConfig{
			Test:        hc.Test,
			Interval:    hc.Interval.Std(),
			Timeout:     hc.Timeout.Std(),
			StartPeriod: hc.StartPeriod.Std(),
			Retries:     hc.Retries,
		}
	}
	return c
}

func parseID(s string) uint32 {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}
