package models

import "maps"

// RestartPolicyNever is the only restart policy the reconciler hands to a
// backend. Re-creation is decided by the next reconcile, never by the runtime.
const RestartPolicyNever = "none"

type ServiceDescriptor struct {
	// Required
	Name  string `json:"name" yaml:"name" validate:"required,hostname_rfc1123"`
	Image string `json:"image" yaml:"image" validate:"required"`

	// Entrypoint override
	Command []string `json:"command,omitempty" yaml:"command,omitempty"`

	// Environment variables
	Environment map[string]string `json:"environment,omitempty" yaml:"environment,omitempty"`

	// Named objects mounted into the container (logical names, unscoped)
	Secrets []ObjectRef `json:"secrets,omitempty" yaml:"secrets,omitempty" validate:"dive"`
	Configs []ObjectRef `json:"configs,omitempty" yaml:"configs,omitempty" validate:"dive"`

	// Bind mounts and named volumes
	Mounts []MountSpec `json:"mounts,omitempty" yaml:"mounts,omitempty" validate:"dive"`

	HealthCheck *HealthCheckSpec `json:"healthcheck,omitempty" yaml:"healthcheck,omitempty"`

	// Network / exposure intent
	Ports []PortMapping `json:"ports,omitempty" yaml:"ports,omitempty" validate:"dive"`

	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`

	// Connection records published once the unit is running
	Endpoints []EndpointRecord `json:"endpoints,omitempty" yaml:"endpoints,omitempty" validate:"dive"`

	// Commands run inside the container, in order, once it is running. Any
	// failure fails the reconcile.
	PostStart [][]string `json:"post_start,omitempty" yaml:"post_start,omitempty" validate:"dive,min=1"`

	// Dependency graph (names of other descriptors), used for ordering only
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// Clone returns a deep copy so a reconcile call can never observe a caller's
// later mutation.
func (d ServiceDescriptor) Clone() ServiceDescriptor {
	out := d
	out.Command = append([]string(nil), d.Command...)
	out.Environment = maps.Clone(d.Environment)
	out.Labels = maps.Clone(d.Labels)
	out.DependsOn = append([]string(nil), d.DependsOn...)
	out.Mounts = append([]MountSpec(nil), d.Mounts...)
	out.Ports = append([]PortMapping(nil), d.Ports...)
	out.Endpoints = append([]EndpointRecord(nil), d.Endpoints...)
	if d.PostStart != nil {
		out.PostStart = make([][]string, len(d.PostStart))
		for i, cmd := range d.PostStart {
			out.PostStart[i] = append([]string(nil), cmd...)
		}
	}
	out.Secrets = cloneRefs(d.Secrets)
	out.Configs = cloneRefs(d.Configs)
	if d.HealthCheck != nil {
		hc := *d.HealthCheck
		hc.Test = append([]string(nil), d.HealthCheck.Test...)
		out.HealthCheck = &hc
	}
	return out
}

func cloneRefs(refs []ObjectRef) []ObjectRef {
	if refs == nil {
		return nil
	}
	out := make([]ObjectRef, len(refs))
	for i, r := range refs {
		out[i] = r
		if r.File != nil {
			f := *r.File
			if r.File.Mode != nil {
				m := *r.File.Mode
				f.Mode = &m
			}
			out[i].File = &f
		}
	}
	return out
}
