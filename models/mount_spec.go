package models

type MountKind string

const (
	MountKindBind   MountKind = "bind"
	MountKindVolume MountKind = "volume"
)

type MountSpec struct {
	// bind | volume
	Kind MountKind `json:"kind" yaml:"kind" validate:"required,oneof=bind volume"`

	// Host path for bind mounts, volume name for named volumes
	Source string `json:"source" yaml:"source" validate:"required"`

	// Path inside the container where the mount appears
	Target string `json:"target" yaml:"target" validate:"required,startswith=/"`

	ReadOnly bool `json:"read_only,omitempty" yaml:"read_only,omitempty"`
}
