package models

// ObjectKind distinguishes the two kinds of named objects a backend stores.
type ObjectKind string

const (
	ObjectKindSecret ObjectKind = "secret"
	ObjectKindConfig ObjectKind = "config"
)

// ObjectRef references a secret or config by its logical (unscoped) name.
type ObjectRef struct {
	Name string      `json:"name" yaml:"name" validate:"required"`
	File *FileTarget `json:"file,omitempty" yaml:"file,omitempty"`
}

// FileTarget describes where and how the object appears inside the container.
// Empty fields are filled with defaults when the unit spec is translated.
type FileTarget struct {
	Name string  `json:"name,omitempty" yaml:"name,omitempty"`
	UID  string  `json:"uid,omitempty" yaml:"uid,omitempty" validate:"omitempty,numeric"`
	GID  string  `json:"gid,omitempty" yaml:"gid,omitempty" validate:"omitempty,numeric"`
	Mode *uint32 `json:"mode,omitempty" yaml:"mode,omitempty" validate:"omitempty,max=511"`
}

// ResolvedObjectRef is an ObjectRef after translation: defaults applied,
// name scoped to the stack and the backend id looked up.
type ResolvedObjectRef struct {
	ObjectID   string
	ObjectName string
	File       FileTarget
}

// FileMode returns the resolved mode, which is always set after translation.
func (r ResolvedObjectRef) FileMode() uint32 {
	if r.File.Mode == nil {
		return DefaultFileMode
	}
	return *r.File.Mode
}

const (
	DefaultFileUID  = "0"
	DefaultFileGID  = "0"
	DefaultFileMode = uint32(0o444)
)
