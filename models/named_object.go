package models

// NamedObject is a secret or config as stored at a backend.
type NamedObject struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"` // stack-scoped
	Kind   ObjectKind        `json:"kind"`
	Labels map[string]string `json:"labels,omitempty"`
}
