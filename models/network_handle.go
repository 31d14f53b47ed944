package models

type NetworkHandle struct {
	ID string `json:"id"`

	// Network name, always the stack name
	Name string `json:"name"`
}
