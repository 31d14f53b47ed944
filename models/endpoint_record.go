package models

import (
	"net"
	"strconv"
)

// EndpointRecord is the connection metadata one service publishes so that
// dependents can find it without asking the backend.
type EndpointRecord struct {
	Name           string `json:"name" yaml:"name" validate:"required"`
	Host           string `json:"host" yaml:"host" validate:"required"`
	Port           uint16 `json:"port" yaml:"port" validate:"required"`
	Protocol       string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	CredentialFile string `json:"credential_file,omitempty" yaml:"credential_file,omitempty"`
}

func (e EndpointRecord) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// URL returns protocol://host:port, or host:port when no protocol is set.
func (e EndpointRecord) URL() string {
	if e.Protocol == "" {
		return e.Address()
	}
	return e.Protocol + "://" + e.Address()
}
