package models

type PortMapping struct {
	Target    uint16 `json:"target" yaml:"target" validate:"required"`
	Published uint16 `json:"published,omitempty" yaml:"published,omitempty"`
	Protocol  string `json:"protocol,omitempty" yaml:"protocol,omitempty" validate:"omitempty,oneof=tcp udp sctp"`
}

// ProtocolOrDefault returns the protocol, defaulting to tcp.
func (p PortMapping) ProtocolOrDefault() string {
	if p.Protocol == "" {
		return "tcp"
	}
	return p.Protocol
}
