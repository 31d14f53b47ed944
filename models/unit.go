package models

// UnitSpec is the backend-agnostic creation request for one unit.
type UnitSpec struct {
	Stack      string
	Name       string // <stack>-<service>
	Hostname   string // logical service name, used as network alias
	Descriptor ServiceDescriptor
	Network    NetworkHandle
	Secrets    []ResolvedObjectRef
	Configs    []ResolvedObjectRef
	Labels     map[string]string
	SpecDigest string
}

// Unit is a unit as it exists at a backend.
type Unit struct {
	ID          string
	Name        string
	ContainerID string
	Labels      map[string]string
}

type UnitPhase string

const (
	UnitPhaseNotReady UnitPhase = "not-ready"
	UnitPhaseRunning  UnitPhase = "running"
	UnitPhaseExited   UnitPhase = "exited"
	UnitPhaseFailed   UnitPhase = "failed"
)

// UnitStatus is one observation of a unit while it starts.
type UnitStatus struct {
	Phase       UnitPhase
	ContainerID string
	State       string // raw backend state
	Message     string
}

type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}
