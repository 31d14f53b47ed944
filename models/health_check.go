package models

type HealthCheckSpec struct {
	// e.g. ["CMD-SHELL", "curl -f http://localhost/ || exit 1"]
	Test        []string `json:"test" yaml:"test" validate:"required,min=1"`
	Interval    Duration `json:"interval,omitempty" yaml:"interval,omitempty"`
	Timeout     Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	StartPeriod Duration `json:"start_period,omitempty" yaml:"start_period,omitempty"`
	Retries     int      `json:"retries,omitempty" yaml:"retries,omitempty" validate:"gte=0"`
}
