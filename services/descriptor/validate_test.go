package descriptor

import (
	"testing"

	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDescriptor(t *testing.T) models.ServiceDescriptor {
	t.Helper()
	return models.ServiceDescriptor{
		Name:    "web",
		Image:   "nginx:1.27",
		Secrets: []models.ObjectRef{{Name: "db_password"}},
		Configs: []models.ObjectRef{{Name: "app.conf"}},
		Mounts: []models.MountSpec{
			{Kind: models.MountKindBind, Source: t.TempDir(), Target: "/data"},
			{Kind: models.MountKindVolume, Source: "cache", Target: "/cache"},
		},
		Ports:     []models.PortMapping{{Target: 80, Published: 8080}},
		Endpoints: []models.EndpointRecord{{Name: "web-http", Host: "web", Port: 80}},
	}
}

func TestValidateAcceptsWellFormedDescriptor(t *testing.T) {
	require.NoError(t, NewValidator(Options{}).Validate(validDescriptor(t)))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *models.ServiceDescriptor)
		field  string
	}{
		{"missing name", func(d *models.ServiceDescriptor) { d.Name = "" }, "name"},
		{"bad name", func(d *models.ServiceDescriptor) { d.Name = "Web_1" }, "name"},
		{"missing image", func(d *models.ServiceDescriptor) { d.Image = "" }, "image"},
		{"bad image", func(d *models.ServiceDescriptor) { d.Image = "UPPER/case:tag" }, "image"},
		{"duplicate secret", func(d *models.ServiceDescriptor) {
			d.Secrets = append(d.Secrets, models.ObjectRef{Name: "db_password"})
		}, "secrets[1].name"},
		{"duplicate config", func(d *models.ServiceDescriptor) {
			d.Configs = append(d.Configs, models.ObjectRef{Name: "app.conf"})
		}, "configs[1].name"},
		{"duplicate mount target", func(d *models.ServiceDescriptor) {
			d.Mounts[1].Target = "/data/"
		}, "mounts[1].target"},
		{"relative bind source", func(d *models.ServiceDescriptor) {
			d.Mounts[0].Source = "data"
		}, "mounts[0].source"},
		{"missing bind source", func(d *models.ServiceDescriptor) {
			d.Mounts[0].Source = "/does/not/exist/anywhere"
		}, "mounts[0].source"},
		{"bad mount kind", func(d *models.ServiceDescriptor) {
			d.Mounts[0].Kind = "tmpfs"
		}, "mounts[0].kind"},
		{"bad protocol", func(d *models.ServiceDescriptor) {
			d.Ports[0].Protocol = "http"
		}, "ports[0].protocol"},
		{"empty post-start command", func(d *models.ServiceDescriptor) {
			d.PostStart = [][]string{{"true"}, {}}
		}, "post_start[1]"},
		{"duplicate endpoint", func(d *models.ServiceDescriptor) {
			d.Endpoints = append(d.Endpoints, d.Endpoints[0])
		}, "endpoints[1].name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDescriptor(t)
			tt.mutate(&d)

			err := NewValidator(Options{}).Validate(d)
			require.Error(t, err)
			assert.True(t, models.IsValidation(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidateSkipBindSourceCheck(t *testing.T) {
	d := validDescriptor(t)
	d.Mounts[0].Source = "/does/not/exist/anywhere"

	assert.NoError(t, NewValidator(Options{SkipBindSourceCheck: true}).Validate(d))
}
