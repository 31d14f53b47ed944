package podman

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/ezenkico/deploy-commander/stack-reconciler/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitSpec() models.UnitSpec {
	mode := uint32(0o400)
	d := models.ServiceDescriptor{
		Name:        "web",
		Image:       "nginx",
		Command:     []string{"nginx", "-g", "daemon off;"},
		Environment: map[string]string{"A": "1"},
		Mounts: []models.MountSpec{
			{Kind: models.MountKindBind, Source: "/srv/www", Target: "/usr/share/nginx/html", ReadOnly: true},
			{Kind: models.MountKindVolume, Source: "cache", Target: "/cache"},
		},
		HealthCheck: &models.HealthCheckSpec{Test: []string{"CMD", "true"}, Interval: models.Duration(5 * time.Second), Retries: 3},
		Ports:       []models.PortMapping{{Target: 80, Published: 8080}},
	}

	secret := services.ResolveFileTarget(models.ObjectRef{
		Name: "db_password",
		File: &models.FileTarget{UID: "999", GID: "999", Mode: &mode},
	})
	config := services.ResolveFileTarget(models.ObjectRef{Name: "nginx.conf"})

	return models.UnitSpec{
		Stack:      "s",
		Name:       "s-web",
		Hostname:   "web",
		Descriptor: d,
		Network:    models.NetworkHandle{ID: "net1", Name: "s"},
		Secrets:    []models.ResolvedObjectRef{{ObjectID: "sec1", ObjectName: "s_db_password", File: secret}},
		Configs:    []models.ResolvedObjectRef{{ObjectID: "cfg1", ObjectName: "s_nginx.conf", File: config}},
		Labels:     map[string]string{services.LabelStack: "s"},
	}
}

func TestNormaliseImage(t *testing.T) {
	assert.Equal(t, "docker.io/library/nginx:latest", normaliseImage("nginx"))
	assert.Equal(t, "ghcr.io/org/app:1.2", normaliseImage("ghcr.io/org/app:1.2"))
	assert.Equal(t, "Not A Ref", normaliseImage("Not A Ref"))
}

func TestTranslatePod(t *testing.T) {
	pod := translatePod(unitSpec())

	assert.Equal(t, "s-web_pod", pod.Name)
	assert.Equal(t, "web", pod.Hostname)
	assert.Equal(t, []string{"label=disable"}, pod.SecurityOpt)
	assert.Equal(t, []portMapping{{ContainerPort: 80, HostPort: 8080, Protocol: "tcp"}}, pod.PortMappings)
	require.NotNil(t, pod.Netns)
	assert.Equal(t, "bridge", pod.Netns.NSMode)
	assert.Equal(t, []string{"web"}, pod.Networks["s"].Aliases)
}

func TestTranslateContainer(t *testing.T) {
	c := translateContainer(unitSpec())

	assert.Equal(t, "s-web", c.Name)
	assert.Equal(t, "s-web_pod", c.Pod)
	assert.Equal(t, "docker.io/library/nginx:latest", c.Image)
	assert.Equal(t, restartPolicyNo, c.RestartPolicy)
	assert.Equal(t, []string{"nginx", "-g", "daemon off;"}, c.Entrypoint)

	require.Len(t, c.Secrets, 2)
	assert.Equal(t, secretMount{Source: "s_db_password", Target: "db_password", UID: 999, GID: 999, Mode: 0o400}, c.Secrets[0])
	assert.Equal(t, secretMount{Source: "s_nginx.conf", Target: "/nginx.conf", UID: 0, GID: 0, Mode: 0o444}, c.Secrets[1])

	require.Len(t, c.Mounts, 1)
	assert.Equal(t, []string{"rbind", "ro"}, c.Mounts[0].Options)
	require.Len(t, c.Volumes, 1)
	assert.Equal(t, namedVolume{Name: "cache", Dest: "/cache"}, c.Volumes[0])

	require.NotNil(t, c.HealthConfig)
	assert.Equal(t, 5*time.Second, c.HealthConfig.Interval)
}

func TestHealthConfigWireFormat(t *testing.T) {
	b, err := json.Marshal(translateContainer(unitSpec()).HealthConfig)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Test":["CMD","true"],"Interval":5000000000,"Retries":3}`, string(b))
}

func TestParseID(t *testing.T) {
	assert.Equal(t, uint32(1000), parseID("1000"))
	assert.Equal(t, uint32(0), parseID("nobody"))
}
