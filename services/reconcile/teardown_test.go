package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/ezenkico/deploy-commander/stack-reconciler/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeardownRemovesStackResources(t *testing.T) {
	backend := newFakeBackend()
	secrets := writeFiles(t, map[string]string{"db_password": "s3cret"})
	configs := writeFiles(t, map[string]string{"app.conf": "listen 80"})
	r, _ := newTestReconciler(t, backend, secrets, configs)

	_, err := r.Reconcile(context.Background(), "s", webDescriptor())
	require.NoError(t, err)
	_, err = r.Reconcile(context.Background(), "other", webDescriptor())
	require.NoError(t, err)

	result, err := r.Teardown(context.Background(), "s")
	require.NoError(t, err)

	assert.Equal(t, []string{"s-web"}, result.Units)
	assert.Equal(t, []string{"s_db_password"}, result.Secrets)
	assert.Equal(t, []string{"s_app.conf"}, result.Configs)
	assert.True(t, result.Network)

	assert.Nil(t, backend.unit("s-web"))
	assert.NotNil(t, backend.unit("other-web"))
	assert.Equal(t, []string{"other_db_password"}, backend.objectNames(models.ObjectKindSecret))

	n, err := backend.LookupNetwork(context.Background(), "s")
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestTeardownEmptyStack(t *testing.T) {
	backend := newFakeBackend()
	r, _ := newTestReconciler(t, backend, "", "")

	result, err := r.Teardown(context.Background(), "s")
	require.NoError(t, err)
	assert.Empty(t, result.Units)
	assert.False(t, result.Network)
	assert.Empty(t, backend.opsSnapshot())
}

func TestTeardownRetriesNetworkInUse(t *testing.T) {
	backend := newFakeBackend()
	r, _ := newTestReconciler(t, backend, "", "")

	_, err := r.Networks().EnsureNetwork(context.Background(), "s")
	require.NoError(t, err)
	backend.removeNetworkErrs = []error{errors.New("network has active endpoints"), nil}

	result, err := r.Teardown(context.Background(), "s")
	require.NoError(t, err)
	assert.True(t, result.Network)
	assert.Equal(t, 1, backend.count("RemoveNetwork"))
}

func TestTeardownRequiresStack(t *testing.T) {
	r, _ := newTestReconciler(t, newFakeBackend(), "", "")
	_, err := r.Teardown(context.Background(), "")
	assert.True(t, models.IsValidation(err))
}

func TestTeardownRejectsUnderscoreStack(t *testing.T) {
	backend := newFakeBackend()
	r, _ := newTestReconciler(t, backend, "", "")

	_, err := r.Teardown(context.Background(), "app_v2")
	assert.True(t, models.IsValidation(err))
	assert.Empty(t, backend.opsSnapshot())
}

func TestTeardownLeavesPrefixSharingStackAlone(t *testing.T) {
	backend := newFakeBackend()
	backend.seedObject(models.ObjectKindSecret, "app_db", map[string]string{services.LabelStack: "app"})
	backend.seedObject(models.ObjectKindSecret, "app_v2_db", map[string]string{services.LabelStack: "app_v2"})
	backend.seedObject(models.ObjectKindConfig, "app_v2_conf", map[string]string{services.LabelStack: "app_v2"})
	r, _ := newTestReconciler(t, backend, "", "")

	result, err := r.Teardown(context.Background(), "app")
	require.NoError(t, err)

	assert.Equal(t, []string{"app_db"}, result.Secrets)
	assert.Empty(t, result.Configs)
	assert.Equal(t, []string{"app_v2_db"}, backend.objectNames(models.ObjectKindSecret))
	assert.Equal(t, []string{"app_v2_conf"}, backend.objectNames(models.ObjectKindConfig))
}
