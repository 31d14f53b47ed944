package endpoints

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	backends "github.com/ezenkico/deploy-commander/stack-reconciler/interfaces"
	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/ezenkico/deploy-commander/stack-reconciler/services"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// configStore implements only the calls the publisher makes.
type configStore struct {
	backends.Backend

	mu      sync.Mutex
	objects map[string]models.NamedObject
	data    map[string][]byte
	adds    int
}

func newConfigStore() *configStore {
	return &configStore{objects: map[string]models.NamedObject{}, data: map[string][]byte{}}
}

func (c *configStore) ListNamedObjects(_ context.Context, kind models.ObjectKind, _ string) ([]models.NamedObject, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.NamedObject
	for _, o := range c.objects {
		if o.Kind == kind {
			out = append(out, o)
		}
	}
	return out, nil
}

func (c *configStore) AddNamedObject(_ context.Context, kind models.ObjectKind, name string, data []byte, labels map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[name] = models.NamedObject{ID: name, Name: name, Kind: kind, Labels: labels}
	c.data[name] = data
	c.adds++
	return nil
}

func TestPublishWritesAndAddsOnce(t *testing.T) {
	store := newConfigStore()
	dir := filepath.Join(t.TempDir(), "config")
	p := NewPublisher(store, dir, zerolog.Nop())
	record := models.EndpointRecord{Name: "db-endpoint", Host: "db", Port: 5432, Protocol: "postgres"}

	require.NoError(t, p.Publish(context.Background(), "s", record))
	require.NoError(t, p.Publish(context.Background(), "s", record))

	assert.Equal(t, 1, store.adds)
	obj := store.objects["s_db-endpoint"]
	assert.Equal(t, "s", obj.Labels[services.LabelStack])
	assert.JSONEq(t, `{"name":"db-endpoint","host":"db","port":5432,"protocol":"postgres"}`, string(store.data["s_db-endpoint"]))

	got, err := Read(dir, "db-endpoint")
	require.NoError(t, err)
	assert.Equal(t, record, got)
	assert.Equal(t, "postgres://db:5432", got.URL())
}

func TestPublishRejectsPathNames(t *testing.T) {
	p := NewPublisher(newConfigStore(), t.TempDir(), zerolog.Nop())

	assert.Error(t, p.Publish(context.Background(), "s", models.EndpointRecord{Name: "../x", Host: "h", Port: 1}))
	assert.Error(t, p.Publish(context.Background(), "s", models.EndpointRecord{Name: ".hidden", Host: "h", Port: 1}))
}

func TestReadAllSkipsOtherConfigs(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(newConfigStore(), dir, zerolog.Nop())
	require.NoError(t, p.Publish(context.Background(), "s", models.EndpointRecord{Name: "a", Host: "a", Port: 1}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nginx.conf"), []byte("server {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{"name":"x","host":"h","port":2}`), 0o644))

	records, err := ReadAll(dir)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].Name)
}
