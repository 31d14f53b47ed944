// Package endpoints persists endpoint records as configs of a stack so that
// dependent services can find each other without asking the backend.
package endpoints

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	backends "github.com/ezenkico/deploy-commander/stack-reconciler/interfaces"
	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/ezenkico/deploy-commander/stack-reconciler/services"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Publisher struct {
	backend backends.Backend
	dir     string
	log     zerolog.Logger
}

// NewPublisher writes records into dir, which must be the configs source
// directory the synchronizer reads, so published records survive later syncs.
func NewPublisher(backend backends.Backend, dir string, log zerolog.Logger) *Publisher {
	return &Publisher{backend: backend, dir: dir, log: log}
}

// Publish writes the record locally and adds it as a config when the backend
// does not have it yet. An existing config is left as is.
func (p *Publisher) Publish(ctx context.Context, stack string, record models.EndpointRecord) error {
	if err := checkName(record.Name); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal endpoint %q: %w", record.Name, err)
	}

	if err := writeFileAtomic(filepath.Join(p.dir, record.Name), data); err != nil {
		return fmt.Errorf("write endpoint %q: %w", record.Name, err)
	}

	scoped := services.StackScopedName(stack, record.Name)
	existing, err := p.backend.ListNamedObjects(ctx, models.ObjectKindConfig, services.StackPrefix(stack))
	if err != nil {
		return fmt.Errorf("list configs: %w", err)
	}
	for _, obj := range existing {
		if obj.Name == scoped {
			return nil
		}
	}

	labels := services.ObjectLabels(stack, uuid.NewString(), models.ObjectKindConfig, services.ContentDigest(data))
	if err := p.backend.AddNamedObject(ctx, models.ObjectKindConfig, scoped, data, labels); err != nil {
		return fmt.Errorf("add config %q: %w", scoped, err)
	}

	p.log.Info().Str("stack", stack).Str("endpoint", record.Name).Str("url", record.URL()).Msg("published endpoint")
	return nil
}

// Read loads one record from dir.
func Read(dir, name string) (models.EndpointRecord, error) {
	var record models.EndpointRecord
	if err := checkName(name); err != nil {
		return record, err
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return record, fmt.Errorf("read endpoint %q: %w", name, err)
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, fmt.Errorf("parse endpoint %q: %w", name, err)
	}
	return record, nil
}

// ReadAll returns every endpoint record in dir. Other config files that live
// alongside are skipped.
func ReadAll(dir string) ([]models.EndpointRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read endpoints dir %s: %w", dir, err)
	}

	var out []models.EndpointRecord
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		if record, ok := decodeRecord(data); ok && record.Name == e.Name() {
			out = append(out, record)
		}
	}
	return out, nil
}

func decodeRecord(data []byte) (models.EndpointRecord, bool) {
	var record models.EndpointRecord
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&record); err != nil {
		return record, false
	}
	return record, record.Name != "" && record.Host != "" && record.Port != 0
}

func checkName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid endpoint name %q", name)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".endpoint-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
