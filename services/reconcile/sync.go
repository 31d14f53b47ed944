package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	backends "github.com/ezenkico/deploy-commander/stack-reconciler/interfaces"
	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/ezenkico/deploy-commander/stack-reconciler/services"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SyncResult lists logical names by what a synchronization pass did to them.
type SyncResult struct {
	Added     []string
	Removed   []string
	Unchanged []string

	// Present on both sides but with different content. Reported only.
	Stale []string
}

// Synchronizer converges a backend's named objects for one stack and kind to
// the files in a local directory.
type Synchronizer struct {
	backend  backends.Backend
	recorder Recorder
	log      zerolog.Logger
}

func NewSynchronizer(backend backends.Backend, log zerolog.Logger, recorder Recorder) *Synchronizer {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Synchronizer{backend: backend, recorder: recorder, log: log}
}

// SynchronizeNamedObjects makes the backend's set of kind objects for stack
// equal the set of regular files in dir. Every local file is read before the
// backend is touched, so a read failure changes nothing.
func (s *Synchronizer) SynchronizeNamedObjects(ctx context.Context, stack string, kind models.ObjectKind, dir string) (SyncResult, error) {
	return s.synchronize(ctx, stack, kind, dir, uuid.NewString())
}

func (s *Synchronizer) synchronize(ctx context.Context, stack string, kind models.ObjectKind, dir, runID string) (SyncResult, error) {
	var result SyncResult
	if err := services.ValidateStackName(stack); err != nil {
		return result, err
	}
	log := s.log.With().Str("stack", stack).Str("kind", string(kind)).Str("dir", dir).Logger()

	local, present, err := readLocalObjects(dir)
	if err != nil {
		return result, models.NewConvergenceFailureError(fmt.Sprintf("read local %ss", kind), err).
			WithOperation("sync")
	}

	remoteList, err := s.backend.ListNamedObjects(ctx, kind, services.StackPrefix(stack))
	if err != nil {
		return result, models.NewConvergenceFailureError(fmt.Sprintf("list remote %ss", kind), err).
			WithOperation("sync")
	}

	remote := make(map[string]models.NamedObject, len(remoteList))
	for _, obj := range remoteList {
		if obj.Kind != "" && obj.Kind != kind {
			continue
		}
		if !services.OwnedBy(stack, obj) {
			continue
		}
		name, _ := services.LogicalName(stack, obj.Name)
		remote[name] = obj
	}

	// A missing directory never removes backend objects.
	if !present && len(remote) > 0 {
		return result, models.NewConvergenceFailureError(
			fmt.Sprintf("%s directory %q does not exist; refusing to remove %d backend %ss", kind, dir, len(remote), kind), nil).
			WithOperation("sync")
	}

	for _, name := range sortedKeys(local) {
		data := local[name]
		contentDigest := services.ContentDigest(data)

		if obj, ok := remote[name]; ok {
			result.Unchanged = append(result.Unchanged, name)
			if d, labelled := obj.Labels[services.LabelDigest]; labelled && d != contentDigest {
				result.Stale = append(result.Stale, name)
				log.Warn().Str("name", name).Msg("local content differs from backend object; not rotated")
			}
			continue
		}

		labels := services.ObjectLabels(stack, runID, kind, contentDigest)
		if err := s.backend.AddNamedObject(ctx, kind, services.StackScopedName(stack, name), data, labels); err != nil {
			return result, models.NewConvergenceFailureError(fmt.Sprintf("add %s %q", kind, name), err).
				WithOperation("sync")
		}
		s.recorder.RecordNamedObjectOp(kind, "add")
		log.Info().Str("name", name).Msg("added")
		result.Added = append(result.Added, name)
	}

	for _, name := range sortedKeys(remote) {
		if _, ok := local[name]; ok {
			continue
		}
		if err := s.backend.RemoveNamedObject(ctx, kind, remote[name]); err != nil {
			return result, models.NewConvergenceFailureError(fmt.Sprintf("remove %s %q", kind, name), err).
				WithOperation("sync")
		}
		s.recorder.RecordNamedObjectOp(kind, "remove")
		log.Info().Str("name", name).Msg("removed")
		result.Removed = append(result.Removed, name)
	}

	return result, nil
}

// readLocalObjects reads the regular, non-hidden files at the top level of
// dir. present is false when dir does not exist.
func readLocalObjects(dir string) (out map[string][]byte, present bool, err error) {
	out = map[string][]byte{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return out, false, nil
		}
		return nil, false, err
	}

	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)

		// Stat follows symlinks, which is how mounted secrets usually appear.
		info, err := os.Stat(path)
		if err != nil {
			return nil, true, err
		}
		if !info.Mode().IsRegular() {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, true, err
		}
		out[name] = data
	}
	return out, true, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
