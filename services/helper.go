package services

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/go-playground/validator/v10"
	"github.com/opencontainers/go-digest"
)

const (
	LabelPrefix     = "stack-reconciler."
	LabelStack      = LabelPrefix + "stack"
	LabelService    = LabelPrefix + "service"
	LabelRun        = LabelPrefix + "run"
	LabelKind       = LabelPrefix + "kind"
	LabelDigest     = LabelPrefix + "digest"
	LabelSpecDigest = LabelPrefix + "spec-digest"
)

var stackNames = validator.New()

// ValidateStackName accepts RFC 1123 hostnames only. "_" is the scope
// separator, so a valid stack's prefix never matches another valid stack's
// objects.
func ValidateStackName(stack string) error {
	if err := stackNames.Var(stack, "required,hostname_rfc1123"); err != nil {
		return models.NewValidationError(fmt.Sprintf("invalid stack name %q", stack), err)
	}
	return nil
}

func StackScopedName(stack, name string) string {
	return fmt.Sprintf("%s_%s", stack, strings.TrimSpace(name))
}

// StackPrefix is the prefix every named object of a stack carries.
func StackPrefix(stack string) string {
	return stack + "_"
}

// LogicalName strips the stack prefix from a scoped name. ok is false when the
// name does not belong to the stack.
func LogicalName(stack, scoped string) (string, bool) {
	return strings.CutPrefix(scoped, StackPrefix(stack))
}

// OwnedBy reports whether a backend object belongs to stack. The name must
// carry the stack prefix and a stack label, when present, must match.
func OwnedBy(stack string, obj models.NamedObject) bool {
	if owner, ok := obj.Labels[LabelStack]; ok && owner != stack {
		return false
	}
	_, ok := LogicalName(stack, obj.Name)
	return ok
}

func UnitName(stack, service string) string {
	return fmt.Sprintf("%s-%s", stack, strings.TrimSpace(service))
}

func PodName(unitName string) string {
	return unitName + "_pod"
}

// NetworkName is the stack network; one per stack, named after it.
func NetworkName(stack string) string {
	return stack
}

func ObjectLabels(stack, runID string, kind models.ObjectKind, contentDigest string) map[string]string {
	return map[string]string{
		LabelStack:  stack,
		LabelRun:    runID,
		LabelKind:   string(kind),
		LabelDigest: contentDigest,
	}
}

// UnitLabels merges the descriptor's own labels under the reconciler's.
func UnitLabels(stack, service, runID, specDigest string, extra map[string]string) map[string]string {
	labels := maps.Clone(extra)
	if labels == nil {
		labels = map[string]string{}
	}
	labels[LabelStack] = stack
	labels[LabelService] = service
	labels[LabelRun] = runID
	labels[LabelSpecDigest] = specDigest
	return labels
}

func ContentDigest(data []byte) string {
	return digest.FromBytes(data).String()
}

// SpecDigest fingerprints everything about a descriptor that shapes the unit.
// Two descriptors with the same digest produce the same unit.
func SpecDigest(stack string, d models.ServiceDescriptor) (string, error) {
	b, err := json.Marshal(struct {
		Stack      string                   `json:"stack"`
		Descriptor models.ServiceDescriptor `json:"descriptor"`
	}{stack, d})
	if err != nil {
		return "", fmt.Errorf("digest descriptor %q: %w", d.Name, err)
	}
	return digest.FromBytes(b).String(), nil
}

// ResolveFileTarget fills defaults from the unscoped logical name.
func ResolveFileTarget(ref models.ObjectRef) models.FileTarget {
	out := models.FileTarget{}
	if ref.File != nil {
		out = *ref.File
	}
	if out.Name == "" {
		out.Name = ref.Name
	}
	if out.UID == "" {
		out.UID = models.DefaultFileUID
	}
	if out.GID == "" {
		out.GID = models.DefaultFileGID
	}
	if out.Mode == nil {
		mode := models.DefaultFileMode
		out.Mode = &mode
	}
	return out
}

// ResolveObjectRefs applies file defaults, scopes names to the stack and
// binds each ref to its backend object. Names with no backend object are
// returned in missing.
func ResolveObjectRefs(stack string, refs []models.ObjectRef, remote []models.NamedObject) (resolved []models.ResolvedObjectRef, missing []string) {
	byName := make(map[string]models.NamedObject, len(remote))
	for _, obj := range remote {
		byName[obj.Name] = obj
	}

	for _, ref := range refs {
		file := ResolveFileTarget(ref)
		scoped := StackScopedName(stack, ref.Name)
		obj, ok := byName[scoped]
		if !ok {
			missing = append(missing, ref.Name)
			continue
		}
		resolved = append(resolved, models.ResolvedObjectRef{
			ObjectID:   obj.ID,
			ObjectName: scoped,
			File:       file,
		})
	}
	return resolved, missing
}

// SortedEnv renders an environment map as sorted K=V pairs.
func SortedEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
