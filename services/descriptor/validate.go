package descriptor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/distribution/reference"
	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"github.com/go-playground/validator/v10"
)

type Options struct {
	// Do not require bind mount sources to exist on this host
	SkipBindSourceCheck bool
}

type Validator struct {
	validate *validator.Validate
	opts     Options
}

func NewValidator(opts Options) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v, opts: opts}
}

// Validate checks a descriptor without side effects. Failures are
// ValidationErrors naming the offending field.
func (v *Validator) Validate(d models.ServiceDescriptor) error {
	if err := v.validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return invalid(d.Name, fieldPath(fe.Namespace()), fmt.Sprintf("failed %q check", fe.Tag()))
		}
		return models.NewValidationError("invalid descriptor", err).WithService(d.Name)
	}

	if _, err := reference.ParseNormalizedNamed(d.Image); err != nil {
		return invalid(d.Name, "image", err.Error())
	}

	if err := uniqueRefs(d.Name, "secrets", d.Secrets); err != nil {
		return err
	}
	if err := uniqueRefs(d.Name, "configs", d.Configs); err != nil {
		return err
	}

	targets := map[string]struct{}{}
	for i, m := range d.Mounts {
		field := fmt.Sprintf("mounts[%d]", i)
		target := filepath.Clean(m.Target)
		if _, dup := targets[target]; dup {
			return invalid(d.Name, field+".target", fmt.Sprintf("duplicate mount target %q", m.Target))
		}
		targets[target] = struct{}{}

		if err := v.checkMountSource(m); err != nil {
			return invalid(d.Name, field+".source", err.Error())
		}
	}

	endpoints := map[string]struct{}{}
	for i, e := range d.Endpoints {
		if _, dup := endpoints[e.Name]; dup {
			return invalid(d.Name, fmt.Sprintf("endpoints[%d].name", i), fmt.Sprintf("duplicate endpoint %q", e.Name))
		}
		endpoints[e.Name] = struct{}{}
	}

	return nil
}

func (v *Validator) checkMountSource(m models.MountSpec) error {
	switch m.Kind {
	case models.MountKindBind:
		if !filepath.IsAbs(m.Source) {
			return fmt.Errorf("bind source %q must be absolute", m.Source)
		}
		if v.opts.SkipBindSourceCheck {
			return nil
		}
		if _, err := os.Stat(m.Source); err != nil {
			return fmt.Errorf("bind source %q: %w", m.Source, err)
		}
	case models.MountKindVolume:
		if strings.TrimSpace(m.Source) == "" || strings.ContainsRune(m.Source, '/') {
			return fmt.Errorf("invalid volume name %q", m.Source)
		}
	default:
		return fmt.Errorf("unknown mount kind %q", m.Kind)
	}
	return nil
}

func uniqueRefs(service, field string, refs []models.ObjectRef) error {
	seen := map[string]struct{}{}
	for i, r := range refs {
		if _, dup := seen[r.Name]; dup {
			return invalid(service, fmt.Sprintf("%s[%d].name", field, i), fmt.Sprintf("duplicate name %q", r.Name))
		}
		seen[r.Name] = struct{}{}
	}
	return nil
}

// fieldPath drops the leading struct name from a validator namespace.
func fieldPath(ns string) string {
	_, rest, ok := strings.Cut(ns, ".")
	if !ok {
		return ns
	}
	return rest
}

func invalid(service, field, msg string) error {
	return models.NewValidationError(fmt.Sprintf("%s: %s", field, msg), nil).
		WithService(service).
		WithOperation("validate")
}
