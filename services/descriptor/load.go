package descriptor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
	"gopkg.in/yaml.v3"
)

var extensions = []string{".json", ".yaml", ".yml"}

// Load reads one descriptor from a JSON or YAML file. A descriptor without a
// name takes the file's base name.
func Load(path string) (models.ServiceDescriptor, error) {
	var d models.ServiceDescriptor

	data, err := os.ReadFile(path)
	if err != nil {
		return d, fmt.Errorf("read descriptor %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		err = json.Unmarshal(data, &d)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &d)
	default:
		return d, fmt.Errorf("descriptor %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return d, fmt.Errorf("parse descriptor %s: %w", path, err)
	}

	if d.Name == "" {
		d.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return d, nil
}

// LoadDir loads the named descriptors from dir, or every descriptor in dir
// when names is empty.
func LoadDir(dir string, names []string) ([]models.ServiceDescriptor, error) {
	var paths []string

	if len(names) == 0 {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read services dir %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			if isDescriptorFile(e.Name()) {
				paths = append(paths, filepath.Join(dir, e.Name()))
			}
		}
		sort.Strings(paths)
	} else {
		for _, name := range names {
			p, err := findDescriptor(dir, name)
			if err != nil {
				return nil, err
			}
			paths = append(paths, p)
		}
	}

	out := make([]models.ServiceDescriptor, 0, len(paths))
	for _, p := range paths {
		d, err := Load(p)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func isDescriptorFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func findDescriptor(dir, name string) (string, error) {
	for _, ext := range extensions {
		p := filepath.Join(dir, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no descriptor for service %q in %s", name, dir)
}
