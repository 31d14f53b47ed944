package descriptor

import (
	"fmt"
	"strings"

	"github.com/ezenkico/deploy-commander/stack-reconciler/models"
)

// Order returns the descriptors so every service comes after the ones it
// depends on. Unknown dependencies and cycles are validation errors.
func Order(descriptors []models.ServiceDescriptor) ([]models.ServiceDescriptor, error) {
	byName := make(map[string]models.ServiceDescriptor, len(descriptors))
	for _, d := range descriptors {
		if _, dup := byName[d.Name]; dup {
			return nil, models.NewValidationError(fmt.Sprintf("duplicate service %q", d.Name), nil)
		}
		byName[d.Name] = d
	}

	if err := checkDependsOnExist(descriptors, byName); err != nil {
		return nil, err
	}

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)

	state := make(map[string]uint8, len(descriptors))
	var path []string
	out := make([]models.ServiceDescriptor, 0, len(descriptors))

	var dfs func(string) error
	dfs = func(node string) error {
		switch state[node] {
		case visiting:
			return models.NewValidationError("circular dependency detected: "+cyclePath(path, node), nil)
		case visited:
			return nil
		}

		state[node] = visiting
		path = append(path, node)
		for _, dep := range byName[node].DependsOn {
			dep = strings.TrimSpace(dep)
			if dep == "" {
				continue
			}
			if err := dfs(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[node] = visited
		out = append(out, byName[node])
		return nil
	}

	// Input order keeps the result stable for independent services.
	for _, d := range descriptors {
		if err := dfs(d.Name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func checkDependsOnExist(descriptors []models.ServiceDescriptor, byName map[string]models.ServiceDescriptor) error {
	for _, d := range descriptors {
		for _, dep := range d.DependsOn {
			dep = strings.TrimSpace(dep)
			if dep == "" {
				continue
			}
			if _, ok := byName[dep]; !ok {
				return models.NewValidationError(
					fmt.Sprintf("service %q depends_on %q, but %q does not exist", d.Name, dep, dep), nil).
					WithService(d.Name)
			}
		}
	}
	return nil
}

// cyclePath renders the cycle closing at start, e.g. "a" -> "b" -> "a".
func cyclePath(path []string, start string) string {
	i := len(path) - 1
	for i >= 0 && path[i] != start {
		i--
	}
	cycle := append(append([]string(nil), path[i:]...), start)

	quoted := make([]string, len(cycle))
	for j, s := range cycle {
		quoted[j] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, " -> ")
}
