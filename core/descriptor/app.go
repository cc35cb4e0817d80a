package descriptor

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App is an application's own descriptor (WEB-INF/web.yaml under the doc root).
type App struct {
	Handlers     []Handler     `yaml:"handlers"`
	Interceptors []Interceptor `yaml:"interceptors"`
	Listeners    []string      `yaml:"listeners"`
}

// Handler maps exact URI patterns to a handler unit.
type Handler struct {
	Name       string            `yaml:"name"`
	Unit       string            `yaml:"unit"`
	Patterns   []string          `yaml:"patterns"`
	InitParams map[string]string `yaml:"init_params"`
	Eager      bool              `yaml:"eager"`
}

// Interceptor maps patterns (exact, "/*" or "/*.ext") to an interceptor unit.
type Interceptor struct {
	Name       string            `yaml:"name"`
	Unit       string            `yaml:"unit"`
	Patterns   []string          `yaml:"patterns"`
	InitParams map[string]string `yaml:"init_params"`
}

// LoadApp reads an application descriptor. A missing file yields an empty
// descriptor; such applications serve static content and pages only.
func LoadApp(path string) (App, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return App{}, nil
	}
	if err != nil {
		return App{}, fmt.Errorf("read app descriptor %s: %w", path, err)
	}
	return ParseApp(data)
}

// ParseApp decodes and validates an application descriptor.
func ParseApp(data []byte) (App, error) {
	var a App
	if err := yaml.Unmarshal(data, &a); err != nil {
		return App{}, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}
	if err := a.Validate(); err != nil {
		return App{}, err
	}
	return a, nil
}

// Validate rejects duplicate handler patterns, names and units, and
// duplicate interceptor names.
func (a App) Validate() error {
	names := map[string]struct{}{}
	units := map[string]struct{}{}
	patterns := map[string]string{}

	for _, h := range a.Handlers {
		if h.Name == "" || h.Unit == "" {
			return fmt.Errorf("%w: handler requires name and unit", ErrInvalidDescriptor)
		}
		if _, dup := names[h.Name]; dup {
			return fmt.Errorf("%w: handler name %q", ErrDuplicateMapping, h.Name)
		}
		names[h.Name] = struct{}{}
		if _, dup := units[h.Unit]; dup {
			return fmt.Errorf("%w: handler unit %q", ErrDuplicateMapping, h.Unit)
		}
		units[h.Unit] = struct{}{}
		for _, p := range h.Patterns {
			if owner, dup := patterns[p]; dup {
				return fmt.Errorf("%w: pattern %q mapped by %q and %q", ErrDuplicateMapping, p, owner, h.Name)
			}
			patterns[p] = h.Name
		}
	}

	inames := map[string]struct{}{}
	for _, ic := range a.Interceptors {
		if ic.Name == "" || ic.Unit == "" {
			return fmt.Errorf("%w: interceptor requires name and unit", ErrInvalidDescriptor)
		}
		if _, dup := inames[ic.Name]; dup {
			return fmt.Errorf("%w: interceptor name %q", ErrDuplicateMapping, ic.Name)
		}
		inames[ic.Name] = struct{}{}
	}
	return nil
}
