package scope

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"sort"
	"sync"
)

// PluginSymbol is the exported variable every unit plugin must provide:
//
//	var Units = map[string]func() (any, error){ ... }
const PluginSymbol = "Units"

// PluginLoader resolves application-local units from Go plugins (*.so) in a
// directory, conventionally WEB-INF/lib under the document root. Plugins are
// opened lazily on the first lookup.
//
// Go cannot unload a plugin; after a redeploy the new scope reopens the
// files and freshly built plugins must use a new file name.
type PluginLoader struct {
	dir string

	once  sync.Once
	units map[string]Factory
	err   error
}

// NewPluginLoader creates a loader for dir. A missing dir yields no units.
func NewPluginLoader(dir string) *PluginLoader {
	return &PluginLoader{dir: dir}
}

// Load implements Loader.
func (l *PluginLoader) Load(id string) (Factory, error) {
	l.once.Do(l.open)
	if l.err != nil {
		return nil, l.err
	}
	f, ok := l.units[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, id)
	}
	return f, nil
}

func (l *PluginLoader) open() {
	l.units = make(map[string]Factory)

	paths, err := filepath.Glob(filepath.Join(l.dir, "*.so"))
	if err != nil {
		l.err = err
		return
	}
	if _, err := os.Stat(l.dir); errors.Is(err, os.ErrNotExist) {
		return
	}
	sort.Strings(paths)

	for _, p := range paths {
		plug, err := plugin.Open(p)
		if err != nil {
			l.err = fmt.Errorf("open plugin %s: %w", p, err)
			return
		}
		sym, err := plug.Lookup(PluginSymbol)
		if err != nil {
			l.err = fmt.Errorf("plugin %s: %w", p, err)
			return
		}
		table, ok := sym.(*map[string]func() (any, error))
		if !ok {
			l.err = fmt.Errorf("plugin %s: symbol %s has type %T", p, PluginSymbol, sym)
			return
		}
		for id, fn := range *table {
			l.units[id] = Factory(fn)
		}
	}
}
