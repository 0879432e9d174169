// Package encoding resolves the solver-native programs that are selected by
// name rather than authored here: the search core and one meta-interpreter.
package encoding

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrUnknownMetaInterpreter is returned for names outside the registry.
var ErrUnknownMetaInterpreter = errors.New("unknown meta-interpreter")

// Default is the meta-interpreter used when none is chosen.
const Default = "std"

// CoreFile is the search core, relative to the encodings directory.
var CoreFile = filepath.Join("search", "core.lp")

var metaInterpreters = map[string]string{
	"std":            filepath.Join("meta-int", "standard", "meta.lp"),
	"bd":             filepath.Join("meta-int", "body-decoupled", "meta.lp"),
	"bd-reach":       filepath.Join("meta-int", "body-decoupled", "meta-reach.lp"),
	"bd-tight":       filepath.Join("meta-int", "body-decoupled", "meta-tight.lp"),
	"bd-tight-reach": filepath.Join("meta-int", "body-decoupled", "meta-tight-reach.lp"),
}

// Names lists the registered meta-interpreters, sorted.
func Names() []string {
	names := make([]string, 0, len(metaInterpreters))
	for n := range metaInterpreters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MetaInterpreter returns the path of the named meta-interpreter under dir.
func MetaInterpreter(dir, name string) (string, error) {
	rel, ok := metaInterpreters[name]
	if !ok {
		return "", fmt.Errorf("%w %q (valid: %v)", ErrUnknownMetaInterpreter, name, Names())
	}
	return filepath.Join(dir, rel), nil
}

// Sources returns the full program: the domain files in order, then the
// search core, then the meta-interpreter. Every file must exist.
func Sources(dir, name string, domain []string) ([]string, error) {
	meta, err := MetaInterpreter(dir, name)
	if err != nil {
		return nil, err
	}
	if len(domain) == 0 {
		return nil, errors.New("no domain files given")
	}
	out := make([]string, 0, len(domain)+2)
	out = append(out, domain...)
	out = append(out, filepath.Join(dir, CoreFile), meta)
	for _, p := range out {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("program source: %w", err)
		}
	}
	return out, nil
}
