package layout

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed layouts.yaml
var builtinYAML []byte

var (
	builtinOnce  sync.Once
	builtinStore *Store
	builtinErr   error
)

// Builtin returns the embedded layout set. The embedded document is part of
// the build, so a validation failure here is a programming error and panics.
func Builtin() *Store {
	builtinOnce.Do(func() {
		builtinStore, builtinErr = FromYAML(builtinYAML)
	})
	if builtinErr != nil {
		panic(fmt.Sprintf("layout: embedded layouts invalid: %v", builtinErr))
	}
	return builtinStore
}

// FromYAML parses and validates a layout document.
func FromYAML(data []byte) (*Store, error) {
	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	return fromYAMLFile(file)
}

// Load reads a layout document from disk, for overriding the embedded set.
func Load(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("layout: empty path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}
