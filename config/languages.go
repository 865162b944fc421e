package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RuntimeKind distinguishes how a language runtime executes source code.
type RuntimeKind string

const (
	// RuntimeEmbedded runs source inside the worker process using the
	// interpreter compiled into the server binary.
	RuntimeEmbedded RuntimeKind = "embedded"
	// RuntimeExternal writes source to a temp file and spawns an external
	// interpreter binary against it.
	RuntimeExternal RuntimeKind = "external"
)

// Runtime describes one supported language. The coordinator routes requests
// by Name; adding or removing a runtime is purely a manifest change.
type Runtime struct {
	Name      string      `yaml:"name"`
	Kind      RuntimeKind `yaml:"kind"`
	Command   string      `yaml:"command,omitempty"`
	Args      []string    `yaml:"args,omitempty"`
	Extension string      `yaml:"extension,omitempty"`
}

// Validate checks a single runtime entry.
func (r *Runtime) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("language runtime with empty name")
	}
	switch r.Kind {
	case RuntimeEmbedded:
	case RuntimeExternal:
		if r.Command == "" {
			return fmt.Errorf("external runtime %q needs a command", r.Name)
		}
		if r.Extension == "" {
			return fmt.Errorf("external runtime %q needs a file extension", r.Name)
		}
	default:
		return fmt.Errorf("runtime %q has invalid kind %q, must be 'embedded' or 'external'", r.Name, r.Kind)
	}
	return nil
}

// DefaultRuntimes returns the built-in language table: Lua runs embedded,
// Python and Node.js run as spawned interpreter processes.
func DefaultRuntimes() []Runtime {
	return []Runtime{
		{Name: "lua", Kind: RuntimeEmbedded},
		{Name: "python3", Kind: RuntimeExternal, Command: "python3", Extension: ".py"},
		{Name: "nodejs", Kind: RuntimeExternal, Command: "node", Extension: ".js"},
	}
}

type runtimeManifest struct {
	Runtimes []Runtime `yaml:"runtimes"`
}

// LoadRuntimes reads a YAML runtime manifest of the form:
//
//	runtimes:
//	  - name: python3
//	    kind: external
//	    command: python3
//	    extension: .py
func LoadRuntimes(path string) ([]Runtime, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	var manifest runtimeManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}
	if len(manifest.Runtimes) == 0 {
		return nil, fmt.Errorf("manifest %s declares no runtimes", path)
	}

	seen := make(map[string]bool, len(manifest.Runtimes))
	for i := range manifest.Runtimes {
		if err := manifest.Runtimes[i].Validate(); err != nil {
			return nil, err
		}
		if seen[manifest.Runtimes[i].Name] {
			return nil, fmt.Errorf("duplicate runtime %q in %s", manifest.Runtimes[i].Name, path)
		}
		seen[manifest.Runtimes[i].Name] = true
	}

	return manifest.Runtimes, nil
}
