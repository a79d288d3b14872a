// Package buildinfo extracts build and dependency information from the
// running binary via runtime/debug, so ServiceStatus can report the exact
// module version and dependency set a deployed indexer was built from
// without threading ldflags through every build.
package buildinfo

import (
	"runtime/debug"
	"sort"
)

// Dependency is one module dependency and its resolved version.
type Dependency struct {
	Path    string `json:"path"`
	Version string `json:"version"`
	Replace string `json:"replace,omitempty"`
}

// Info is the build-time information attached to ServiceStatus.
type Info struct {
	GoVersion    string       `json:"goVersion"`
	MainModule   string       `json:"mainModule"`
	MainVersion  string       `json:"mainVersion"`
	Dependencies []Dependency `json:"dependencies"`
}

// Get extracts build information from the current binary. Dependencies are
// sorted by path for a stable, diffable status payload.
func Get() *Info {
	raw, ok := debug.ReadBuildInfo()
	if !ok {
		return &Info{GoVersion: "unknown", MainModule: "unknown", MainVersion: "unknown"}
	}

	info := &Info{
		GoVersion:    raw.GoVersion,
		MainModule:   raw.Path,
		MainVersion:  raw.Main.Version,
		Dependencies: make([]Dependency, 0, len(raw.Deps)),
	}

	for _, dep := range raw.Deps {
		d := Dependency{Path: dep.Path, Version: dep.Version}
		if dep.Replace != nil {
			d.Replace = dep.Replace.Path + "@" + dep.Replace.Version
		}
		info.Dependencies = append(info.Dependencies, d)
	}

	sort.Slice(info.Dependencies, func(i, j int) bool {
		return info.Dependencies[i].Path < info.Dependencies[j].Path
	})

	return info
}

// Version returns the running indexer module's own version, or "dev" when
// built without module version information (e.g. `go run`).
func Version() string {
	raw, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	if raw.Main.Version == "" || raw.Main.Version == "(devel)" {
		return "dev"
	}
	return raw.Main.Version
}

// Of returns version information for a specific dependency module path, or
// nil if the running binary does not depend on it.
func Of(modulePath string) *Dependency {
	raw, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	for _, dep := range raw.Deps {
		if dep.Path == modulePath {
			d := Dependency{Path: dep.Path, Version: dep.Version}
			if dep.Replace != nil {
				d.Replace = dep.Replace.Path + "@" + dep.Replace.Version
			}
			return &d
		}
	}
	return nil
}
