// Package cmake derives the CMake configure and build invocations for plugin entries.
package cmake

import (
	"runtime"

	"github.com/rotisserie/eris"

	"github.com/ngld/plugin-builder/pkg/plugins"
)

// Generator selects the CMake project generator
type Generator string

const (
	Ninja        Generator = "ninja"
	Xcode        Generator = "xcode"
	VisualStudio Generator = "visualstudio"
)

// Generators lists all supported generators
var Generators = []Generator{Ninja, Xcode, VisualStudio}

// ParseGenerator validates the passed generator name
func ParseGenerator(name string) (Generator, error) {
	for _, gen := range Generators {
		if string(gen) == name {
			return gen, nil
		}
	}

	return "", eris.Errorf("Invalid generator %s (must be one of ninja, xcode or visualstudio)", name)
}

// Flags returns the generator arguments for the configure step
func (g Generator) Flags() []string {
	switch g {
	case Xcode:
		return []string{"-GXcode"}
	case VisualStudio:
		return []string{"-GVisual Studio 17 2022", "-A", "x64"}
	default:
		return []string{"-GNinja"}
	}
}

// Host identifies the operating system the build runs on (runtime.GOOS values)
type Host string

const (
	Windows Host = "windows"
	Darwin  Host = "darwin"
	Linux   Host = "linux"
)

// CurrentHost returns the host this process runs on
func CurrentHost() Host {
	return Host(runtime.GOOS)
}

// Supports reports whether format can be built on this host. AU plugins can only be built on macOS.
func (h Host) Supports(format string) bool {
	return format != plugins.FormatAU || h == Darwin
}

// CompilerFlags returns the explicit compiler override for the host and generator. Only Windows
// needs one and the Visual Studio generator picks its own compiler.
func CompilerFlags(host Host, gen Generator) []string {
	if host != Windows || gen == VisualStudio {
		return []string{}
	}

	return []string{"-DCMAKE_C_COMPILER=cl", "-DCMAKE_CXX_COMPILER=cl"}
}
