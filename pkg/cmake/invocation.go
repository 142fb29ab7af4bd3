package cmake

import (
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/ngld/plugin-builder/pkg/plugins"
)

const (
	// Executable is the CMake binary looked up in PATH
	Executable = "cmake"

	// BuildConfig is used for both CMAKE_BUILD_TYPE and --config
	BuildConfig = "Release"

	standaloneTarget = "plugdata_standalone"
)

// Target returns the CMake target that builds format
func Target(format string, isFX bool) string {
	if format == plugins.FormatStandalone {
		return standaloneTarget
	}

	if isFX {
		return "plugdata_fx_" + format
	}
	return "plugdata_" + format
}

// BuildDir returns the build directory for a plugin. It sits next to the project root.
func BuildDir(projectRoot string, gen Generator, name string) string {
	return filepath.Join(filepath.Dir(projectRoot), string(gen)+"-"+name)
}

// Invocation holds everything needed to configure and build a single plugin
type Invocation struct {
	Entry            *plugins.Entry
	SourcePath       string
	BuildDir         string
	Generator        Generator
	Host             Host
	CompilerLauncher string
}

// NewInvocation resolves the plugin's source path and build directory. projectRoot has to be absolute.
func NewInvocation(entry *plugins.Entry, projectRoot string, gen Generator, host Host, launcher string) (*Invocation, error) {
	sourcePath, err := filepath.Abs(entry.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to resolve %s", entry.Path)
	}

	return &Invocation{
		Entry:            entry,
		SourcePath:       sourcePath,
		BuildDir:         BuildDir(projectRoot, gen, entry.Name),
		Generator:        gen,
		Host:             host,
		CompilerLauncher: launcher,
	}, nil
}

func boolFlag(value bool) string {
	if value {
		return "1"
	}
	return "0"
}

// ConfigureArgs returns the full configure command
func (i *Invocation) ConfigureArgs() []string {
	args := []string{Executable}
	args = append(args, i.Generator.Flags()...)
	args = append(args, CompilerFlags(i.Host, i.Generator)...)
	args = append(args,
		"-B"+i.BuildDir,
		"-DCUSTOM_PLUGIN_NAME="+i.Entry.Name,
		"-DCUSTOM_PLUGIN_PATH="+i.SourcePath,
		"-DCUSTOM_PLUGIN_COMPANY="+i.Entry.Company(),
		"-DCUSTOM_PLUGIN_VERSION="+i.Entry.Version,
		"-DCMAKE_BUILD_TYPE="+BuildConfig,
		"-DENABLE_GEM="+boolFlag(i.Entry.EnableGem),
		"-DENABLE_SFIZZ="+boolFlag(i.Entry.EnableSfizz),
		"-DENABLE_FFMPEG="+boolFlag(i.Entry.EnableFFmpeg),
		"-DCUSTOM_PLUGIN_IS_FX="+boolFlag(i.Entry.IsFX()),
	)

	if i.CompilerLauncher != "" {
		args = append(args,
			"-DCMAKE_C_COMPILER_LAUNCHER="+i.CompilerLauncher,
			"-DCMAKE_CXX_COMPILER_LAUNCHER="+i.CompilerLauncher,
		)
	}

	return args
}

// Formats returns the requested formats that can be built on the host, in manifest order
func (i *Invocation) Formats() []string {
	result := make([]string, 0, len(i.Entry.Formats))
	for _, format := range i.Entry.Formats {
		if i.Host.Supports(format) {
			result = append(result, format)
		}
	}

	return result
}

// Target returns the CMake target for format
func (i *Invocation) Target(format string) string {
	return Target(format, i.Entry.IsFX())
}

// BuildArgs returns the command that builds target
func (i *Invocation) BuildArgs(target string) []string {
	return []string{Executable, "--build", i.BuildDir, "--target", target, "--config", BuildConfig}
}
