package builder

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/ngld/plugin-builder/pkg"
	"github.com/ngld/plugin-builder/pkg/cmake"
	"github.com/ngld/plugin-builder/pkg/plugins"
)

// ErrProjectRootMissing is returned by Run if the plugdata checkout doesn't exist
var ErrProjectRootMissing = eris.New("project root not found")

// Step names used in Failure
const (
	StepConfigure = "configure"
	StepBuild     = "build"
	StepStage     = "stage"
)

// Options controls a single run
type Options struct {
	Generator        cmake.Generator
	CompilerLauncher string
	ConfigureOnly    bool
	// ProjectRoot is the plugdata checkout. CMake runs inside it and build directories are created next to it.
	ProjectRoot string
	// OutputRoot receives one sub-directory per format
	OutputRoot string
	Host       cmake.Host
}

// Failure describes a step that failed without aborting the run
type Failure struct {
	Plugin string
	Step   string
	Target string
	Err    error
}

// Report summarizes a run
type Report struct {
	Configured []string
	Built      []string
	Staged     []string
	Failures   []Failure
}

func (r *Report) fail(plugin, step, target string, err error) {
	r.Failures = append(r.Failures, Failure{Plugin: plugin, Step: step, Target: target, Err: err})
}

// Orchestrator drives the configure, build and staging steps
type Orchestrator struct {
	runner Runner
	stager Stager
}

// New creates an Orchestrator that executes commands with runner and copies artifacts with stager
func New(runner Runner, stager Stager) *Orchestrator {
	return &Orchestrator{
		runner: runner,
		stager: stager,
	}
}

func (o *Orchestrator) prepare(ctx context.Context, opts *Options) error {
	projectRoot, err := filepath.Abs(opts.ProjectRoot)
	if err != nil {
		return eris.Wrapf(err, "Failed to resolve %s", opts.ProjectRoot)
	}

	isDir, err := pkg.IsDir(projectRoot)
	if err != nil {
		return err
	}

	if !isDir {
		pkg.Log(ctx).Error().
			Str("path", projectRoot).
			Msgf("plugdata directory not found: %s", projectRoot)
		return eris.Wrapf(ErrProjectRootMissing, "plugdata directory not found: %s", projectRoot)
	}
	opts.ProjectRoot = projectRoot

	outputRoot, err := filepath.Abs(opts.OutputRoot)
	if err != nil {
		return eris.Wrapf(err, "Failed to resolve %s", opts.OutputRoot)
	}
	opts.OutputRoot = outputRoot

	return nil
}

// Run configures, builds and stages every entry in order. Only a missing project root (or a cancelled
// context) returns an error; every other failure is logged and recorded in the returned Report.
func (o *Orchestrator) Run(ctx context.Context, entries []*plugins.Entry, opts Options) (*Report, error) {
	err := o.prepare(ctx, &opts)
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(opts.OutputRoot, 0770)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to create %s", opts.OutputRoot)
	}

	report := new(Report)
	for _, entry := range entries {
		if err = ctx.Err(); err != nil {
			return report, err
		}

		o.runEntry(ctx, entry, opts, report)
	}

	return report, nil
}

func (o *Orchestrator) runEntry(ctx context.Context, entry *plugins.Entry, opts Options, report *Report) {
	logger := pkg.Log(ctx).With().Str("plugin", entry.Name).Logger()
	ctx = pkg.WithLogger(ctx, &logger)
	logger.Info().Msgf("Processing: %s", entry.Name)

	inv, err := cmake.NewInvocation(entry, opts.ProjectRoot, opts.Generator, opts.Host, opts.CompilerLauncher)
	if err != nil {
		logger.Error().Err(err).Msgf("Failed cmake configure for %s", entry.Name)
		report.fail(entry.Name, StepConfigure, "", err)
		return
	}

	status, err := o.runner.Run(ctx, opts.ProjectRoot, inv.ConfigureArgs())
	if err != nil || status != 0 {
		if err == nil {
			err = eris.Errorf("cmake exited with status %d", status)
		}
		logger.Error().Err(err).Msgf("Failed cmake configure for %s", entry.Name)
		report.fail(entry.Name, StepConfigure, "", err)
		return
	}
	report.Configured = append(report.Configured, entry.Name)

	if opts.ConfigureOnly {
		return
	}

	for _, format := range inv.Formats() {
		if ctx.Err() != nil {
			return
		}

		target := inv.Target(format)
		logger.Info().Str("target", target).Msgf("Building target: %s", target)

		status, err = o.runner.Run(ctx, opts.ProjectRoot, inv.BuildArgs(target))
		if err != nil || status != 0 {
			if err == nil {
				err = eris.Errorf("cmake exited with status %d", status)
			}
			logger.Error().Err(err).Str("target", target).Msgf("Failed to build target: %s", target)
			report.fail(entry.Name, StepBuild, target, err)
		} else {
			logger.Info().Str("target", target).Msgf("Successfully built: %s", target)
			report.Built = append(report.Built, target)
		}

		// staging runs even after a failed build and picks up whatever the previous build left behind
		o.stageFormat(ctx, entry.Name, format, opts, report)
	}
}

// Stage copies the artifacts of every entry into the output tree without running CMake
func (o *Orchestrator) Stage(ctx context.Context, entries []*plugins.Entry, opts Options) (*Report, error) {
	err := o.prepare(ctx, &opts)
	if err != nil {
		return nil, err
	}

	report := new(Report)
	for _, entry := range entries {
		logger := pkg.Log(ctx).With().Str("plugin", entry.Name).Logger()
		entryCtx := pkg.WithLogger(ctx, &logger)

		for _, format := range entry.Formats {
			if err = ctx.Err(); err != nil {
				return report, err
			}

			if opts.Host.Supports(format) {
				o.stageFormat(entryCtx, entry.Name, format, opts, report)
			}
		}
	}

	return report, nil
}

// ArtifactPaths returns the source and destination used to stage format for the named plugin.
// For Standalone both paths are directories that are copied as a whole.
func ArtifactPaths(name, format, projectRoot, outputRoot string) (string, string) {
	formatDir := filepath.Join(projectRoot, "Plugins", format)
	targetDir := filepath.Join(outputRoot, format)

	if format == plugins.FormatStandalone {
		return formatDir, targetDir
	}

	filename := name + plugins.Extension(format)
	return filepath.Join(formatDir, filename), filepath.Join(targetDir, filename)
}

func (o *Orchestrator) stageFormat(ctx context.Context, name, format string, opts Options, report *Report) {
	src, dst := ArtifactPaths(name, format, opts.ProjectRoot, opts.OutputRoot)

	if format == plugins.FormatStandalone {
		staged, err := o.stager.StageDir(ctx, src, dst)
		if err != nil {
			pkg.Log(ctx).Error().Err(err).Str("path", dst).Msgf("Failed to stage %s", format)
			report.fail(name, StepStage, format, err)
		} else if staged {
			report.Staged = append(report.Staged, dst)
		}
		return
	}

	err := o.stager.StageArtifact(ctx, src, dst)
	if err != nil {
		pkg.Log(ctx).Error().Err(err).Str("path", dst).Msgf("Failed to stage %s", format)
		report.fail(name, StepStage, format, err)
		return
	}
	report.Staged = append(report.Staged, dst)
}
