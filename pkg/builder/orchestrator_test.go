package builder

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngld/plugin-builder/pkg"
	"github.com/ngld/plugin-builder/pkg/cmake"
	"github.com/ngld/plugin-builder/pkg/plugins"
)

type runnerCall struct {
	dir  string
	args []string
}

// fakeRunner records every command and fails the configure steps and targets it was told to fail
type fakeRunner struct {
	calls          []runnerCall
	failConfigure  map[string]bool
	failTargets    map[string]bool
	errorConfigure bool
}

func (f *fakeRunner) Run(ctx context.Context, dir string, args []string) (int, error) {
	f.calls = append(f.calls, runnerCall{dir: dir, args: args})

	if len(args) > 4 && args[1] == "--build" {
		if f.failTargets[args[4]] {
			return 2, nil
		}
		return 0, nil
	}

	if f.errorConfigure {
		return -1, eris.New("cmake not found")
	}

	for _, arg := range args {
		if strings.HasPrefix(arg, "-DCUSTOM_PLUGIN_NAME=") && f.failConfigure[arg[len("-DCUSTOM_PLUGIN_NAME="):]] {
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeRunner) targets() []string {
	result := []string{}
	for _, call := range f.calls {
		if len(call.args) > 4 && call.args[1] == "--build" {
			result = append(result, call.args[4])
		}
	}
	return result
}

func (f *fakeRunner) configures() [][]string {
	result := [][]string{}
	for _, call := range f.calls {
		if call.args[1] != "--build" {
			result = append(result, call.args)
		}
	}
	return result
}

type fakeStager struct {
	dirs      [][2]string
	artifacts [][2]string
}

func (f *fakeStager) StageDir(ctx context.Context, src, dst string) (bool, error) {
	f.dirs = append(f.dirs, [2]string{src, dst})
	return true, nil
}

func (f *fakeStager) StageArtifact(ctx context.Context, src, dst string) error {
	f.artifacts = append(f.artifacts, [2]string{src, dst})
	return nil
}

func testContext() (context.Context, *bytes.Buffer) {
	buffer := new(bytes.Buffer)
	logger := zerolog.New(buffer)
	return pkg.WithLogger(context.Background(), &logger), buffer
}

func testOptions(t *testing.T) Options {
	t.Helper()
	work := t.TempDir()
	root := filepath.Join(work, "plugdata")
	require.NoError(t, os.MkdirAll(root, 0770))

	return Options{
		Generator:   cmake.Ninja,
		ProjectRoot: root,
		OutputRoot:  filepath.Join(work, "Build"),
		Host:        cmake.Linux,
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0770))
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0640))
}

func TestRun_MissingProjectRoot(t *testing.T) {
	ctx, logs := testContext()
	runner := new(fakeRunner)
	stager := new(fakeStager)
	opts := testOptions(t)
	opts.ProjectRoot = filepath.Join(t.TempDir(), "missing", "plugdata")

	entries := []*plugins.Entry{{Name: "Foo", Path: "foo.zip", Formats: []string{"VST3"}}}
	report, err := New(runner, stager).Run(ctx, entries, opts)

	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrProjectRootMissing))
	assert.Contains(t, err.Error(), opts.ProjectRoot)
	assert.Contains(t, logs.String(), opts.ProjectRoot)
	assert.Nil(t, report)
	assert.Empty(t, runner.calls)
	assert.Empty(t, stager.artifacts)
	assert.NoDirExists(t, opts.OutputRoot)
}

func TestRun_EndToEnd(t *testing.T) {
	ctx, _ := testContext()
	opts := testOptions(t)
	writeFile(t, filepath.Join(opts.ProjectRoot, "Plugins", "VST3", "Foo.vst3", "Contents", "x86_64-linux", "Foo.so"), "vst3")
	writeFile(t, filepath.Join(opts.ProjectRoot, "Plugins", "Standalone", "Foo"), "standalone")

	runner := new(fakeRunner)
	entries := []*plugins.Entry{{
		Name:    "Foo",
		Path:    "/x/foo.zip",
		Formats: []string{"VST3", "Standalone"},
		Type:    "fx",
		Version: plugins.DefaultVersion,
	}}

	report, err := New(runner, &FSStager{}).Run(ctx, entries, opts)
	require.NoError(t, err)
	assert.Empty(t, report.Failures)

	configures := runner.configures()
	require.Len(t, configures, 1)
	assert.Contains(t, configures[0], "-DCUSTOM_PLUGIN_NAME=Foo")
	assert.Contains(t, configures[0], "-DCUSTOM_PLUGIN_IS_FX=1")
	assert.Contains(t, configures[0], "-B"+filepath.Join(filepath.Dir(opts.ProjectRoot), "ninja-Foo"))
	assert.Equal(t, []string{"plugdata_fx_VST3", "plugdata_standalone"}, runner.targets())

	for _, call := range runner.calls {
		assert.Equal(t, opts.ProjectRoot, call.dir)
	}

	assert.FileExists(t, filepath.Join(opts.OutputRoot, "VST3", "Foo.vst3", "Contents", "x86_64-linux", "Foo.so"))
	assert.FileExists(t, filepath.Join(opts.OutputRoot, "Standalone", "Foo"))
	assert.Len(t, report.Staged, 2)
}

func TestRun_ConfigureFailureSkipsEntry(t *testing.T) {
	ctx, logs := testContext()
	runner := &fakeRunner{failConfigure: map[string]bool{"Foo": true}}
	stager := new(fakeStager)

	entries := []*plugins.Entry{
		{Name: "Foo", Path: "foo.zip", Formats: []string{"VST3"}},
		{Name: "Bar", Path: "bar.zip", Formats: []string{"CLAP"}},
	}

	report, err := New(runner, stager).Run(ctx, entries, testOptions(t))
	require.NoError(t, err)

	assert.Len(t, runner.configures(), 2)
	assert.Equal(t, []string{"plugdata_CLAP"}, runner.targets())
	assert.Equal(t, []string{"Bar"}, report.Configured)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "Foo", report.Failures[0].Plugin)
	assert.Equal(t, StepConfigure, report.Failures[0].Step)
	assert.Contains(t, logs.String(), "Failed cmake configure for Foo")
	require.Len(t, stager.artifacts, 1)
	assert.True(t, strings.HasSuffix(stager.artifacts[0][1], "Bar.clap"))
}

func TestRun_RunnerErrorIsNotFatal(t *testing.T) {
	ctx, _ := testContext()
	runner := &fakeRunner{errorConfigure: true}

	entries := []*plugins.Entry{{Name: "Foo", Path: "foo.zip"}, {Name: "Bar", Path: "bar.zip"}}
	report, err := New(runner, new(fakeStager)).Run(ctx, entries, testOptions(t))

	require.NoError(t, err)
	assert.Len(t, report.Failures, 2)
	assert.Empty(t, runner.targets())
}

func TestRun_BuildFailureStillStagesAndContinues(t *testing.T) {
	ctx, logs := testContext()
	runner := &fakeRunner{failTargets: map[string]bool{"plugdata_VST3": true}}
	stager := new(fakeStager)

	entries := []*plugins.Entry{{Name: "Foo", Path: "foo.zip", Formats: []string{"VST3", "LV2", "Standalone"}}}
	report, err := New(runner, stager).Run(ctx, entries, testOptions(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"plugdata_VST3", "plugdata_LV2", "plugdata_standalone"}, runner.targets())
	assert.Equal(t, []string{"plugdata_LV2", "plugdata_standalone"}, report.Built)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, StepBuild, report.Failures[0].Step)
	assert.Equal(t, "plugdata_VST3", report.Failures[0].Target)
	assert.Contains(t, logs.String(), "Failed to build target: plugdata_VST3")

	require.Len(t, stager.artifacts, 2)
	assert.True(t, strings.HasSuffix(stager.artifacts[0][0], filepath.Join("Plugins", "VST3", "Foo.vst3")))
	assert.True(t, strings.HasSuffix(stager.artifacts[1][0], filepath.Join("Plugins", "LV2", "Foo.lv2")))
	require.Len(t, stager.dirs, 1)
	assert.True(t, strings.HasSuffix(stager.dirs[0][1], "Standalone"))
}

func TestRun_ConfigureOnly(t *testing.T) {
	ctx, _ := testContext()
	runner := new(fakeRunner)
	stager := new(fakeStager)
	opts := testOptions(t)
	opts.ConfigureOnly = true

	entries := []*plugins.Entry{
		{Name: "Foo", Path: "foo.zip", Formats: []string{"VST3", "Standalone"}},
		{Name: "Bar", Path: "bar.zip", Formats: []string{"CLAP"}},
	}
	report, err := New(runner, stager).Run(ctx, entries, opts)
	require.NoError(t, err)

	assert.Len(t, runner.calls, 2)
	assert.Empty(t, runner.targets())
	assert.Empty(t, stager.artifacts)
	assert.Empty(t, stager.dirs)
	assert.Equal(t, []string{"Foo", "Bar"}, report.Configured)
}

func TestRun_AUOnlyOnDarwin(t *testing.T) {
	tests := []struct {
		name    string
		host    cmake.Host
		targets []string
	}{
		{"Linux", cmake.Linux, []string{"plugdata_VST3"}},
		{"Windows", cmake.Windows, []string{"plugdata_VST3"}},
		{"Darwin", cmake.Darwin, []string{"plugdata_AU", "plugdata_VST3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _ := testContext()
			runner := new(fakeRunner)
			stager := new(fakeStager)
			opts := testOptions(t)
			opts.Host = tt.host

			entries := []*plugins.Entry{{Name: "Foo", Path: "foo.zip", Formats: []string{"AU", "VST3"}}}
			_, err := New(runner, stager).Run(ctx, entries, opts)
			require.NoError(t, err)

			assert.Equal(t, tt.targets, runner.targets())
			assert.Len(t, stager.artifacts, len(tt.targets))
		})
	}
}

func TestRun_EmptyManifest(t *testing.T) {
	ctx, _ := testContext()
	runner := new(fakeRunner)
	opts := testOptions(t)

	report, err := New(runner, new(fakeStager)).Run(ctx, nil, opts)
	require.NoError(t, err)
	assert.Empty(t, runner.calls)
	assert.Empty(t, report.Failures)
	assert.DirExists(t, opts.OutputRoot)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, _ := testContext()
	ctx, cancel := context.WithCancel(ctx)
	cancel()
	runner := new(fakeRunner)

	entries := []*plugins.Entry{{Name: "Foo", Path: "foo.zip"}}
	_, err := New(runner, new(fakeStager)).Run(ctx, entries, testOptions(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, runner.calls)
}

func TestStage_SkipsCMake(t *testing.T) {
	ctx, _ := testContext()
	stager := new(fakeStager)

	entries := []*plugins.Entry{{Name: "Foo", Path: "foo.zip", Formats: []string{"AU", "CLAP", "Standalone"}}}
	report, err := New(new(fakeRunner), stager).Stage(ctx, entries, testOptions(t))
	require.NoError(t, err)

	require.Len(t, stager.artifacts, 1)
	assert.True(t, strings.HasSuffix(stager.artifacts[0][1], filepath.Join("CLAP", "Foo.clap")))
	assert.Len(t, stager.dirs, 1)
	assert.Len(t, report.Staged, 2)
}

func TestArtifactPaths(t *testing.T) {
	root := filepath.Join("work", "plugdata")
	out := "Build"

	tests := []struct {
		format string
		src    string
		dst    string
	}{
		{"VST3", filepath.Join(root, "Plugins", "VST3", "Foo.vst3"), filepath.Join(out, "VST3", "Foo.vst3")},
		{"AU", filepath.Join(root, "Plugins", "AU", "Foo.component"), filepath.Join(out, "AU", "Foo.component")},
		{"LV2", filepath.Join(root, "Plugins", "LV2", "Foo.lv2"), filepath.Join(out, "LV2", "Foo.lv2")},
		{"CLAP", filepath.Join(root, "Plugins", "CLAP", "Foo.clap"), filepath.Join(out, "CLAP", "Foo.clap")},
		{"AAX", filepath.Join(root, "Plugins", "AAX", "Foo"), filepath.Join(out, "AAX", "Foo")},
		{"Standalone", filepath.Join(root, "Plugins", "Standalone"), filepath.Join(out, "Standalone")},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			src, dst := ArtifactPaths("Foo", tt.format, root, out)
			assert.Equal(t, tt.src, src)
			assert.Equal(t, tt.dst, dst)
		})
	}
}
