package cmd

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ngld/plugin-builder/pkg"
	"github.com/ngld/plugin-builder/pkg/builder"
	"github.com/ngld/plugin-builder/pkg/cmake"
	"github.com/ngld/plugin-builder/pkg/config"
	"github.com/ngld/plugin-builder/pkg/plugins"
)

var rootCmd = &cobra.Command{
	Use:   "plugin-builder",
	Short: "Builds plugdata plugins with CMake",
	Long: `Reads the plugin manifest (config.json by default), configures a CMake build directory
for every plugin next to the plugdata checkout, builds the requested formats and copies the
results into Build/<format>/.

Failed builds are reported but don't change the exit code. Only a missing plugdata checkout,
an unreadable manifest or invalid settings abort the run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newSession(cmd)
		if err != nil {
			return err
		}

		orch := builder.New(sess.runner(), sess.stager())
		report, err := orch.Run(sess.ctx, sess.entries, sess.opts)
		if err != nil {
			return err
		}

		logReport(sess.ctx, report)
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "config.json", "plugin manifest (.json, .yml, .yaml or .star)")
	flags.String("project-root", "plugdata", "plugdata checkout that CMake runs in")
	flags.String("output", "Build", "directory that receives the staged plugins")
	flags.String("generator", "ninja", "CMake generator to use: ninja, xcode or visualstudio")
	flags.String("compiler-launcher", "", "optional compiler launcher (e.g. ccache, sccache)")
	flags.BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	flags.Bool("no-progress", false, "don't show progress bars while copying")
	flags.String("log-level", "info", "log level: debug, info, warn or error")

	rootCmd.Flags().Bool("configure-only", false, "only run the CMake configure step, skip building and staging")
}

// Execute runs the root command and exits with status 1 on fatal errors
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		// a missing project root has already been logged
		if !eris.Is(err, builder.ErrProjectRootMissing) {
			pkg.PrintError(eris.ToString(err, os.Getenv(debugEnv) != ""))
		}
		os.Exit(1)
	}
}

type session struct {
	ctx      context.Context
	settings *config.Settings
	entries  []*plugins.Entry
	opts     builder.Options
}

func applyFlags(cmd *cobra.Command, settings *config.Settings) error {
	flags := cmd.Flags()
	var err error

	stringFlags := map[string]*string{
		"config":            &settings.Config,
		"project-root":      &settings.ProjectRoot,
		"output":            &settings.Output,
		"generator":         &settings.Generator,
		"compiler-launcher": &settings.CompilerLauncher,
		"log-level":         &settings.Log.Level,
	}
	for name, dest := range stringFlags {
		if flags.Changed(name) {
			*dest, err = flags.GetString(name)
			if err != nil {
				return err
			}
		}
	}

	if flags.Changed("configure-only") {
		settings.ConfigureOnly, err = flags.GetBool("configure-only")
		if err != nil {
			return err
		}
	}

	if flags.Changed("dry") {
		settings.DryRun, err = flags.GetBool("dry")
		if err != nil {
			return err
		}
	}

	if flags.Changed("no-progress") {
		noProgress, err := flags.GetBool("no-progress")
		if err != nil {
			return err
		}
		settings.Progress = !noProgress
	}

	return nil
}

func newLogger(settings *config.Settings, out io.Writer) zerolog.Logger {
	if !settings.Log.JSON {
		out = NewConsoleWriter(out)
	}

	return zerolog.New(out).Level(settings.LogLevel())
}

func newSession(cmd *cobra.Command) (*session, error) {
	settings, loader := config.Loader()
	err := loader.Load()
	if err != nil {
		return nil, eris.Wrap(err, "Failed to load settings")
	}

	err = applyFlags(cmd, settings)
	if err != nil {
		return nil, err
	}

	err = settings.Validate()
	if err != nil {
		return nil, err
	}

	logger := newLogger(settings, cmd.ErrOrStderr())
	ctx := pkg.WithLogger(context.Background(), &logger)

	entries, err := plugins.Load(ctx, settings.Config)
	if err != nil {
		return nil, err
	}

	return &session{
		ctx:      ctx,
		settings: settings,
		entries:  entries,
		opts: builder.Options{
			Generator:        settings.GeneratorValue(),
			CompilerLauncher: settings.CompilerLauncher,
			ConfigureOnly:    settings.ConfigureOnly,
			ProjectRoot:      settings.ProjectRoot,
			OutputRoot:       settings.Output,
			Host:             cmake.CurrentHost(),
		},
	}, nil
}

func (s *session) runner() builder.Runner {
	return &builder.ShellRunner{DryRun: s.settings.DryRun}
}

func (s *session) stager() builder.Stager {
	return &builder.FSStager{
		ShowProgress: s.settings.Progress,
		DryRun:       s.settings.DryRun,
	}
}

func logReport(ctx context.Context, report *builder.Report) {
	logger := pkg.Log(ctx)
	for _, failure := range report.Failures {
		event := logger.Warn().Str("plugin", failure.Plugin)
		if failure.Target != "" {
			event = event.Str("target", failure.Target)
		}
		event.Msgf("%s failed", failure.Step)
	}

	logger.Info().Msgf("Done: %d configured, %d built, %d staged, %d failed",
		len(report.Configured), len(report.Built), len(report.Staged), len(report.Failures))
}
