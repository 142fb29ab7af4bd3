package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ngld/plugin-builder/pkg"
	"github.com/ngld/plugin-builder/pkg/builder"
	"github.com/ngld/plugin-builder/pkg/cmake"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Lists the CMake commands and targets for every plugin without running them",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newSession(cmd)
		if err != nil {
			return err
		}

		projectRoot, err := filepath.Abs(sess.opts.ProjectRoot)
		if err != nil {
			return eris.Wrapf(err, "Failed to resolve %s", sess.opts.ProjectRoot)
		}

		for _, entry := range sess.entries {
			inv, err := cmake.NewInvocation(entry, projectRoot, sess.opts.Generator, sess.opts.Host, sess.opts.CompilerLauncher)
			if err != nil {
				return err
			}

			pkg.PrintTask(entry.Name)
			pkg.PrintSubtask("build dir: " + inv.BuildDir)
			pkg.PrintSubtask("configure: " + builder.CommandLine(inv.ConfigureArgs()))
			for _, format := range inv.Formats() {
				src, dst := builder.ArtifactPaths(entry.Name, format, projectRoot, sess.opts.OutputRoot)
				pkg.PrintSubtask(fmt.Sprintf("%s: %s (%s -> %s)", format, inv.Target(format), src, dst))
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(targetsCmd)
}
