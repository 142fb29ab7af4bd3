package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ngld/plugin-builder/pkg/builder"
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Copies the existing build artifacts into the output directory without running CMake",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newSession(cmd)
		if err != nil {
			return err
		}

		report, err := builder.New(sess.runner(), sess.stager()).Stage(sess.ctx, sess.entries, sess.opts)
		if err != nil {
			return err
		}

		logReport(sess.ctx, report)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stageCmd)
}
