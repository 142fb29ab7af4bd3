package cmd

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ngld/plugin-builder/pkg"
	"github.com/ngld/plugin-builder/pkg/config"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle archive.tar.xz",
	Short: "Packs the staged plugins into a .tar.xz archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, loader := config.Loader()
		if err := loader.Load(); err != nil {
			return eris.Wrap(err, "Failed to load settings")
		}
		if err := applyFlags(cmd, settings); err != nil {
			return err
		}

		outputRoot := settings.Output
		isDir, err := pkg.IsDir(outputRoot)
		if err != nil {
			return err
		}
		if !isDir {
			return eris.Errorf("Nothing to bundle, %s doesn't exist", outputRoot)
		}

		var total int64
		err = filepath.Walk(outputRoot, func(path string, info os.FileInfo, err error) error {
			if err == nil && info.Mode().IsRegular() {
				total += info.Size()
			}
			return err
		})
		if err != nil {
			return eris.Wrapf(err, "Failed to scan %s", outputRoot)
		}

		pkg.PrintTask("Packing " + outputRoot + " into " + args[0])
		writer, err := pkg.NewTxzWriter(args[0])
		if err != nil {
			return err
		}

		var bar *progressbar.ProgressBar
		if !settings.Progress || os.Getenv("CI") == "true" {
			bar = progressbar.NewOptions64(total, progressbar.OptionSetVisibility(false))
		} else {
			bar = progressbar.DefaultBytes(total, "     pack")
		}

		err = writer.PackDirectory(outputRoot, filepath.Base(filepath.Clean(outputRoot)), bar)
		bar.Finish()
		if err != nil {
			writer.Close()
			return err
		}

		err = writer.Close()
		if err != nil {
			return err
		}

		pkg.PrintTask("Done")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bundleCmd)
}
