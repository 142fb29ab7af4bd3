package builder

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"

	"github.com/ngld/plugin-builder/pkg"
)

// Stager copies build artifacts into the output tree
type Stager interface {
	// StageDir replaces dst with a copy of the directory src. It returns false without touching dst
	// if src is not a directory.
	StageDir(ctx context.Context, src, dst string) (bool, error)
	// StageArtifact replaces dst with a copy of src which can either be a file or a bundle directory.
	// The parent of dst is created as needed.
	StageArtifact(ctx context.Context, src, dst string) error
}

// FSStager implements Stager on the local filesystem
type FSStager struct {
	// ShowProgress renders a progress bar for each copy
	ShowProgress bool
	// DryRun only logs the copies
	DryRun bool
}

func (s *FSStager) progressBar(length int64, desc string) *progressbar.ProgressBar {
	if !s.ShowProgress || os.Getenv("CI") == "true" {
		return progressbar.NewOptions64(length, progressbar.OptionSetVisibility(false))
	}

	return progressbar.DefaultBytes(length, desc)
}

func (s *FSStager) StageDir(ctx context.Context, src, dst string) (bool, error) {
	isDir, err := pkg.IsDir(src)
	if err != nil || !isDir {
		return false, err
	}

	pkg.Log(ctx).Info().Str("path", dst).Msgf("Staging %s", dst)
	if s.DryRun {
		return true, nil
	}

	return true, s.replaceTree(src, dst)
}

func (s *FSStager) StageArtifact(ctx context.Context, src, dst string) error {
	if !s.DryRun {
		destParent := filepath.Dir(dst)
		err := os.MkdirAll(destParent, 0770)
		if err != nil {
			return eris.Wrapf(err, "Failed to create directory %s", destParent)
		}
	}

	info, err := os.Stat(src)
	if err != nil {
		return eris.Wrapf(err, "Could not find artifact %s", src)
	}

	pkg.Log(ctx).Info().Str("path", dst).Msgf("Staging %s", dst)
	if s.DryRun {
		return nil
	}

	if info.IsDir() {
		return s.replaceTree(src, dst)
	}

	err = os.RemoveAll(dst)
	if err != nil {
		return eris.Wrapf(err, "Could not delete %s", dst)
	}

	bar := s.progressBar(info.Size(), "      stage")
	defer bar.Finish()
	return copyFile(src, dst, info, bar)
}

func (s *FSStager) replaceTree(src, dst string) error {
	err := os.RemoveAll(dst)
	if err != nil {
		return eris.Wrapf(err, "Could not delete %s", dst)
	}

	var total int64
	err = filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err == nil && info.Mode().IsRegular() {
			total += info.Size()
		}
		return err
	})
	if err != nil {
		return eris.Wrapf(err, "Failed to scan %s", src)
	}

	bar := s.progressBar(total, "      stage")
	defer bar.Finish()

	return copyTree(src, dst, bar)
}

func copyTree(src, dst string, progress io.Writer) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return eris.Wrapf(err, "Failed to read %s", path)
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return eris.Wrapf(err, "Failed to resolve %s", path)
		}
		target := filepath.Join(dst, rel)

		switch {
		case info.IsDir():
			err = os.MkdirAll(target, info.Mode().Perm()|0700)
			if err != nil {
				return eris.Wrapf(err, "Failed to create directory %s", target)
			}
		case info.Mode()&os.ModeSymlink != 0:
			// plugin bundles on macOS contain framework symlinks which have to survive the copy
			link, err := os.Readlink(path)
			if err != nil {
				return eris.Wrapf(err, "Failed to read symlink %s", path)
			}

			err = os.Symlink(link, target)
			if err != nil {
				return eris.Wrapf(err, "Failed to create symlink %s pointing to %s", target, link)
			}
		default:
			return copyFile(path, target, info, progress)
		}

		return nil
	})
}

// copyFile copies the contents, permissions and modification time of src to dst
func copyFile(src, dst string, info os.FileInfo, progress io.Writer) error {
	srcHandle, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "Failed to open file %s", src)
	}
	defer srcHandle.Close()

	dstHandle, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return eris.Wrapf(err, "Failed to create file %s", dst)
	}

	_, err = io.Copy(io.MultiWriter(dstHandle, progress), srcHandle)
	if err != nil {
		dstHandle.Close()
		return eris.Wrapf(err, "Failed to copy %s to %s", src, dst)
	}

	err = dstHandle.Close()
	if err != nil {
		return eris.Wrapf(err, "Failed to write %s", dst)
	}

	err = os.Chmod(dst, info.Mode().Perm())
	if err != nil {
		return eris.Wrapf(err, "Failed to set permissions on %s", dst)
	}

	err = os.Chtimes(dst, info.ModTime(), info.ModTime())
	if err != nil {
		return eris.Wrapf(err, "Failed to set modification time on %s", dst)
	}

	return nil
}
