package pkg

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/ulikunitz/xz"
)

// TxzWriter writes .tar.xz archives
type TxzWriter struct {
	hdl *os.File
	xz  *xz.Writer
	tar *tar.Writer
}

// NewTxzWriter creates a new TxzWriter instance and opens it for writing
func NewTxzWriter(filename string) (*TxzWriter, error) {
	hdl, err := os.Create(filename)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to create %s", filename)
	}

	xzWriter, err := xz.NewWriter(hdl)
	if err != nil {
		hdl.Close()
		return nil, eris.Wrap(err, "Failed to initialize xz compression")
	}

	return &TxzWriter{
		hdl: hdl,
		xz:  xzWriter,
		tar: tar.NewWriter(xzWriter),
	}, nil
}

// WriteDir adds a directory entry. name uses forward slashes.
func (w *TxzWriter) WriteDir(name string, info os.FileInfo) error {
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return eris.Wrapf(err, "Failed to build header for %s", name)
	}
	header.Name = name + "/"

	return w.tar.WriteHeader(header)
}

// WriteSymlink adds a symlink entry pointing to target
func (w *TxzWriter) WriteSymlink(name string, info os.FileInfo, target string) error {
	header, err := tar.FileInfoHeader(info, target)
	if err != nil {
		return eris.Wrapf(err, "Failed to build header for %s", name)
	}
	header.Name = name

	return w.tar.WriteHeader(header)
}

// WriteFile adds a regular file and copies its content from reader
func (w *TxzWriter) WriteFile(name string, info os.FileInfo, reader io.Reader) error {
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return eris.Wrapf(err, "Failed to build header for %s", name)
	}
	header.Name = name

	err = w.tar.WriteHeader(header)
	if err != nil {
		return eris.Wrapf(err, "Failed to write header for %s", name)
	}

	_, err = io.Copy(w.tar, reader)
	if err != nil {
		return eris.Wrapf(err, "Failed to write %s", name)
	}

	return nil
}

// Close finishes the archive and closes the underlying file
func (w *TxzWriter) Close() error {
	err := w.tar.Close()
	if err != nil {
		w.hdl.Close()
		return eris.Wrap(err, "Failed to finish tar stream")
	}

	err = w.xz.Close()
	if err != nil {
		w.hdl.Close()
		return eris.Wrap(err, "Failed to finish xz stream")
	}

	return w.hdl.Close()
}

// PackDirectory recursively adds the contents of dir to the archive. Entry names are relative to dir
// and prefixed with prefix. progress receives the bytes of every packed file.
func (w *TxzWriter) PackDirectory(dir, prefix string, progress io.Writer) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return eris.Wrapf(err, "Failed to read %s", path)
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		name := filepath.ToSlash(filepath.Join(prefix, rel))

		switch {
		case info.IsDir():
			return w.WriteDir(name, info)
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return eris.Wrapf(err, "Failed to read symlink %s", path)
			}
			return w.WriteSymlink(name, info, target)
		case info.Mode().IsRegular():
			f, err := os.Open(path)
			if err != nil {
				return eris.Wrapf(err, "Failed to open file %s", path)
			}
			defer f.Close()

			return w.WriteFile(name, info, io.TeeReader(f, progress))
		default:
			return nil
		}
	})
}
