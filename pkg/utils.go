package pkg

import (
	"os"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
)

// IsDir reports whether path exists and is a directory. Missing paths are not an error.
func IsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, eris.Wrapf(err, "Failed to check %s", path)
	}

	return info.IsDir(), nil
}

func PrintTask(msg string) {
	colorstring.Printf("[blue][bold]==>[default] %s\n", msg)
}

func PrintSubtask(msg string) {
	colorstring.Printf("[green][bold]  ->[reset] %s\n", msg)
}

func PrintError(msg string) {
	colorstring.Printf("[red][bold]  ->[reset] %s\n", msg)
}
