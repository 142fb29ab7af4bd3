package builder

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/ngld/plugin-builder/pkg"
)

// Runner executes external commands and reports their exit status
type Runner interface {
	Run(ctx context.Context, dir string, args []string) (int, error)
}

func isPlainWord(value string) bool {
	if value == "" {
		return false
	}

	for _, c := range value {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.ContainsRune("-_./=:+,@%", c):
		default:
			return false
		}
	}
	return true
}

func commandExpr(args []string) *syntax.CallExpr {
	cmd := new(syntax.CallExpr)
	cmd.Args = make([]*syntax.Word, len(args))
	for a, arg := range args {
		var wordPart syntax.WordPart

		if isPlainWord(arg) {
			node := new(syntax.Lit)
			node.Value = arg
			wordPart = node
		} else {
			// the value is used verbatim, no globbing or expansion
			node := new(syntax.SglQuoted)
			node.Value = arg
			wordPart = node
		}

		cmd.Args[a] = &syntax.Word{Parts: []syntax.WordPart{wordPart}}
	}

	return cmd
}

// CommandLine renders args as a shell command line
func CommandLine(args []string) string {
	var buffer strings.Builder
	printer := syntax.NewPrinter(syntax.Minify(true))
	if err := printer.Print(&buffer, commandExpr(args)); err != nil {
		return strings.Join(args, " ")
	}

	return buffer.String()
}

// ShellRunner runs commands through the mvdan.cc/sh interpreter which resolves executables the same
// way on every platform
type ShellRunner struct {
	Stdout io.Writer
	Stderr io.Writer
	// DryRun only logs the commands
	DryRun bool
}

// Run executes args in dir and blocks until the command exits
func (r *ShellRunner) Run(ctx context.Context, dir string, args []string) (int, error) {
	if len(args) == 0 {
		return -1, eris.New("empty command")
	}

	cmd := commandExpr(args)
	pkg.Log(ctx).Info().
		Bool("command", true).
		Str("dir", dir).
		Msg(CommandLine(args))

	if r.DryRun {
		return 0, nil
	}

	stdout := r.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := r.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(os.Environ()...)),
		interp.ExecHandler(interp.DefaultExecHandler(2*time.Second)),
		interp.StdIO(nil, stdout, stderr),
	)
	if err != nil {
		return -1, eris.Wrap(err, "Failed to initialize runner")
	}

	err = runner.Run(ctx, &syntax.Stmt{Cmd: cmd})
	if err != nil {
		if status, ok := interp.IsExitStatus(err); ok {
			return int(status), nil
		}

		return -1, eris.Wrapf(err, "Failed to run %s", args[0])
	}

	return 0, nil
}
