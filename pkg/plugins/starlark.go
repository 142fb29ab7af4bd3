package plugins

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"

	"github.com/ngld/plugin-builder/pkg"
)

type scriptCtx struct {
	ctx      context.Context
	filename string
	entries  []*Entry
}

func getCtx(thread *starlark.Thread) *scriptCtx {
	return thread.Local("scriptCtx").(*scriptCtx)
}

func position(thread *starlark.Thread) string {
	pos := thread.CallFrame(1).Pos
	return fmt.Sprintf("%s:%d:%d", getCtx(thread).filename, pos.Line, pos.Col)
}

func listToStrings(list *starlark.List, field string) ([]string, error) {
	if list == nil {
		return []string{}, nil
	}

	result := make([]string, 0, list.Len())
	iter := list.Iterate()
	defer iter.Done()

	var item starlark.Value
	for iter.Next(&item) {
		value, ok := item.(starlark.String)
		if !ok {
			return nil, eris.Errorf("expected all items in %s to be strings but found %s", field, item.Type())
		}

		result = append(result, value.GoString())
	}

	return result, nil
}

func starInfo(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message); err != nil {
		return nil, err
	}

	pkg.Log(getCtx(thread).ctx).Info().Msgf("%s: %s", position(thread), message)
	return starlark.None, nil
}

func starWarn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message); err != nil {
		return nil, err
	}

	pkg.Log(getCtx(thread).ctx).Warn().Msgf("%s: %s", position(thread), message)
	return starlark.None, nil
}

// plugin(name, path, formats=[], type="", author=None, version="", enable_gem=False, enable_sfizz=False,
// enable_ffmpeg=False) appends an entry to the manifest.
func starPlugin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var formats *starlark.List
	var author starlark.Value = starlark.None
	entry := new(Entry)

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &entry.Name, "path", &entry.Path,
		"formats?", &formats, "type?", &entry.Type, "author?", &author, "version?", &entry.Version,
		"enable_gem?", &entry.EnableGem, "enable_sfizz?", &entry.EnableSfizz, "enable_ffmpeg?", &entry.EnableFFmpeg)
	if err != nil {
		return nil, err
	}

	entry.Formats, err = listToStrings(formats, "formats")
	if err != nil {
		return nil, err
	}

	switch value := author.(type) {
	case starlark.NoneType:
	case starlark.String:
		company := value.GoString()
		entry.Author = &company
	default:
		return nil, eris.Errorf("%s: author must be a string or None, got %s", fn.Name(), author.Type())
	}

	ctx := getCtx(thread)
	ctx.entries = append(ctx.entries, entry)
	return starlark.None, nil
}

// runManifestScript executes a Starlark manifest and collects the entries declared with plugin()
func runManifestScript(ctx context.Context, filename string, script []byte) ([]*Entry, error) {
	builtins := starlark.StringDict{
		"OS":     starlark.String(runtime.GOOS),
		"ARCH":   starlark.String(runtime.GOARCH),
		"info":   starlark.NewBuiltin("info", starInfo),
		"warn":   starlark.NewBuiltin("warn", starWarn),
		"plugin": starlark.NewBuiltin("plugin", starPlugin),
	}

	thread := &starlark.Thread{
		Name: "manifest",
		Print: func(thread *starlark.Thread, msg string) {
			pkg.Log(ctx).Info().Str("thread", thread.Name).Msg(msg)
		},
	}
	threadCtx := scriptCtx{
		ctx:      ctx,
		filename: filename,
		entries:  make([]*Entry, 0),
	}
	thread.SetLocal("scriptCtx", &threadCtx)

	_, err := starlark.ExecFile(thread, filename, script, builtins)
	if err != nil {
		if evalError, ok := err.(*starlark.EvalError); ok {
			return nil, eris.Errorf("failed to execute %s:\n%s", filename, evalError.Backtrace())
		}
		return nil, eris.Wrap(err, "failed to execute")
	}

	return threadCtx.entries, nil
}
