package plugins

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/ngld/plugin-builder/pkg"
)

// Load reads the plugin manifest at path. The format is picked based on the file extension:
// .json, .yml/.yaml or .star.
func Load(ctx context.Context, path string) ([]*Entry, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "Could not open file %s.", path)
	}

	var entries []*Entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &entries)
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, &entries)
	case ".star":
		entries, err = runManifestScript(ctx, path, data)
	default:
		return nil, eris.Errorf("Unsupported manifest format %s", path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to parse %s.", path)
	}

	if err = validate(ctx, entries); err != nil {
		return nil, eris.Wrapf(err, "Invalid manifest %s", path)
	}

	return entries, nil
}

func validate(ctx context.Context, entries []*Entry) error {
	for idx, entry := range entries {
		if entry == nil {
			return eris.Errorf("plugin #%d is empty", idx)
		}

		if err := entry.normalize(idx); err != nil {
			return err
		}

		// CMake's project(VERSION) only accepts numeric components
		if _, err := semver.StrictNewVersion(entry.Version); err != nil {
			pkg.Log(ctx).Warn().
				Str("plugin", entry.Name).
				Msgf("version %s is not a plain major.minor.patch version", entry.Version)
		}

		for _, format := range entry.UnknownFormats() {
			pkg.Log(ctx).Warn().
				Str("plugin", entry.Name).
				Msgf("unknown format %s, the artifact will be staged without an extension", format)
		}
	}

	return nil
}
