package config

import (
	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/ngld/plugin-builder/pkg/cmake"
)

// Settings describes all configuration options. Values are read from plugin-builder.toml and
// PLUGIN_BUILDER_* environment variables; command line flags override both.
type Settings struct {
	Config           string `default:"config.json" usage:"Plugin manifest (.json, .yml or .star)"`
	ProjectRoot      string `default:"plugdata" usage:"plugdata checkout that CMake runs in"`
	Output           string `default:"Build" usage:"Directory that receives the staged plugins"`
	Generator        string `default:"ninja" usage:"CMake generator: ninja, xcode or visualstudio"`
	CompilerLauncher string `usage:"Optional compiler launcher (e.g. ccache, sccache)"`
	ConfigureOnly    bool   `default:"false"`
	DryRun           bool   `default:"false" usage:"Only print the commands"`
	Progress         bool   `default:"true" usage:"Show progress bars while copying"`
	Log              struct {
		Level string `default:"info"`
		JSON  bool   `default:"false" usage:"Output JSONND instead of pretty console messages"`
	}
}

var logLevels = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
}

// Loader initializes an empty config object and returns a new Loader for this object
func Loader(files ...string) (*Settings, *aconfig.Loader) {
	if len(files) == 0 {
		files = []string{"plugin-builder.toml"}
	}

	cfg := Settings{}
	return &cfg, aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags: true,
		EnvPrefix: "PLUGIN_BUILDER",
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})
}

// Validate verifies that all config fields have valid values
func (cfg *Settings) Validate() error {
	if _, err := cmake.ParseGenerator(cfg.Generator); err != nil {
		return eris.Wrap(err, "Invalid value for generator")
	}

	if _, ok := logLevels[cfg.Log.Level]; !ok {
		return eris.Errorf(`Invalid value for log.level: %s`, cfg.Log.Level)
	}

	if cfg.Config == "" {
		return eris.New("No plugin manifest configured")
	}

	return nil
}

// GeneratorValue returns the parsed generator. Only valid after Validate succeeded.
func (cfg *Settings) GeneratorValue() cmake.Generator {
	return cmake.Generator(cfg.Generator)
}

// LogLevel converts the .Log.Level field to a zerolog.Level
func (cfg *Settings) LogLevel() zerolog.Level {
	return logLevels[cfg.Log.Level]
}
