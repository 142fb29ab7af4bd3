// Package plugins contains the plugin manifest model and its loaders.
package plugins

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Format tags understood by the plugdata CMake project
const (
	FormatVST3       = "VST3"
	FormatAU         = "AU"
	FormatLV2        = "LV2"
	FormatCLAP       = "CLAP"
	FormatStandalone = "Standalone"
)

// DefaultVersion is passed to CMake for entries without a version
const DefaultVersion = "1.0.0"

// NoAuthor is passed as the company name for entries without an author. CMake treats it as a false constant.
const NoAuthor = "False"

var extensions = map[string]string{
	FormatVST3: ".vst3",
	FormatAU:   ".component",
	FormatLV2:  ".lv2",
	FormatCLAP: ".clap",
}

// Extension returns the file extension of the artifact produced for format. Unknown formats and
// Standalone have none.
func Extension(format string) string {
	return extensions[format]
}

// KnownFormat reports whether format is one of the supported format tags
func KnownFormat(format string) bool {
	_, ok := extensions[format]
	return ok || format == FormatStandalone
}

// Entry describes a single plugin from the manifest
type Entry struct {
	Name    string   `json:"name" yaml:"name"`
	Path    string   `json:"path" yaml:"path"`
	Formats []string `json:"formats" yaml:"formats"`
	Type    string   `json:"type" yaml:"type"`
	Author  *string  `json:"author" yaml:"author"`
	Version string   `json:"version" yaml:"version"`

	EnableGem    bool `json:"enable_gem" yaml:"enable_gem"`
	EnableSfizz  bool `json:"enable_sfizz" yaml:"enable_sfizz"`
	EnableFFmpeg bool `json:"enable_ffmpeg" yaml:"enable_ffmpeg"`
}

// IsFX reports whether the plugin is an effect rather than an instrument
func (e *Entry) IsFX() bool {
	return strings.EqualFold(e.Type, "fx")
}

// Company returns the value for CUSTOM_PLUGIN_COMPANY
func (e *Entry) Company() string {
	if e.Author == nil {
		return NoAuthor
	}

	return *e.Author
}

// UnknownFormats lists the requested formats that aren't known format tags
func (e *Entry) UnknownFormats() []string {
	result := []string{}
	for _, format := range e.Formats {
		if !KnownFormat(format) {
			result = append(result, format)
		}
	}

	return result
}

func (e *Entry) normalize(idx int) error {
	if e.Name == "" {
		return eris.Errorf("plugin #%d is missing a name", idx)
	}

	if e.Path == "" {
		return eris.Errorf("plugin %s (#%d) is missing a path", e.Name, idx)
	}

	if e.Version == "" {
		e.Version = DefaultVersion
	}

	if e.Formats == nil {
		e.Formats = []string{}
	}

	return nil
}
