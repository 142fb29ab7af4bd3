// Package builder runs the CMake configure and build steps for every plugin in a manifest and stages
// the produced artifacts into a per-format output tree.
// Everything runs sequentially. Only a missing project root aborts a run; failed configure, build and
// staging steps are logged, recorded in the Report and skipped.
package builder
