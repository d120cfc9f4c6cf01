// Package config defines the format-agnostic model of a pipeline definition:
// the pipeline itself with its trigger filters, the package registries it may
// publish to, and the build, test and publish jobs with their steps.
//
// The `config.Model` is the single source of truth for the `plan` package.
// Concrete loaders, such as the HCL one, live in separate packages.
package config
