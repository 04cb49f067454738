// Package configs embeds the configuration template written by
// `docfuse init`.
//
// Configuration hierarchy (see internal/config Load):
//  1. Defaults (config.NewConfig)
//  2. User config (~/.config/docfuse/config.yaml)
//  3. Project config (.docfuse.yaml, .docfuse.yml or .docfuse.toml)
//  4. DOCFUSE_* environment variables
//
// Keep the template's values in sync with config.NewConfig; a test checks
// that loading it yields the defaults.
package configs

import _ "embed"

// ProjectConfigTemplate is the commented .docfuse.yaml written at the
// project root.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
