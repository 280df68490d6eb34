// Package configs embeds the configuration template written by
// `codeagent config init`.
//
// Layering (see internal/config Load):
//  1. Defaults (config.NewConfig)
//  2. User config (~/.config/codeagent/config.yaml)
//  3. Project config (.codeagent.yaml)
//  4. Environment variables (CODEAGENT_*)
package configs

import _ "embed"

// ConfigTemplate is a commented example of every section.
//
//go:embed config.example.yaml
var ConfigTemplate string
