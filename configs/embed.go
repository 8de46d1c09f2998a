// Package configs carries the embedded configuration template so
// `segmenta config init` works in every distribution, including
// binary releases where the repository tree is not available.
package configs

import _ "embed"

// ConfigTemplate is written by `segmenta config init` as a starting
// point. It documents every key with its default value.
//
//go:embed config.example.yaml
var ConfigTemplate string
