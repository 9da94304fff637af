// Package assets embeds files shipped with the binary.
package assets

import (
	_ "embed"
)

// DefaultConfigYAML is written to the config path on first run.
//
//go:embed defaults/config.yaml
var DefaultConfigYAML []byte
