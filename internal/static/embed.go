// Package static provides the embedded site assets and their dispatcher.
package static

import "embed"

// Files contains the embedded stylesheet and icon.
//
//go:embed assets/*
var Files embed.FS
