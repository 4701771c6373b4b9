package livepages

import "embed"

// EmbeddedAssets contains the page script and stylesheet served under /public/:
// livepages.js, livepages.css
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
