// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

// Build identity, injected via -ldflags at release time.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)
