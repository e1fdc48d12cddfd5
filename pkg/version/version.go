// Package version holds the build version, set via -ldflags at release time.
package version

// Version is the hostwatch release version.
var Version = "dev"
