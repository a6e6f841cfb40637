// Package version holds the build version.
package version

// Version is the current timematch version
const Version = "0.3.0"
