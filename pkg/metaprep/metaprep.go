// Package metaprep holds module-wide metadata.
package metaprep

// Version is the release version of the metaprep tool.
const Version = "0.1.0"
