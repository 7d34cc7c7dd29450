// ABOUTME: Product and version identifiers
// ABOUTME: Reported in logs, the console title and the marker stream hello
package version

// Version is overridden at build time with -ldflags "-X .../internal/version.Version=..."
var Version = "0.3.0"

const (
	Product      = "RhythmStim"
	Manufacturer = "Active Perception Lab"
)

// String returns "Product Version"
func String() string {
	return Product + " " + Version
}
