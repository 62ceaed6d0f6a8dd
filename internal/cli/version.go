package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Build identity, stamped via -ldflags. An unstamped binary reports "dev".
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)

// VersionString renders the build identity, e.g. "0.3.0 (a1b2c3d, 2026-08-01)".
// Fields the build did not stamp are left out.
func VersionString() string {
	switch {
	case Commit != "" && BuildDate != "":
		return fmt.Sprintf("%s (%s, %s)", Version, Commit, BuildDate)
	case Commit != "":
		return fmt.Sprintf("%s (%s)", Version, Commit)
	}
	return Version
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("mnemos " + VersionString())
	},
}
