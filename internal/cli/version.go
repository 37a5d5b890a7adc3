package cli

import (
	"runtime"

	"github.com/spf13/cobra"

	versionpkg "github.com/grantline/grantline/internal/version"
)

// Version information, set at build time via ldflags.
var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

const (
	// releaseOwner is the GitHub repository owner for release checks.
	releaseOwner = "grantline"
	// releaseRepo is the GitHub repository name for release checks.
	releaseRepo = "grantline"
)

var versionCheck bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE:  runVersion,
}

func runVersion(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()

	info := map[string]string{
		"version": buildVersion,
		"commit":  buildCommit,
		"date":    buildDate,
		"go":      runtime.Version(),
		"os_arch": runtime.GOOS + "/" + runtime.GOARCH,
	}

	var latest string
	if versionCheck {
		release, err := versionpkg.GetLatestRelease(cmd.Context(), releaseOwner, releaseRepo)
		if err != nil {
			return err
		}
		latest = release.TagName
		info["latest"] = latest
	}

	if formatter.IsJSON() {
		return writeJSON(w, info)
	}

	out(w, "grantline %s (commit %s, built %s, %s %s/%s)\n",
		buildVersion, buildCommit, buildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)

	if versionCheck {
		if versionpkg.IsNewerVersion(buildVersion, latest) {
			out(w, "A newer release is available: %s\n", latest)
		} else {
			outln(w, "Up to date")
		}
	}
	return nil
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "check GitHub for a newer release")
	rootCmd.AddCommand(versionCmd)
}
