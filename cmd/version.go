package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/tubestats/internal/render"
)

// Version is overwritten at link time:
//
//	go build -ldflags "-X github.com/derickschaefer/tubestats/cmd.Version=v0.3.0"
var Version = "v0.2.0"

// BuildTime is optionally injected alongside Version:
//
//	-ldflags "-X github.com/derickschaefer/tubestats/cmd.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var BuildTime = ""

type versionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	GOOS      string `json:"goos"`
	GOARCH    string `json:"goarch"`
	Revision  string `json:"revision,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tubestats version and build information",
	Long: `Print the tubestats version string and build metadata.

Default output is plain text. Use --format json for structured output.

Examples:
  tubestats version
  tubestats version --format json | jq .version`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := currentVersion()

		switch globalFlags.Format {
		case render.FormatJSON:
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)

		case render.FormatJSONL:
			b, err := json.Marshal(info)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", b)
			return nil

		default:
			fmt.Fprintf(cmd.OutOrStdout(), "tubestats %s\n", info.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "go        %s\n", info.GoVersion)
			fmt.Fprintf(cmd.OutOrStdout(), "os        %s/%s\n", info.GOOS, info.GOARCH)
			if info.Revision != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "revision  %s\n", info.Revision)
			}
			if info.BuildTime != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "built     %s\n", info.BuildTime)
			}
			return nil
		}
	},
}

// currentVersion falls back to the VCS stamp embedded by the go tool when
// no BuildTime was injected.
func currentVersion() versionInfo {
	info := versionInfo{
		Version:   Version,
		GoVersion: runtime.Version(),
		GOOS:      runtime.GOOS,
		GOARCH:    runtime.GOARCH,
		BuildTime: BuildTime,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if len(s.Value) > 12 {
					info.Revision = s.Value[:12]
				} else {
					info.Revision = s.Value
				}
			case "vcs.time":
				if info.BuildTime == "" {
					info.BuildTime = s.Value
				}
			}
		}
	}
	return info
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
