package commands

import "github.com/spf13/cobra"

// Version info, injected via ldflags by the build.
var (
	Version = "dev"
	Commit  = "none"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "bootserver",
	Short: "Serve boot artifacts over HTTP, HTTPS and TFTP",
	Long: `bootserver distributes boot artifacts (images, kernels, installer
payloads) to network-booting clients. PXE firmwares fetch a small
loader over TFTP first and larger payloads over HTTP(S) afterwards.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Path to a YAML configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func Execute() error {
	return rootCmd.Execute()
}
