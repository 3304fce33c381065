package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/timdodge/grimshot/internal/log"
)

var Version = "dev"

var (
	logLevel   string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "grimshot [flags] [output-file]",
	Short: "Grab images from a Wayland compositor",
	Long: `Grab images from a Wayland compositor through wlr-screencopy.

If output-file is '-', the image is written to standard output. Without an
output-file a timestamped name is used in $GRIM_DEFAULT_DIR, $XDG_PICTURES_DIR
or the current directory.

Examples:
  grimshot                            # All outputs
  grimshot -o DP-1 shot.png           # One output
  grimshot -g "10,20 640x480" -       # Region to stdout
  slurp | grimshot -g - -t jpeg       # Region from slurp as JPEG
  grimshot -s 0.5 -l 9                # Half size, best PNG compression`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel == "" {
			return nil
		}
		return log.SetLevel(logLevel)
	},
	Run: runCapture,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("grimshot %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/grimshot/config.yaml)")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
