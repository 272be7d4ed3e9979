// Command liframe plays back multi-modal LiDAR datasets through a
// configurable stage pipeline.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/banshee-data/liframe/internal/version"
)

const configEnv = "LIFRAME_CONFIG"

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "liframe",
		Short: "Multi-modal LiDAR dataset playback and processing",
		Long: `liframe steps through LiDAR, camera, calibration and label records frame by
frame, runs each frame through the configured processing stages and shows
or records the result.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand())
	root.AddCommand(newReportCommand())
	root.AddCommand(newMigrateCommand())
	return root
}

// defaultConfigPath honours LIFRAME_CONFIG.
func defaultConfigPath() string {
	if p := os.Getenv(configEnv); p != "" {
		return p
	}
	return "config.yml"
}
