package main

import (
	"fmt"
	"os"

	configurecmd "slipway/cmd/slipway/configure"
	deploycmd "slipway/cmd/slipway/deploy"
	historycmd "slipway/cmd/slipway/history"
	statuscmd "slipway/cmd/slipway/status"
	"slipway/cmd/slipway/ui"
	"slipway/internal/buildinfo"
	"slipway/internal/logging"

	"github.com/spf13/cobra"
)

func main() {
	var (
		debug   bool
		noColor bool
	)
	if err := logging.Configure(logging.LevelWarn); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "slipway",
		Short:         "Deploy containerized apps to AWS ECS Fargate",
		Version:       buildinfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level := logging.LevelWarn
			if debug {
				level = logging.LevelDebug
			}
			if err := logging.Configure(level); err != nil {
				return err
			}
			ui.ConfigureInteraction(noColor)
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	root.AddCommand(deploycmd.Cmd())
	root.AddCommand(statuscmd.Cmd())
	root.AddCommand(historycmd.Cmd())
	root.AddCommand(configurecmd.Cmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
