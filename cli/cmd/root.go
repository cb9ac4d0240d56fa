package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/BioHazard786/Questroom/cli/internal/config"
	"github.com/BioHazard786/Questroom/cli/internal/ui"
	"github.com/BioHazard786/Questroom/cli/internal/version"
	"github.com/spf13/cobra"
)

var (
	flagDomain   string
	flagInsecure bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "questroom",
	Short: "Shared-room presence for VR headsets",
	Long: `Questroom puts headsets in a shared room through a relay server. The first
peer in a room holds authority and loads the arena for everyone. Head and hand
poses are replicated to every member and smoothed on arrival.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}

func loadConfig(opts config.Options) (*config.Config, error) {
	opts.Domain = flagDomain
	opts.Insecure = flagInsecure
	return config.Load(opts)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDomain, "domain", "d", "", "Relay server host[:port]")
	rootCmd.PersistentFlags().BoolVar(&flagInsecure, "insecure", false, "Use ws/http instead of wss/https")
}
