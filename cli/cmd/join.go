package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BioHazard786/Questroom/cli/internal/config"
	"github.com/BioHazard786/Questroom/cli/internal/runtime"
	"github.com/BioHazard786/Questroom/cli/internal/signaling"
	"github.com/BioHazard786/Questroom/cli/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagName     string
	flagCapacity int
	flagRoom     string
	flagManual   bool
	flagHeadless bool
	flagDirect   bool
	flagDuration time.Duration
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
)

var joinCmd = &cobra.Command{
	Use:     "join",
	Aliases: []string{"j"},
	Short:   "Join a room and replicate presence",
	Long: `Connect to the relay and join a room. Without --room any open room is
joined, and a new one is created when none has space.

Examples:
  questroom join
  questroom join --capacity 2 --direct
  questroom join --room calm-stone-lake-otter
  questroom join --headless --duration 30s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinRoom(cmd.Context())
	},
}

func joinRoom(ctx context.Context) error {
	cfg, err := loadConfig(config.Options{
		Name:       flagName,
		Capacity:   flagCapacity,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagRelay,
	})
	if err != nil {
		return err
	}
	if cfg.ForceRelay && cfg.TURNServers() == nil {
		return errors.New("cannot force relay mode without TURN server configured")
	}
	if flagManual && flagRoom != "" {
		return errors.New("--manual and --room cannot be combined")
	}
	if flagManual && flagHeadless {
		return errors.New("--manual needs the live view to join")
	}

	if flagDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flagDuration)
		defer cancel()
	}

	relay := signaling.New(cfg.WebSocketURL())
	opts := runtime.Options{
		Config:   cfg,
		AutoJoin: !flagManual,
		RoomID:   flagRoom,
		Direct:   flagDirect,
	}

	var (
		runner   *runtime.Runner
		presence *ui.PresenceUI
	)
	if flagHeadless {
		opts.Sink = ui.Headless{W: os.Stdout}
		ui.PrintInfo(fmt.Sprintf("Connecting to %s as %s", cfg.Domain, cfg.Name))
	} else {
		presence = ui.NewPresenceUI(func(c runtime.Command) { runner.Send(c) })
		opts.Sink = presence
	}
	runner = runtime.NewRunner(relay, opts)

	if presence != nil {
		presence.Start()
	}
	err = runner.Run(ctx)
	if presence != nil {
		presence.Stop()
	}

	if stats := runner.Stats(); !stats.Ended.IsZero() {
		fmt.Println()
		ui.RenderSummary(ui.IconStats+" Session Summary", stats)
	}
	return err
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVarP(&flagName, "name", "n", "", "Display name (defaults to the hostname)")
	joinCmd.Flags().IntVarP(&flagCapacity, "capacity", "c", 0, "Capacity of a room created by this peer")
	joinCmd.Flags().StringVar(&flagRoom, "room", "", "Join this room instead of any open one")
	joinCmd.Flags().BoolVar(&flagManual, "manual", false, "Stay in the lobby until j is pressed")
	joinCmd.Flags().BoolVar(&flagHeadless, "headless", false, "Print events instead of the live view")
	joinCmd.Flags().BoolVar(&flagDirect, "direct", false, "Send poses over WebRTC data channels when possible")
	joinCmd.Flags().DurationVar(&flagDuration, "duration", 0, "Leave after this long")
	joinCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	joinCmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	joinCmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	joinCmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	joinCmd.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force TURN relay for direct links")
}
