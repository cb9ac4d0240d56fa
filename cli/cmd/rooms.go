package cmd

import (
	"fmt"

	"github.com/BioHazard786/Questroom/cli/internal/config"
	"github.com/BioHazard786/Questroom/cli/internal/signaling"
	"github.com/BioHazard786/Questroom/cli/internal/ui"
	"github.com/spf13/cobra"
)

var roomsCmd = &cobra.Command{
	Use:     "rooms",
	Aliases: []string{"ls"},
	Short:   "List open rooms on the relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}

		sp := ui.NewConnectionSpinner("Fetching rooms from " + cfg.Domain + "...")
		sp.Start()
		rooms, err := signaling.ListRooms(cmd.Context(), cfg.RoomsURL())
		if err != nil {
			sp.Stop()
			return err
		}
		sp.Success(fmt.Sprintf("%d open rooms on %s", len(rooms), cfg.Domain))

		fmt.Println(ui.RoomsView(rooms))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(roomsCmd)
}
