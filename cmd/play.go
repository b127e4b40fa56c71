package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/trainer/internal/app"
)

var playCmd = &cobra.Command{
	Use:   "play <session-id>",
	Short: "Practice a session in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := argID(args, 0, "session")
		if err != nil {
			return err
		}
		return runApp(cmd, id)
	},
}

// runApp opens the terminal UI. sessionID zero starts at the session list.
func runApp(cmd *cobra.Command, sessionID int) error {
	e, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.watchScripts(cmd.Context()); err != nil {
		return err
	}

	return app.Run(app.Options{
		Store:     e.st,
		Modules:   e.mods,
		Log:       e.log,
		SessionID: sessionID,
	})
}
