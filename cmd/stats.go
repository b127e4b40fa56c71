package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/trainer/internal/session"
)

var statsCmd = &cobra.Command{
	Use:   "stats <session-id>",
	Short: "Show a session's accuracy per module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := argID(args, 0, "session")
		if err != nil {
			return err
		}
		e, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		sum, err := session.BuildSummary(cmd.Context(), e.st, id)
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), sum)
		return nil
	},
}

func printSummary(w io.Writer, s *session.Summary) {
	status := "in progress"
	if s.Finished {
		status = "finished"
	}
	fmt.Fprintf(w, "Session #%d %s (%s)\n", s.SessionID, s.Name, status)
	fmt.Fprintf(w, "Points %d/%d   tasks %d   attempts %d   correct %d   accuracy %.0f%%\n\n",
		s.Points, s.Target, s.Tasks, s.Attempts, s.Correct, s.Accuracy*100)

	if len(s.Modules) == 0 {
		fmt.Fprintln(w, "No tasks yet.")
		return
	}
	fmt.Fprintf(w, "%-20s %6s %9s %8s %9s\n", "Module", "Tasks", "Attempts", "Correct", "Accuracy")
	fmt.Fprintln(w, strings.Repeat("─", 56))
	for _, m := range s.Modules {
		fmt.Fprintf(w, "%-20s %6d %9d %8d %8.0f%%\n", m.Name, m.Tasks, m.Attempts, m.Correct, m.Accuracy*100)
	}
}
