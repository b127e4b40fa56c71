package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/trainer/internal/module"
	"github.com/abhisek/trainer/internal/session"
	"github.com/abhisek/trainer/internal/store"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage practice sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		list, err := e.st.Sessions().List(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(w, "No sessions yet. Create one with `trainer session create`.")
			return nil
		}
		fmt.Fprintf(w, "%4s  %-24s %9s %8s  %s\n", "ID", "Name", "Points", "Penalty", "Configs")
		fmt.Fprintln(w, strings.Repeat("─", 60))
		for _, s := range list {
			fmt.Fprintf(w, "%4d  %-24s %9s %8d  %s\n",
				s.ID, s.Name, fmt.Sprintf("%d/%d", s.Points, s.Target), s.Penalty, joinInts(s.ConfigIDs))
		}
		return nil
	},
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		d := session.NewDraft()
		if err := applyDraftFlags(cmd, e, &d); err != nil {
			return err
		}
		sess, err := session.NewEditor(e.st, e.log).Create(cmd.Context(), d)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created session #%d %s\n", sess.ID, sess.Name)
		return nil
	},
}

var sessionEditCmd = &cobra.Command{
	Use:   "edit <session-id>",
	Short: "Change a session's settings",
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

		sess, err := e.st.Sessions().Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		if sess == nil {
			return fmt.Errorf("session %d: %w", id, session.ErrSessionNotFound)
		}
		d := session.Draft{
			Name:       sess.Name,
			ConfigIDs:  sess.ConfigIDs,
			Penalty:    sess.Penalty,
			Target:     sess.Target,
			Repeatable: sess.Repeatable,
			Reset:      sess.Reset,
		}
		if err := applyDraftFlags(cmd, e, &d); err != nil {
			return err
		}
		if _, err := session.NewEditor(e.st, e.log).Edit(cmd.Context(), id, d); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated session #%d\n", id)
		return nil
	},
}

var sessionRemoveCmd = &cobra.Command{
	Use:     "rm <session-id>",
	Aliases: []string{"remove"},
	Short:   "Delete a session with its history",
	Args:    cobra.ExactArgs(1),
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

		if err := session.NewEditor(e.st, e.log).Remove(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed session #%d\n", id)
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session's tasks and skills",
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

		return showSession(cmd.Context(), cmd.OutOrStdout(), e.st, id)
	},
}

func init() {
	for _, c := range []*cobra.Command{sessionCreateCmd, sessionEditCmd} {
		f := c.Flags()
		f.String("name", "", "Session name")
		f.IntSlice("config", nil, "Config IDs to draw tasks from")
		f.StringSlice("module", nil, "Module names whose default config to use")
		f.Int("penalty", session.DefaultPenalty, "Points lost per wrong answer")
		f.Int("target", session.DefaultTarget, "Points needed to finish")
		f.Bool("repeatable", false, "Allow the session to be played again once finished")
		f.Bool("reset", false, "Reset points when the session is reopened")
	}

	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionEditCmd)
	sessionCmd.AddCommand(sessionRemoveCmd)
	sessionCmd.AddCommand(sessionShowCmd)
}

// applyDraftFlags copies the flags the user set into d. --module names are
// resolved to their default config.
func applyDraftFlags(cmd *cobra.Command, e *env, d *session.Draft) error {
	f := cmd.Flags()
	if f.Changed("name") {
		d.Name, _ = f.GetString("name")
	}
	if f.Changed("penalty") {
		d.Penalty, _ = f.GetInt("penalty")
	}
	if f.Changed("target") {
		d.Target, _ = f.GetInt("target")
	}
	if f.Changed("repeatable") {
		d.Repeatable, _ = f.GetBool("repeatable")
	}
	if f.Changed("reset") {
		d.Reset, _ = f.GetBool("reset")
	}

	if !f.Changed("config") && !f.Changed("module") {
		return nil
	}
	ids, _ := f.GetIntSlice("config")
	names, _ := f.GetStringSlice("module")
	for _, name := range names {
		m := e.mods.ByName(name)
		if m == nil {
			return fmt.Errorf("module %q is not loaded", name)
		}
		c, err := e.st.Configs().GetByName(cmd.Context(), m.ID(), module.DefaultConfigName)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("module %q has no %s config", name, module.DefaultConfigName)
		}
		ids = append(ids, c.ID)
	}
	d.ConfigIDs = ids
	return nil
}

func showSession(ctx context.Context, w io.Writer, st *store.Store, id int) error {
	sess, err := st.Sessions().Get(ctx, id)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session %d: %w", id, session.ErrSessionNotFound)
	}

	fmt.Fprintf(w, "Session #%d %s\n", sess.ID, sess.Name)
	fmt.Fprintf(w, "Points %d/%d   penalty %d   repeatable %t   reset %t\n",
		sess.Points, sess.Target, sess.Penalty, sess.Repeatable, sess.Reset)
	fmt.Fprintf(w, "Configs %s\n\n", joinInts(sess.ConfigIDs))

	tasks, err := st.Tasks().ListBySession(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%4s  %-36s %-12s %s\n", "Task", "Question", "Answer", "Result")
	fmt.Fprintln(w, strings.Repeat("─", 64))
	for _, t := range tasks {
		attempts, err := st.Tasks().ListAttempts(ctx, t.ID)
		if err != nil {
			return err
		}
		answer, result := "", "open"
		if n := len(attempts); n > 0 {
			last := attempts[n-1]
			answer = last.UserAnswer
			result = "✗"
			if last.Judgement {
				result = "✓"
			}
		}
		fmt.Fprintf(w, "%4d  %-36s %-12s %s\n", t.ID, truncate(t.Question, 36), truncate(answer, 12), result)
	}

	sets, err := st.Skills().ListSkillSets(ctx, id)
	if err != nil {
		return err
	}
	if len(sets) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\n%-24s %7s  %s\n", "Skill", "Score", "Description")
	fmt.Fprintln(w, strings.Repeat("─", 64))
	for _, ss := range sets {
		skills, err := st.Skills().ListSkills(ctx, ss.ID)
		if err != nil {
			return err
		}
		for _, sk := range skills {
			if !sk.Visible {
				continue
			}
			fmt.Fprintf(w, "%-24s %7.2f  %s\n", sk.Name, sk.Score, sk.Description)
		}
	}
	return nil
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ",")
}

func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
