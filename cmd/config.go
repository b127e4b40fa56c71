package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/trainer/internal/module"
	"github.com/abhisek/trainer/internal/store"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit module configs",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		configs, err := e.st.Configs().List(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%4s  %-16s %s\n", "ID", "Module", "Name")
		fmt.Fprintln(w, strings.Repeat("─", 40))
		for _, c := range configs {
			name := fmt.Sprintf("module %d", c.ModuleID)
			if m := e.mods.Get(c.ModuleID); m != nil {
				name = m.Descriptor().Name
			}
			fmt.Fprintf(w, "%4d  %-16s %s\n", c.ID, name, c.Name)
		}
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show <config-id>",
	Short: "Show a config's settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := argID(args, 0, "config")
		if err != nil {
			return err
		}
		e, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		cfg, err := module.LoadConfig(cmd.Context(), e.st.Configs(), id)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Config #%d %s\n\n", cfg.ID, cfg.Name)
		fmt.Fprintf(w, "%-20s %-7s %s\n", "Setting", "Type", "Value")
		fmt.Fprintln(w, strings.Repeat("─", 40))
		for _, d := range cfg.Data {
			fmt.Fprintf(w, "%-20s %-7s %s\n", d.Name, d.Type, module.FormatValue(d.Value))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <config-id> <setting> <value>",
	Short: "Change one setting",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := argID(args, 0, "config")
		if err != nil {
			return err
		}
		e, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := module.SetValue(cmd.Context(), e.st.Configs(), id, args[1], args[2]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Config #%d: %s = %s\n", id, args[1], args[2])
		return nil
	},
}

var configExportCmd = &cobra.Command{
	Use:   "export [config-id...]",
	Short: "Write configs as YAML (all when no ID is given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()
		ctx := cmd.Context()

		var ids []int
		for i := range args {
			id, err := argID(args, i, "config")
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			all, err := e.st.Configs().List(ctx)
			if err != nil {
				return err
			}
			for _, c := range all {
				ids = append(ids, c.ID)
			}
		}

		docs := make([]*module.Document, 0, len(ids))
		for _, id := range ids {
			doc, err := module.Export(ctx, e.st.Modules(), e.st.Configs(), id)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}

		var w io.Writer = cmd.OutOrStdout()
		if out, _ := cmd.Flags().GetString("output"); out != "" {
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return module.WriteDocuments(w, docs...)
	},
}

var configImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Create or update configs from a YAML file (- for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		docs, err := module.ReadDocuments(r)
		if err != nil {
			return err
		}

		e, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		for _, doc := range docs {
			c, err := module.Import(cmd.Context(), e.st.Modules(), e.st.Configs(), doc)
			if err != nil {
				return fmt.Errorf("import %s/%s: %w", doc.Module, doc.Name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported config #%d %s/%s\n", c.ID, doc.Module, c.Name)
		}
		return nil
	},
}

var moduleCmd = &cobra.Command{
	Use:   "module",
	Short: "Inspect modules",
}

var moduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered modules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		rows, err := e.st.Modules().List(cmd.Context())
		if err != nil {
			return err
		}
		printModules(cmd.OutOrStdout(), rows, e.mods)
		for _, name := range e.result.Skipped {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: module %q is stored but has no implementation\n", name)
		}
		for _, c := range e.result.Conflicts {
			fmt.Fprintf(cmd.ErrOrStderr(), "conflict: %s\n", c)
		}
		return nil
	},
}

func printModules(w io.Writer, rows []store.Module, loaded *module.Loaded) {
	fmt.Fprintf(w, "%4s  %-14s %-9s %-26s %s\n", "ID", "Name", "Version", "Display name", "Status")
	fmt.Fprintln(w, strings.Repeat("─", 66))
	for _, r := range rows {
		display, status := "", "not loaded"
		if m := loaded.Get(r.ID); m != nil {
			display, status = m.Descriptor().DisplayName, "loaded"
		}
		fmt.Fprintf(w, "%4d  %-14s %-9s %-26s %s\n", r.ID, r.Name, r.Version, display, status)
	}
}

func init() {
	configExportCmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")

	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configExportCmd)
	configCmd.AddCommand(configImportCmd)

	moduleCmd.AddCommand(moduleListCmd)
}
