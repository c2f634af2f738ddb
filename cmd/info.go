package cmd

import (
	"fmt"
	"time"

	"argus/config"
	"argus/core"

	"github.com/spf13/cobra"
)

// newFieldsCmd creates the 'fields' subcommand
func newFieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fields [entity-type]",
		Short: "List the queryable fields",
		Long:  "List the logical fields of one entity type, or of all of them, with their type, match class and record paths.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			types := core.AllEntityTypes
			if len(args) == 1 {
				et, err := core.ParseEntityType(args[0])
				if err != nil {
					return err
				}
				types = []core.EntityType{et}
			}

			tables := make(map[core.EntityType][]fieldInfo, len(types))
			for _, et := range types {
				defs := app.Mapper.Definitions(et)
				infos := make([]fieldInfo, 0, len(defs))
				for _, def := range defs {
					infos = append(infos, describeField(def))
				}
				tables[et] = infos
			}

			if outputJSON {
				return outputAsJSON(cmd.OutOrStdout(), tables)
			}
			for _, et := range types {
				renderFields(cmd.OutOrStdout(), et, tables[et])
			}
			return nil
		},
	}
}

// newConfigCmd creates the 'config' subcommand
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := app.Config.Settings()
			if outputJSON {
				printable := make(map[string]interface{}, len(settings))
				for k, v := range settings {
					printable[k] = printableSetting(v)
				}
				return outputAsJSON(cmd.OutOrStdout(), printable)
			}
			for _, k := range config.Keys() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-28s %v\n", k, printableSetting(settings[k]))
			}
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "List every configuration key with its default and bounds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema := config.Schema()
			if outputJSON {
				printable := make(map[string]config.SettingSchema, len(schema))
				for k, s := range schema {
					s.Default = printableSetting(s.Default)
					printable[k] = s
				}
				return outputAsJSON(cmd.OutOrStdout(), printable)
			}

			w := cmd.OutOrStdout()
			for _, k := range config.Keys() {
				s := schema[k]
				headerColor.Fprintf(w, "%s", k)
				fmt.Fprintf(w, " (%s, default %v", s.Type, printableSetting(s.Default))
				if s.Min != nil && s.Max != nil {
					fmt.Fprintf(w, ", %d..%d", *s.Min, *s.Max)
				}
				fmt.Fprintf(w, ")\n    %s\n", s.Description)
			}
			return nil
		},
	})

	return configCmd
}

// printableSetting renders durations in their string form
func printableSetting(v interface{}) interface{} {
	if d, ok := v.(time.Duration); ok {
		return d.String()
	}
	return v
}
