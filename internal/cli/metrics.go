package cli

import (
	"github.com/spf13/cobra"

	"github.com/sleepbook/sleepbook/internal/domain"
	"github.com/sleepbook/sleepbook/internal/util"
)

func newMetricsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Manage tracked metrics",
		Long: `Manage the metrics offered when recording a night.

Until a metric is defined, the built-in list is used.

Example:
  sleepbook metrics list
  sleepbook metrics add Coffee --kind quantity --unit cups
  sleepbook metrics remove Snoring`,
	}

	cmd.AddCommand(newMetricsListCommand(a))
	cmd.AddCommand(newMetricsAddCommand(a))
	cmd.AddCommand(newMetricsRemoveCommand(a))
	return cmd
}

func newMetricsListCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List metric definitions",
		Args:  cobra.NoArgs,
		RunE: a.runWithJournal(func(cmd *cobra.Command, args []string, us *userSession) error {
			defs := us.journal.Metrics()
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, defs)
			}
			for _, d := range defs {
				line := d.Name + " (" + d.Kind.String()
				if d.Unit != "" {
					line += ", " + d.Unit
				}
				if err := writeOutput(out, "%s)\n", line); err != nil {
					return err
				}
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newMetricsAddCommand(a *app) *cobra.Command {
	var kind, unit string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Define a metric",
		Args:  cobra.ExactArgs(1),
		RunE: a.runWithJournal(func(cmd *cobra.Command, args []string, us *userSession) error {
			k, err := domain.ParseMetricKind(kind)
			if err != nil {
				return util.InvalidInput("%v", err)
			}
			def := domain.MetricDefinition{Name: args[0], Kind: k, Unit: unit}
			if err := us.journal.DefineMetric(def); err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), "✓ Metric '%s' defined\n", def.Name)
		}),
	}

	cmd.Flags().StringVar(&kind, "kind", "binary", "binary, count or quantity")
	cmd.Flags().StringVar(&unit, "unit", "", "unit of a quantity metric")
	return cmd
}

func newMetricsRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a metric definition",
		Long:    `Remove a metric definition. Entries that recorded it keep their values.`,
		Args:    cobra.ExactArgs(1),
		RunE: a.runWithJournal(func(cmd *cobra.Command, args []string, us *userSession) error {
			if err := us.journal.RemoveMetric(args[0]); err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), "✓ Metric '%s' removed\n", args[0])
		}),
	}
}
