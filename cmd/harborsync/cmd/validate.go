package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harborsync/harborsync/pkg/config"
	"github.com/harborsync/harborsync/pkg/transform/jq"
)

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate <config.yaml>",
	Short: "Validate a mapping configuration file",
	Long: `Validate a sync configuration file: YAML structure, required
mapping fields, and that every selector and mapping expression parses as
a jq program.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}

	evaluator := jq.New()
	var bad int
	for _, resource := range cfg.Resources {
		for field, expr := range mappingExpressions(resource) {
			if err := evaluator.Check(expr); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s: %v\n", resource.Kind, field, err)
				bad++
			}
		}
	}
	if bad > 0 {
		return fmt.Errorf("%d invalid expression(s)", bad)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration valid: %d resource(s), %d kind(s)\n",
		len(cfg.Resources), len(cfg.Kinds()))
	return nil
}

// mappingExpressions collects every jq expression in a resource mapping,
// keyed by a field label for error reporting.
func mappingExpressions(resource config.Resource) map[string]string {
	out := map[string]string{
		"selector.query":    resource.Selector.Query,
		"entity.identifier": resource.Entity.Identifier,
		"entity.blueprint":  resource.Entity.Blueprint,
	}
	if resource.Entity.Title != "" {
		out["entity.title"] = resource.Entity.Title
	}
	if resource.Entity.Team != "" {
		out["entity.team"] = resource.Entity.Team
	}
	for name, expr := range resource.Entity.Properties {
		out["entity.properties."+name] = expr
	}
	for name, expr := range resource.Entity.Relations {
		out["entity.relations."+name] = expr
	}
	return out
}
