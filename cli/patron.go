// ABOUTME: Patron command looking up a single FSI patron by email
// ABOUTME: Prints the patron record as returned by FSI in JSON or YAML
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

func newPatronCommand(app *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "patron <email>",
		Short: "Look up one FSI patron by email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runPatron(cmd.Context(), args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", OutputJSON, "output format: json, yaml")
	return cmd
}

func (a *App) runPatron(ctx context.Context, email, output string) error {
	if output != OutputJSON && output != OutputYAML {
		return fmt.Errorf("unknown output format %q", output)
	}
	if err := a.cfg.ValidateFSI(); err != nil {
		return err
	}

	client := a.NewPatronClient(a.cfg)
	if err := client.Authenticate(ctx); err != nil {
		return err
	}

	patron, err := client.GetPatron(ctx, email)
	if err != nil {
		return err
	}
	if patron == nil {
		return fmt.Errorf("no FSI patron found for %s", email)
	}

	var data []byte
	if output == OutputYAML {
		data, err = yaml.Marshal(patron)
	} else {
		data, err = json.MarshalIndent(patron, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode patron: %w", err)
	}
	_, err = a.Out.Write(data)
	return err
}
