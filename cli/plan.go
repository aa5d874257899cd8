// ABOUTME: Plan command showing what a sync would change
// ABOUTME: Renders the reconciliation plan as a table, JSON or YAML
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/harperreed/patronsync/models"
	"github.com/harperreed/patronsync/sync"
	"github.com/harperreed/patronsync/tui"
)

// Output formats.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// planOutput is the machine-readable form of a plan.
type planOutput struct {
	Contacts  int                    `json:"contacts" yaml:"contacts"`
	Patrons   int                    `json:"patrons" yaml:"patrons"`
	Creates   []models.PatronPayload `json:"creates" yaml:"creates"`
	Updates   []models.PatronPayload `json:"updates" yaml:"updates"`
	Skipped   []skippedOutput        `json:"skipped" yaml:"skipped"`
	Unchanged int                    `json:"unchanged" yaml:"unchanged"`
	Gaps      int                    `json:"staff_number_gaps" yaml:"staff_number_gaps"`
}

type skippedOutput struct {
	Kind       string `json:"kind" yaml:"kind"`
	Identifier string `json:"identifier" yaml:"identifier"`
	Name       string `json:"name" yaml:"name"`
	Email      string `json:"email,omitempty" yaml:"email,omitempty"`
	Reason     string `json:"reason" yaml:"reason"`
}

func newPlanCommand(app *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the patron changes a sync would make",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runPlan(cmd.Context(), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", OutputTable, "output format: table, json, yaml")
	return cmd
}

func (a *App) runPlan(ctx context.Context, output string) error {
	switch output {
	case OutputTable, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	syncer := sync.NewSyncer(a.NewContactClient(a.cfg), a.NewPatronClient(a.cfg), sync.Options{Domain: a.cfg.Domain})
	report, err := syncer.Plan(ctx)
	if err != nil {
		return fmt.Errorf("failed to plan sync: %w", err)
	}

	return writePlan(a.Out, report, output)
}

func writePlan(w io.Writer, report *sync.Report, output string) error {
	if output == OutputTable {
		_, err := fmt.Fprint(w, tui.RenderPlan(report.Plan))
		return err
	}

	out := newPlanOutput(report)
	var data []byte
	var err error
	if output == OutputYAML {
		data, err = yaml.Marshal(out)
	} else {
		data, err = json.MarshalIndent(out, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func newPlanOutput(report *sync.Report) planOutput {
	plan := report.Plan
	out := planOutput{
		Contacts:  report.Contacts,
		Patrons:   report.Patrons,
		Creates:   make([]models.PatronPayload, 0, len(plan.Creates)),
		Updates:   make([]models.PatronPayload, 0, len(plan.Updates)),
		Skipped:   make([]skippedOutput, 0, len(plan.Skipped)),
		Unchanged: plan.Unchanged,
		Gaps:      plan.Gaps,
	}
	for _, c := range plan.Creates {
		out.Creates = append(out.Creates, sync.Project(c))
	}
	for _, c := range plan.Updates {
		out.Updates = append(out.Updates, sync.Project(c))
	}
	for _, d := range plan.Skipped {
		out.Skipped = append(out.Skipped, skippedOutput{
			Kind:       d.Contact.Kind.String(),
			Identifier: d.Contact.Identifier,
			Name:       strings.TrimSpace(d.Contact.FirstName + " " + d.Contact.Surname),
			Email:      d.Contact.EmailValue(),
			Reason:     d.Reason.String(),
		})
	}
	return out
}
