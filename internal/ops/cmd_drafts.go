package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
)

type DraftsCmd struct {
	app *App

	studio     string
	event      string
	jsonOutput bool
}

func NewDraftsCmd(app *App) *DraftsCmd {
	return &DraftsCmd{app: app}
}

func (cmd *DraftsCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:      "drafts",
		Usage:     "Show the unpublished changes of an event scheduler",
		UsageText: "scheduler-ops drafts --studio <slug> --event <id> [--json]",
		Flags: append(eventFlags(&cmd.studio, &cmd.event), &cli.BoolFlag{
			Name:        "json",
			Usage:       "output the summary as JSON",
			Destination: &cmd.jsonOutput,
		}),
		Action: cmd.run,
	})
	return root
}

func (cmd *DraftsCmd) run(ctx context.Context, c *cli.Command) error {
	t, err := cmd.app.Tenants.Resolve(ctx, cmd.studio)
	if err != nil {
		return err
	}
	sum, err := cmd.app.Tasks.GetDraftSummary(ctx, t, cmd.event)
	if err != nil {
		return fmt.Errorf("draft summary: %w", err)
	}

	out := c.Root().Writer
	if cmd.jsonOutput {
		return json.NewEncoder(out).Encode(sum)
	}
	if sum.Count == 0 {
		fmt.Fprintln(out, "No pending changes")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tTASK\tNAME\tFIELDS")
	for _, ch := range sum.Changes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", ch.Kind, ch.TaskID, ch.Name, ch.ChangedFields)
	}
	return w.Flush()
}
