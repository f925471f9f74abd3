package ops

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"
)

type ResetCmd struct {
	app *App

	studio string
	event  string
	yes    bool
}

func NewResetCmd(app *App) *ResetCmd {
	return &ResetCmd{app: app}
}

func (cmd *ResetCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:      "reset",
		Usage:     "Delete every task and custom category of an event scheduler",
		UsageText: "scheduler-ops reset --studio <slug> --event <id> --yes",
		Flags: append(eventFlags(&cmd.studio, &cmd.event), &cli.BoolFlag{
			Name:        "yes",
			Usage:       "confirm the destructive reset",
			Destination: &cmd.yes,
		}),
		Action: cmd.run,
	})
	return root
}

func (cmd *ResetCmd) run(ctx context.Context, c *cli.Command) error {
	if !cmd.yes {
		return errors.New("refusing to reset without --yes")
	}
	t, err := cmd.app.Tenants.Resolve(ctx, cmd.studio)
	if err != nil {
		return err
	}
	res, err := cmd.app.Tasks.ClearScheduler(ctx, t, cmd.event)
	if err != nil {
		return fmt.Errorf("reset scheduler: %w", err)
	}
	out := c.Root().Writer
	fmt.Fprintf(out, "deleted %d tasks and %d custom categories\n", res.DeletedTasks, res.DeletedCategories)
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	return nil
}
