package ops

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	schedDB "studio-scheduler-service/internal/scheduler-manager/db"
	gorm_db "studio-scheduler-service/pkg/db"
)

type MigrateCmd struct {
	app *App
}

func NewMigrateCmd(app *App) *MigrateCmd {
	return &MigrateCmd{app: app}
}

func (cmd *MigrateCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:   "migrate",
		Usage:  "Create or update the database schema",
		Action: cmd.run,
	})
	return root
}

func (cmd *MigrateCmd) run(ctx context.Context, c *cli.Command) error {
	if err := gorm_db.AutoMigrate(cmd.app.DB, schedDB.AllModels()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintf(c.Root().Writer, "migrated %d models (%s)\n", len(schedDB.AllModels()), cmd.app.Config.Database.Type)
	return nil
}
