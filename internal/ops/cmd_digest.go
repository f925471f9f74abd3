package ops

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	smKafka "studio-scheduler-service/internal/scheduler-manager/kafka"
	"studio-scheduler-service/internal/scheduler-manager/services"
)

type DigestCmd struct {
	app *App
}

func NewDigestCmd(app *App) *DigestCmd {
	return &DigestCmd{app: app}
}

func (cmd *DigestCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:   "digest",
		Usage:  "Publish the draft digest once",
		Action: cmd.run,
	})
	return root
}

func (cmd *DigestCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.app.Config
	writer := cmd.app.DigestWriter
	if writer == nil {
		w := smKafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.DraftDigestTopic)
		defer w.Close()
		writer = w
	}
	digest, err := services.NewDigestService(ctx, cmd.app.DB, writer, cfg.Scheduler.DraftDigestCron, cmd.app.Log, nil)
	if err != nil {
		return err
	}
	n, err := digest.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Root().Writer, "published digest for %d events\n", n)
	return nil
}
