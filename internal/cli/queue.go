package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tcfw/didmsg/internal/agent"
	"github.com/tcfw/didmsg/internal/config"
	"github.com/tcfw/didmsg/pkg/queue"
)

var (
	queueCmd = &cobra.Command{
		Use:   "queue",
		Short: "inspect the message queue",
	}

	queue_statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "show per-status record counts",
		RunE:  runQueueStats,
	}
)

func runQueueStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	a, err := agent.New(cfg)
	if err != nil {
		return errors.Wrap(err, "initing agent")
	}
	defer a.Stop()

	stats, err := a.QueueStats(cmd.Context())
	if err != nil {
		return err
	}

	for _, s := range []queue.Status{
		queue.StatusPending,
		queue.StatusProcessing,
		queue.StatusSent,
		queue.StatusDelivered,
		queue.StatusFailed,
		queue.StatusExpired,
	} {
		fmt.Printf("%-12s %d\n", s, stats[s])
	}

	return nil
}
