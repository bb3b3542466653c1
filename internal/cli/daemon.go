package cli

import (
	"context"
	"fmt"
	"net"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tcfw/didmsg/internal/agent"
	"github.com/tcfw/didmsg/internal/api"
	"github.com/tcfw/didmsg/internal/config"
	"github.com/tcfw/didmsg/internal/utils/logging"
)

var (
	daemonCmd = &cobra.Command{
		Use:   "daemon",
		RunE:  runDaemon,
		Short: "run the agent daemon",
	}
)

func init() {
	daemonCmd.Flags().IntP("api-port", "p", 8080, "api port")
	viper.BindPFlag("api_port", daemonCmd.Flags().Lookup("api-port"))

	daemonCmd.Flags().String("endpoint", "", "public endpoint advertised in new identities")
	viper.BindPFlag("endpoint", daemonCmd.Flags().Lookup("endpoint"))
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	a, err := agent.New(cfg)
	if err != nil {
		return errors.Wrap(err, "initing agent")
	}

	if err := a.Start(ctx); err != nil {
		return errors.Wrap(err, "starting agent")
	}

	apiSrv, err := api.NewAPI(a, logging.New(cfg.Verbose))
	if err != nil {
		return err
	}
	defer apiSrv.Shutdown(ctx)

	errCh := make(chan error)

	go func() {
		fmt.Printf("Starting API on %d\n", cfg.APIPort)
		if err := apiSrv.ListenAndServe(&net.TCPAddr{Port: cfg.APIPort}); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-waitExit():
		return a.Stop()
	}
}
