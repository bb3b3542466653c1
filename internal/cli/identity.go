package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tcfw/didmsg/internal/agent"
	"github.com/tcfw/didmsg/internal/config"
)

var (
	identityCmd = &cobra.Command{
		Use:   "identity",
		Short: "manage agent identities",
	}

	identity_newCmd = &cobra.Command{
		Use:   "new",
		Short: "generate a new identity",
		RunE:  runIdentityNew,
	}
)

func init() {
	identity_newCmd.Flags().String("endpoint", "", "reachable service endpoint")
	identity_newCmd.Flags().Bool("mediated", false, "advertise queue delivery instead of an endpoint")
}

func runIdentityNew(cmd *cobra.Command, args []string) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	endpoint, _ := cmd.Flags().GetString("endpoint")
	mediated, _ := cmd.Flags().GetBool("mediated")

	if endpoint == "" && !mediated {
		endpoint = cfg.Endpoint
	}

	if endpoint == "" && !mediated {
		return errors.New("either --endpoint or --mediated is required")
	}

	if mediated {
		endpoint = ""
	}

	a, err := agent.New(cfg)
	if err != nil {
		return errors.Wrap(err, "initing agent")
	}
	defer a.Stop()

	id, err := a.NewIdentity(endpoint)
	if err != nil {
		return err
	}

	fmt.Println(id)

	return nil
}
