package cli

import (
	"fmt"
	"io/ioutil"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tcfw/didmsg/internal/agent"
	"github.com/tcfw/didmsg/internal/config"
	"github.com/tcfw/didmsg/pkg/protocol/outofband"
)

var (
	inviteCmd = &cobra.Command{
		Use:   "invite",
		Short: "manage out-of-band invitations",
	}

	invite_newCmd = &cobra.Command{
		Use:   "new",
		Short: "create an invitation",
		RunE:  runInviteNew,
	}
)

func init() {
	invite_newCmd.Flags().String("from", "", "inviting identity DID")
	invite_newCmd.Flags().String("base", "https://didmsg.invalid/invite", "base url for the invitation")
	invite_newCmd.Flags().Duration("ttl", 0, "invitation lifetime (0 for no expiry)")
	invite_newCmd.Flags().String("qr", "", "write a QR PNG to this path")
}

func runInviteNew(cmd *cobra.Command, args []string) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	from, _ := cmd.Flags().GetString("from")
	if from == "" {
		return errors.New("--from is required")
	}

	a, err := agent.New(cfg, agent.WithIdentity(from))
	if err != nil {
		return errors.Wrap(err, "initing agent")
	}
	defer a.Stop()

	var opts []outofband.Option

	if ttl, _ := cmd.Flags().GetDuration("ttl"); ttl != 0 {
		opts = append(opts, outofband.WithTTL(ttl))
	}

	inv, err := a.CreateInvitation(opts...)
	if err != nil {
		return err
	}

	base, _ := cmd.Flags().GetString("base")

	u, err := a.InvitationURL(inv, base)
	if err != nil {
		return err
	}

	fmt.Println(u)

	if qrPath, _ := cmd.Flags().GetString("qr"); qrPath != "" {
		png, err := a.InvitationQR(u, 512)
		if err != nil {
			return err
		}

		if err := ioutil.WriteFile(qrPath, png, 0644); err != nil {
			return errors.Wrap(err, "writing qr png")
		}
	}

	return nil
}
