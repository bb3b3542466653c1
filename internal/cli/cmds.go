package cli

func regCommands() {
	//Identity
	identityCmd.AddCommand(identity_newCmd)

	//Invitations
	inviteCmd.AddCommand(invite_newCmd)

	//Queue
	queueCmd.AddCommand(queue_statsCmd)

	//Root
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(identityCmd)
	rootCmd.AddCommand(inviteCmd)
	rootCmd.AddCommand(queueCmd)
}
