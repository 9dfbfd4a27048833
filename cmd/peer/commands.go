package peer

import (
	"fmt"

	cmdUtil "github.com/openr-go/openr/cmd/util"
	"github.com/openr-go/openr/kvstore"
	"github.com/spf13/cobra"
)

var (
	addCmd = &cobra.Command{
		Use:   "add [peerId] [address]",
		Short: "Registers a peer for the configured area, opening a flood session to it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := kvstore.PeerSpec{PeerId: args[0], Address: args[1]}
			if err := peerClient.AddPeer(cmdUtil.GetArea(), spec); err != nil {
				return err
			}
			fmt.Println("peer added")
			return nil
		},
	}

	delCmd = &cobra.Command{
		Use:   "del [peerId]",
		Short: "Removes a peer, tearing down its flood session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := peerClient.DelPeer(cmdUtil.GetArea(), args[0]); err != nil {
				return err
			}
			fmt.Println("peer removed")
			return nil
		},
	}

	dumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Lists every registered peer for the configured area",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			peers, err := peerClient.DumpPeers(cmdUtil.GetArea())
			if err != nil {
				return err
			}
			for _, p := range peers {
				fmt.Printf("%s: %s\n", p.PeerId, p.Address)
			}
			return nil
		},
	}
)
