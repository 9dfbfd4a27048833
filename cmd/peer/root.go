package peer

import (
	cmdUtil "github.com/openr-go/openr/cmd/util"
	"github.com/openr-go/openr/rpc/client"
	"github.com/spf13/cobra"
)

var (
	peerClient *client.RPCKvStoreClient

	// PeerCommands represents the peer registry command group
	PeerCommands = &cobra.Command{
		Use:               "peer",
		Short:             "Manage an area's peer registry",
		PersistentPreRunE: setupPeerClient,
	}
)

func init() {
	cobra.OnInitialize(cmdUtil.InitClientConfig)
	cmdUtil.SetupRPCClientFlags(PeerCommands)

	PeerCommands.AddCommand(addCmd)
	PeerCommands.AddCommand(delCmd)
	PeerCommands.AddCommand(dumpCmd)
}

// setupPeerClient initializes the RPC kvstore client used for peer
// registry operations; peerAdd/peerDel/peerDump ride the same
// control-plane Message envelope as the kv commands.
func setupPeerClient(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := cmdUtil.GetClientConfig()
	shardId := cmdUtil.GetShardID()

	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetTransport()
	if err != nil {
		return err
	}

	peerClient, err = client.NewRPCKvStoreClient(shardId, *config, t, s)
	return err
}
