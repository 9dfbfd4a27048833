package kv

import (
	cmdUtil "github.com/openr-go/openr/cmd/util"
	"github.com/openr-go/openr/rpc/client"
	"github.com/spf13/cobra"
)

var (
	kvClient *client.RPCKvStoreClient

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:               "kv",
		Short:             "Perform key-value operations against an area",
		PersistentPreRunE: setupKVClient,
	}
)

func init() {
	cobra.OnInitialize(cmdUtil.InitClientConfig)
	cmdUtil.SetupRPCClientFlags(KeyValueCommands)

	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(dumpCmd)
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(subscribeCmd)
}

// setupKVClient initializes the RPC kvstore client
func setupKVClient(cmd *cobra.Command, _ []string) error {
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

	kvClient, err = client.NewRPCKvStoreClient(shardId, *config, t, s)
	return err
}
