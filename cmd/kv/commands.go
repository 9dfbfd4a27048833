package kv

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	cmdUtil "github.com/openr-go/openr/cmd/util"
	"github.com/openr-go/openr/kvstore"
	"github.com/openr-go/openr/rpc/common"
	"github.com/spf13/cobra"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [key...]",
		Short: "Reads one or more keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vals, err := kvClient.GetKeyVals(cmdUtil.GetArea(), args)
			if err != nil {
				return err
			}
			for _, key := range args {
				v, ok := vals[key]
				if !ok {
					fmt.Printf("%s: not found\n", key)
					continue
				}
				fmt.Printf("%s: version=%d originator=%s payload=%q ttl=%d\n", key, v.Version, v.OriginatorId, v.Payload, v.Ttl)
			}
			return nil
		},
	}

	dumpCmd = &cobra.Command{
		Use:   "dump [prefix]",
		Short: "Dumps every key in the area, optionally filtered by prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *common.FilterSpec
			if len(args) == 1 {
				filter = &common.FilterSpec{KeyPrefixRegexes: []string{"^" + args[0]}, Operator: "OR"}
			}
			vals, err := kvClient.DumpAll(cmdUtil.GetArea(), filter)
			if err != nil {
				return err
			}
			for key, v := range vals {
				fmt.Printf("%s: version=%d originator=%s payload=%q ttl=%d\n", key, v.Version, v.OriginatorId, v.Payload, v.Ttl)
			}
			return nil
		},
	}

	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Originates a key with an explicit version, bumping any prior version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, payload := args[0], args[1]
			version, _ := cmd.Flags().GetInt64("version")
			ttl, _ := cmd.Flags().GetInt64("ttl")
			originator, _ := cmd.Flags().GetString("originator")

			accepted, err := kvClient.SetKeyVals(cmdUtil.GetArea(), map[string]*kvstore.Value{
				key: {
					Version:      version,
					OriginatorId: originator,
					Payload:      []byte(payload),
					Ttl:          ttl,
				},
			})
			if err != nil {
				return err
			}
			if len(accepted) == 0 {
				return fmt.Errorf("rejected: version %d is not newer than the stored value", version)
			}
			fmt.Println("set successfully")
			return nil
		},
	}

	delCmd = &cobra.Command{
		Use:   "del [key...]",
		Short: "Deletes one or more keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvClient.DelKeys(cmdUtil.GetArea(), args); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}

	subscribeCmd = &cobra.Command{
		Use:   "watch [prefix]",
		Short: "Long-polls the area for changes and prints each update until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *common.FilterSpec
			if len(args) == 1 {
				filter = &common.FilterSpec{KeyPrefixRegexes: []string{"^" + args[0]}, Operator: "OR"}
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			err := kvClient.SubscribeLoop(ctx, cmdUtil.GetArea(), filter, func(pub *kvstore.Publication) {
				for key, v := range pub.KeyVals {
					fmt.Printf("%s: version=%d originator=%s payload=%q ttl=%d\n", key, v.Version, v.OriginatorId, v.Payload, v.Ttl)
				}
				for _, key := range pub.ExpiredKeys {
					fmt.Printf("%s: expired\n", key)
				}
			})
			if err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}
)

func init() {
	setCmd.Flags().Int64("version", 1, cmdUtil.WrapString("Version to originate the key at; must exceed the stored version to be accepted"))
	setCmd.Flags().Int64("ttl", kvstore.TTLInfinity, cmdUtil.WrapString("TTL in milliseconds, or -1 for TTL_INFINITY"))
	setCmd.Flags().String("originator", "cli", cmdUtil.WrapString("OriginatorId to record for this key"))
}
