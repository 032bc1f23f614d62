package client

import (
	"encoding/base64"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/rzbill/seglog/internal/cursor"
	"github.com/rzbill/seglog/internal/filter"
	"github.com/rzbill/seglog/internal/runtime"
)

// newKVCommand constructs the `kv` command group. It always works on the
// local data directory.
func newKVCommand(e *env) *cobra.Command {
	kvCmd := &cobra.Command{Use: "kv", Short: "Key-value store operations"}
	kvCmd.PersistentFlags().Bool("b64", false, "Keys and values are base64 encoded")
	kvCmd.AddCommand(
		newKVPutCommand(e),
		newKVGetCommand(e),
		newKVDeleteCommand(e),
		newKVScanCommand(e),
	)
	return kvCmd
}

func (e *env) withRuntime(cmd *cobra.Command, fn func(*runtime.Runtime) error) error {
	rt, err := e.openRuntime(cmd)
	if err != nil {
		return err
	}
	runErr := fn(rt)
	if closeErr := rt.Close(); runErr == nil {
		runErr = closeErr
	}
	return runErr
}

func keyArg(cmd *cobra.Command, arg string) ([]byte, error) {
	b64, _ := cmd.Flags().GetBool("b64")
	if !b64 {
		return []byte(arg), nil
	}
	return base64.StdEncoding.DecodeString(arg)
}

func newKVPutCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value|->",
		Short: "Store a value under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := keyArg(cmd, args[0])
			if err != nil {
				return err
			}
			b64, _ := cmd.Flags().GetBool("b64")
			v, err := valueArg(args[1], cmd.InOrStdin(), b64)
			if err != nil {
				return err
			}
			return e.withRuntime(cmd, func(rt *runtime.Runtime) error {
				return rt.KV().Put(cmdContext(cmd), k, v)
			})
		},
	}
}

func newKVGetCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := keyArg(cmd, args[0])
			if err != nil {
				return err
			}
			return e.withRuntime(cmd, func(rt *runtime.Runtime) error {
				v, err := rt.KV().Get(k)
				if err != nil {
					return err
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(decodedRecord(k, v))
			})
		},
	}
}

func newKVDeleteCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := keyArg(cmd, args[0])
			if err != nil {
				return err
			}
			return e.withRuntime(cmd, func(rt *runtime.Runtime) error {
				return rt.KV().Delete(cmdContext(cmd), k)
			})
		},
	}
}

func newKVScanCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Iterate records in key order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var start []byte
			if from, _ := cmd.Flags().GetString("from"); from != "" {
				k, err := keyArg(cmd, from)
				if err != nil {
					return err
				}
				start = k
			}
			reverse, _ := cmd.Flags().GetBool("reverse")
			limit, _ := cmd.Flags().GetInt("limit")
			expr, _ := cmd.Flags().GetString("filter")
			f, err := filter.New(expr)
			if err != nil {
				return err
			}
			return e.withRuntime(cmd, func(rt *runtime.Runtime) error {
				cur, err := rt.KV().Scan(cursor.Options{
					Start:     start,
					Reverse:   reverse,
					BatchSize: rt.Config().ScanBatchSize,
				})
				if err != nil {
					return err
				}
				defer cur.Close()
				enc := json.NewEncoder(cmd.OutOrStdout())
				n := 0
				for rec, ok := cur.Next(); ok; rec, ok = cur.Next() {
					if !f.Match(rec) {
						continue
					}
					if err := enc.Encode(decodedRecord(rec.Key, rec.Value)); err != nil {
						return err
					}
					if n++; limit > 0 && n >= limit {
						break
					}
				}
				return cur.Err()
			})
		},
	}
	cmd.Flags().String("from", "", "Start key (default: first, or last with --reverse)")
	cmd.Flags().Bool("reverse", false, "Iterate in descending key order")
	cmd.Flags().Int("limit", 0, "Stop after N records (0 = all)")
	cmd.Flags().String("filter", "", "CEL filter over key, value, size, text, json, now_ms")
	return cmd
}
