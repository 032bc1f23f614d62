package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/rzbill/seglog/internal/cmd/client/transports"
)

// newLogCommand constructs the `log` command group.
func newLogCommand(e *env) *cobra.Command {
	logCmd := &cobra.Command{Use: "log", Short: "Segmented log operations"}
	logCmd.AddCommand(
		newLogAppendCommand(e),
		newLogAppendBatchCommand(e),
		newLogPutCommand(e),
		newLogGetCommand(e),
		newLogTailCommand(e),
		newLogLastKeyCommand(e),
		newLogScanCommand(e),
		newLogTruncateCommand(e),
		newLogTrimCommand(e),
		newLogCatchUpCommand(e),
	)
	return logCmd
}

func newLogAppendCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "append <value|->",
		Short: "Append one value and print its sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b64, _ := cmd.Flags().GetBool("b64")
			v, err := valueArg(args[0], cmd.InOrStdin(), b64)
			if err != nil {
				return err
			}
			return e.withLog(cmd, func(ctx context.Context, t transports.LogTransport) error {
				seqs, err := t.Append(ctx, [][]byte{v})
				if err != nil {
					return err
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"seq": seqs[0]})
			})
		},
	}
	cmd.Flags().Bool("b64", false, "Value is base64 encoded")
	return cmd
}

func newLogAppendBatchCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "append-batch <value>...",
		Short: "Append values atomically with contiguous sequences",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b64, _ := cmd.Flags().GetBool("b64")
			values := make([][]byte, len(args))
			for i, a := range args {
				v, err := valueArg(a, cmd.InOrStdin(), b64)
				if err != nil {
					return err
				}
				values[i] = v
			}
			return e.withLog(cmd, func(ctx context.Context, t transports.LogTransport) error {
				seqs, err := t.Append(ctx, values)
				if err != nil {
					return err
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"seqs": seqs})
			})
		},
	}
	cmd.Flags().Bool("b64", false, "Values are base64 encoded")
	return cmd
}

func newLogPutCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <seq> <value|->",
		Short: "Write a value at an explicit sequence",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSeq(args[0])
			if err != nil {
				return err
			}
			b64, _ := cmd.Flags().GetBool("b64")
			v, err := valueArg(args[1], cmd.InOrStdin(), b64)
			if err != nil {
				return err
			}
			return e.withLog(cmd, func(ctx context.Context, t transports.LogTransport) error {
				return t.Put(ctx, id, v)
			})
		},
	}
	cmd.Flags().Bool("b64", false, "Value is base64 encoded")
	return cmd
}

func newLogGetCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <seq>",
		Short: "Print the entry at a sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSeq(args[0])
			if err != nil {
				return err
			}
			return e.withLog(cmd, func(ctx context.Context, t transports.LogTransport) error {
				v, err := t.Get(ctx, id)
				if err != nil {
					return err
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(decodedEntry(id, v))
			})
		},
	}
}

// newLogTailCommand prints the last N entries, then optionally keeps
// following new appends. Against a secondary each poll catches up first.
func newLogTailCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print the last entries, oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, _ := cmd.Flags().GetInt("n")
			follow, _ := cmd.Flags().GetBool("follow")
			interval, _ := cmd.Flags().GetDuration("interval")
			catchUp, _ := cmd.Flags().GetBool("catch-up")
			return e.withLog(cmd, func(ctx context.Context, t transports.LogTransport) error {
				enc := json.NewEncoder(cmd.OutOrStdout())
				entries, err := t.ReadLast(ctx, n)
				if err != nil {
					return err
				}
				var next int64
				for _, en := range entries {
					if err := enc.Encode(decodedEntry(en.Seq, en.Value)); err != nil {
						return err
					}
					next = en.Seq + 1
				}
				if !follow {
					return nil
				}
				if next == 0 {
					if last, ok, err := t.LastKey(ctx); err != nil {
						return err
					} else if ok {
						next = last + 1
					}
				}
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
					}
					if catchUp {
						if _, err := t.CatchUp(ctx); err != nil {
							return err
						}
					}
					start := next
					err := t.Scan(ctx, transports.ScanRequest{Start: &start}, func(en transports.Entry) error {
						next = en.Seq + 1
						return enc.Encode(decodedEntry(en.Seq, en.Value))
					})
					if err != nil {
						return err
					}
				}
			})
		},
	}
	cmd.Flags().IntP("n", "n", 10, "Number of entries")
	cmd.Flags().BoolP("follow", "f", false, "Keep printing new entries")
	cmd.Flags().Duration("interval", time.Second, "Poll interval with --follow")
	cmd.Flags().Bool("catch-up", false, "Catch up before each poll (secondary mode)")
	return cmd
}

func newLogLastKeyCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "last-key",
		Short: "Print the greatest sequence in the log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withLog(cmd, func(ctx context.Context, t transports.LogTransport) error {
				last, ok, err := t.LastKey(ctx)
				if err != nil {
					return err
				}
				out := map[string]any{"found": ok}
				if ok {
					out["seq"] = last
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(out)
			})
		},
	}
}

func newLogScanCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Iterate entries from a start sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := transports.ScanRequest{}
			if cmd.Flags().Changed("from") {
				from, _ := cmd.Flags().GetInt64("from")
				req.Start = &from
			}
			req.Reverse, _ = cmd.Flags().GetBool("reverse")
			req.Limit, _ = cmd.Flags().GetInt("limit")
			req.BatchSize, _ = cmd.Flags().GetInt("batch")
			req.Filter, _ = cmd.Flags().GetString("filter")
			return e.withLog(cmd, func(ctx context.Context, t transports.LogTransport) error {
				enc := json.NewEncoder(cmd.OutOrStdout())
				return t.Scan(ctx, req, func(en transports.Entry) error {
					return enc.Encode(decodedEntry(en.Seq, en.Value))
				})
			})
		},
	}
	cmd.Flags().Int64("from", 0, "Start sequence (default: first, or last with --reverse)")
	cmd.Flags().Bool("reverse", false, "Iterate from newest to oldest")
	cmd.Flags().Int("limit", 0, "Stop after N entries (0 = all)")
	cmd.Flags().Int("batch", 0, "Page size (default from config)")
	cmd.Flags().String("filter", "", "CEL filter over seq, key, value, size, text, json, now_ms")
	return cmd
}

func newLogTruncateCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "truncate",
		Short: "Delete every entry below --before",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("before") {
				return errors.New("--before is required")
			}
			before, _ := cmd.Flags().GetInt64("before")
			return e.withLog(cmd, func(ctx context.Context, t transports.LogTransport) error {
				return t.Truncate(ctx, before)
			})
		},
	}
	cmd.Flags().Int64("before", 0, "Exclusive upper bound; entries below it are deleted")
	return cmd
}

func newLogTrimCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trim",
		Short: "Apply a retention bound: --keep N newest or --max-bytes B",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				keep     *int
				maxBytes *int64
			)
			if cmd.Flags().Changed("keep") {
				n, _ := cmd.Flags().GetInt("keep")
				keep = &n
			}
			if cmd.Flags().Changed("max-bytes") {
				n, _ := cmd.Flags().GetInt64("max-bytes")
				maxBytes = &n
			}
			if (keep == nil) == (maxBytes == nil) {
				return errors.New("exactly one of --keep or --max-bytes is required")
			}
			return e.withLog(cmd, func(ctx context.Context, t transports.LogTransport) error {
				before, err := t.Trim(ctx, keep, maxBytes)
				if err != nil {
					return err
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{"before": before})
			})
		},
	}
	cmd.Flags().Int("keep", 0, "Keep this many newest entries")
	cmd.Flags().Int64("max-bytes", 0, "Keep the newest entries whose values fit in this many bytes")
	return cmd
}

func newLogCatchUpCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "catch-up",
		Short: "Resync a secondary with its primary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withLog(cmd, func(ctx context.Context, t transports.LogTransport) error {
				next, err := t.CatchUp(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "caught up; next sequence %d\n", next)
				return err
			})
		},
	}
}
