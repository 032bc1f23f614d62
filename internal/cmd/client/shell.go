package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/rzbill/seglog/internal/cmd/client/transports"
)

var shellCommands = []string{
	"append", "get", "put", "tail", "last", "scan", "truncate", "catchup", "help", "exit",
}

// newShellCommand opens an interactive prompt over one log.
func newShellCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive prompt over the log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withLog(cmd, func(ctx context.Context, t transports.LogTransport) error {
				sh := &shell{t: t, out: cmd.OutOrStdout()}
				return sh.run(ctx)
			})
		},
	}
}

type shell struct {
	t   transports.LogTransport
	out io.Writer
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".seglog_history")
}

func (s *shell) run(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) []string {
		var out []string
		for _, c := range shellCommands {
			if strings.HasPrefix(c, strings.ToLower(prefix)) {
				out = append(out, c)
			}
		}
		return out
	})
	if f, err := os.Open(historyFile()); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if path := historyFile(); path != "" {
			if f, err := os.Create(path); err == nil {
				_, _ = line.WriteHistory(f)
				_ = f.Close()
			}
		}
	}()

	fmt.Fprintln(s.out, "seglog shell. Type 'help' for commands.")
	for {
		input, err := line.Prompt("seglog> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			return errors.Wrap(err, "reading input")
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		if done := s.exec(ctx, input); done {
			return nil
		}
	}
}

// exec runs one shell line and reports whether the shell should exit.
func (s *shell) exec(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	name, args := strings.ToLower(parts[0]), parts[1:]
	var err error
	switch name {
	case "exit", "quit", "q":
		return true
	case "help", "?":
		s.help()
	case "append":
		err = s.append(ctx, args)
	case "get":
		err = s.get(ctx, args)
	case "put":
		err = s.put(ctx, args)
	case "tail", "last":
		err = s.tail(ctx, args)
	case "scan":
		err = s.scan(ctx, args)
	case "truncate":
		err = s.truncate(ctx, args)
	case "catchup", "catch-up":
		var next int64
		if next, err = s.t.CatchUp(ctx); err == nil {
			fmt.Fprintf(s.out, "next sequence %d\n", next)
		}
	default:
		fmt.Fprintf(s.out, "unknown command: %s (type 'help' for commands)\n", name)
	}
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
	return false
}

func (s *shell) help() {
	fmt.Fprint(s.out, `  append <value>...        append values atomically
  get <seq>                print one entry
  put <seq> <value>        write at an explicit sequence
  tail [n]                 print the last n entries (default 10)
  scan [from] [limit]      iterate forward from a sequence
  truncate <before>        delete entries below a sequence
  catchup                  resync a secondary
  exit                     leave the shell
`)
}

func (s *shell) print(seq int64, value []byte) {
	b, _ := json.Marshal(decodedEntry(seq, value))
	fmt.Fprintln(s.out, string(b))
}

func (s *shell) append(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: append <value>...")
	}
	values := make([][]byte, len(args))
	for i, a := range args {
		values[i] = []byte(a)
	}
	seqs, err := s.t.Append(ctx, values)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, seqs)
	return nil
}

func (s *shell) get(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: get <seq>")
	}
	id, err := parseSeq(args[0])
	if err != nil {
		return err
	}
	v, err := s.t.Get(ctx, id)
	if err != nil {
		return err
	}
	s.print(id, v)
	return nil
}

func (s *shell) put(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: put <seq> <value>")
	}
	id, err := parseSeq(args[0])
	if err != nil {
		return err
	}
	return s.t.Put(ctx, id, []byte(strings.Join(args[1:], " ")))
}

func (s *shell) tail(ctx context.Context, args []string) error {
	n := 10
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return errors.Newf("invalid count %q", args[0])
		}
		n = v
	}
	entries, err := s.t.ReadLast(ctx, n)
	if err != nil {
		return err
	}
	for _, en := range entries {
		s.print(en.Seq, en.Value)
	}
	return nil
}

func (s *shell) scan(ctx context.Context, args []string) error {
	req := transports.ScanRequest{Limit: 100}
	if len(args) > 0 {
		from, err := parseSeq(args[0])
		if err != nil {
			return err
		}
		req.Start = &from
	}
	if len(args) > 1 {
		limit, err := strconv.Atoi(args[1])
		if err != nil {
			return errors.Newf("invalid limit %q", args[1])
		}
		req.Limit = limit
	}
	return s.t.Scan(ctx, req, func(en transports.Entry) error {
		s.print(en.Seq, en.Value)
		return nil
	})
}

func (s *shell) truncate(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: truncate <before>")
	}
	before, err := parseSeq(args[0])
	if err != nil {
		return err
	}
	return s.t.Truncate(ctx, before)
}
