package client

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rzbill/seglog/internal/cmd/client/transports"
	"github.com/rzbill/seglog/internal/runtime"
	logpkg "github.com/rzbill/seglog/pkg/log"
)

// NewRoot constructs a root Cobra command with the log, kv and shell groups
// and returns the shared flags bound to its persistent flag set. Commands log
// through logger; nil discards.
func NewRoot(logger logpkg.Logger) (*cobra.Command, *GlobalFlags) {
	root := &cobra.Command{
		Use:           "seglog",
		Short:         "Segmented log and key-value store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	g := &GlobalFlags{}
	g.Bind(root.PersistentFlags())
	e := &env{flags: g, logger: logger}
	root.AddCommand(
		newLogCommand(e),
		newKVCommand(e),
		newShellCommand(e),
	)
	return root, g
}

type env struct {
	flags  *GlobalFlags
	logger logpkg.Logger
}

// openRuntime opens the data directory selected by the flags of cmd.
func (e *env) openRuntime(cmd *cobra.Command) (*runtime.Runtime, error) {
	cfg, err := e.flags.Config(cmd.Flags())
	if err != nil {
		return nil, err
	}
	return runtime.Open(runtime.Options{Config: cfg, Logger: e.logger})
}

// withLog runs fn against the remote server when --grpc is set and against
// the local data directory otherwise.
func (e *env) withLog(cmd *cobra.Command, fn func(context.Context, transports.LogTransport) error) error {
	var (
		t   transports.LogTransport
		err error
	)
	if e.flags.GRPCAddr != "" {
		t, err = transports.DialGRPC(e.flags.GRPCAddr)
	} else {
		var rt *runtime.Runtime
		if rt, err = e.openRuntime(cmd); err == nil {
			t = transports.NewLocal(rt)
		}
	}
	if err != nil {
		return err
	}
	runErr := fn(cmdContext(cmd), t)
	if closeErr := t.Close(); runErr == nil {
		runErr = closeErr
	}
	return runErr
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
