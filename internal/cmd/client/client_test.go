package client

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/seglog/internal/cmd/client/transports"
	cfgpkg "github.com/rzbill/seglog/internal/config"
	"github.com/rzbill/seglog/internal/runtime"
)

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root, _ := NewRoot(nil)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader("from-stdin"))
	root.SetArgs(append([]string{"--data-dir", dir}, args...))
	err := root.Execute()
	return out.String(), err
}

func decodeLines(t *testing.T, s string) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(strings.NewReader(s))
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		out = append(out, m)
	}
	return out
}

func TestLogCommands(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "log", "append", "first")
	require.NoError(t, err)
	require.JSONEq(t, `{"seq":1}`, out)

	out, err = run(t, dir, "log", "append-batch", "b", "c", "-")
	require.NoError(t, err)
	require.JSONEq(t, `{"seqs":[2,3,4]}`, out)

	out, err = run(t, dir, "log", "get", "4")
	require.NoError(t, err)
	require.JSONEq(t, `{"seq":4,"value_text":"from-stdin"}`, out)

	_, err = run(t, dir, "log", "put", "10", `{"n":1}`)
	require.NoError(t, err)

	out, err = run(t, dir, "log", "tail", "-n", "2")
	require.NoError(t, err)
	lines := decodeLines(t, out)
	require.Len(t, lines, 2)
	require.Equal(t, float64(4), lines[0]["seq"])
	require.Equal(t, map[string]any{"n": float64(1)}, lines[1]["value_json"])

	out, err = run(t, dir, "log", "last-key")
	require.NoError(t, err)
	require.JSONEq(t, `{"found":true,"seq":10}`, out)

	_, err = run(t, dir, "log", "truncate", "--before", "3")
	require.NoError(t, err)

	out, err = run(t, dir, "log", "scan")
	require.NoError(t, err)
	var seqs []float64
	for _, l := range decodeLines(t, out) {
		seqs = append(seqs, l["seq"].(float64))
	}
	if diff := cmp.Diff([]float64{3, 4, 10}, seqs); diff != "" {
		t.Fatalf("scan mismatch (-want +got):\n%s", diff)
	}

	out, err = run(t, dir, "log", "scan", "--reverse", "--limit", "1")
	require.NoError(t, err)
	require.Len(t, decodeLines(t, out), 1)
}

func TestLogTrim(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "log", "append-batch", "a", "b", "c", "d")
	require.NoError(t, err)

	out, err := run(t, dir, "log", "trim", "--keep", "2")
	require.NoError(t, err)
	require.JSONEq(t, `{"before":3}`, out)

	_, err = run(t, dir, "log", "trim")
	require.Error(t, err)
	_, err = run(t, dir, "log", "trim", "--keep", "1", "--max-bytes", "1")
	require.Error(t, err)
}

func TestLogTruncateRequiresBefore(t *testing.T) {
	_, err := run(t, t.TempDir(), "log", "truncate")
	require.Error(t, err)
}

func TestLogCatchUpOnPrimaryFails(t *testing.T) {
	_, err := run(t, t.TempDir(), "log", "catch-up")
	require.Error(t, err)
}

func TestKVCommands(t *testing.T) {
	dir := t.TempDir()
	for _, kv := range [][2]string{{"b", "2"}, {"a", "1"}, {"c", "3"}} {
		_, err := run(t, dir, "kv", "put", kv[0], kv[1])
		require.NoError(t, err)
	}
	out, err := run(t, dir, "kv", "get", "a")
	require.NoError(t, err)
	require.Contains(t, out, `"value_text":"1"`)

	_, err = run(t, dir, "kv", "delete", "b")
	require.NoError(t, err)
	_, err = run(t, dir, "kv", "get", "b")
	require.Error(t, err)

	out, err = run(t, dir, "kv", "scan", "--reverse")
	require.NoError(t, err)
	lines := decodeLines(t, out)
	require.Len(t, lines, 2)
	require.Equal(t, "c", lines[0]["key"])
	require.Equal(t, "a", lines[1]["key"])
}

func TestFlagsOverrideDefaults(t *testing.T) {
	dir := t.TempDir()
	g := &GlobalFlags{}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	g.Bind(fs)
	_ = fs.Parse([]string{"--data-dir", dir, "--compression=false"})
	cfg, err := g.Config(fs)
	require.NoError(t, err)
	require.Equal(t, dir, cfg.DataDir)
	require.False(t, cfg.Compression)
	require.Equal(t, cfgpkg.Default().ScanBatchSize, cfg.ScanBatchSize)
}

func TestShellExec(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	rt, err := runtime.Open(runtime.Options{Config: cfg})
	require.NoError(t, err)
	tr := transports.NewLocal(rt)
	defer tr.Close()

	var out bytes.Buffer
	sh := &shell{t: tr, out: &out}
	ctx := context.Background()
	require.False(t, sh.exec(ctx, "append x y z"))
	require.Contains(t, out.String(), "[1 2 3]")

	out.Reset()
	require.False(t, sh.exec(ctx, "tail 1"))
	require.Contains(t, out.String(), `"value_text":"z"`)

	out.Reset()
	require.False(t, sh.exec(ctx, "get 99"))
	require.Contains(t, out.String(), "error:")

	out.Reset()
	require.False(t, sh.exec(ctx, "bogus"))
	require.Contains(t, out.String(), "unknown command")

	require.True(t, sh.exec(ctx, "exit"))
}
