// Package client provides the `seglog` command-line client.
//
// Log commands open the data directory in-process, or talk to a running
// server when --grpc is set. Key-value commands always work on the data
// directory. Store selection follows defaults, then --config, then SEGLOG_*
// environment variables, then explicit flags.
//
// Usage
//
//	seglog log append '{"hello":"world"}'
//	seglog log append-batch a b c
//	seglog log put 42 answer
//	seglog log get 42
//	seglog log tail -n 5
//	seglog log tail -f --mode secondary --secondary-dir /tmp/mirror --catch-up
//	seglog log scan --from 10 --limit 20 --filter 'size > 3'
//	seglog log truncate --before 100
//	seglog log last-key
//	seglog --grpc 127.0.0.1:7071 log tail
//
//	seglog kv put user:1 alice
//	seglog kv scan --from user: --limit 10
//
//	seglog shell
package client
