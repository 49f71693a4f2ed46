package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"snaprpc/server/internal/broker"
	"snaprpc/server/internal/config"
	"snaprpc/server/internal/engine"
	"snaprpc/server/internal/jsonrpc"
)

const maxReplayLine = 1 << 20

func newReplayCommand(configPath *string) *cobra.Command {
	var concurrent bool

	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Dispatch a file of requests and print the responses",
		Long: `Replay reads one JSON-RPC request per line. Each request carries an
"origin" field naming the connection it arrives on. Responses are printed in
input order; notifications print nothing.

Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			in, closeIn, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeIn()

			lines, err := readLines(in)
			if err != nil {
				return err
			}

			host, cleanup, err := newHost(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out, err := replay(ctx, host, lines, concurrent)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, b := range out {
				if b == nil {
					continue
				}
				fmt.Fprintf(w, "%s\n", b)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&concurrent, "concurrent", false, "Dispatch all requests at once")

	return cmd
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s", path)
	}
	return f, func() { f.Close() }, nil
}

func readLines(r io.Reader) ([][]byte, error) {
	var lines [][]byte
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxReplayLine)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		lines = append(lines, bytes.Clone(line))
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read requests")
	}
	return lines, nil
}

// replay dispatches lines and returns one encoded response per line, nil for
// notifications. Each origin gets one engine. Sequential replay connects an
// origin on its first request, so a snap installed by an earlier line is
// recognized. Concurrent replay connects every origin before dispatching.
func replay(ctx context.Context, host *broker.Host, lines [][]byte, concurrent bool) ([][]byte, error) {
	out := make([][]byte, len(lines))
	origins := make([]string, len(lines))
	valid := make([]bool, len(lines))

	for i, line := range lines {
		req, rpcErr := jsonrpc.DecodeRequest(line)
		if rpcErr == nil {
			origins[i] = req.Origin
			valid[i] = true
			continue
		}
		res := &jsonrpc.Response{JSONRPC: jsonrpc.Version, Error: rpcErr}
		if req != nil {
			res.ID = req.ID
		}
		b, err := res.Encode()
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", i+1)
		}
		out[i] = b
	}

	engines := make(map[string]*engine.Engine)
	connect := func(ctx context.Context, origin string) (*engine.Engine, error) {
		if e, ok := engines[origin]; ok {
			return e, nil
		}
		e, err := host.Connect(ctx, origin)
		if err != nil {
			return nil, err
		}
		engines[origin] = e
		return e, nil
	}
	dispatch := func(ctx context.Context, e *engine.Engine, i int) error {
		b, err := e.HandleRaw(ctx, lines[i])
		if err != nil {
			return errors.Wrapf(err, "line %d", i+1)
		}
		out[i] = b
		return nil
	}

	if !concurrent {
		for i := range lines {
			if !valid[i] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			e, err := connect(ctx, origins[i])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", i+1)
			}
			if err := dispatch(ctx, e, i); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	targets := make([]*engine.Engine, len(lines))
	for i := range lines {
		if !valid[i] {
			continue
		}
		e, err := connect(ctx, origins[i])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", i+1)
		}
		targets[i] = e
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, e := range targets {
		if e == nil {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return dispatch(gctx, e, i)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
