

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/thediveo/pseudomm/poolserver"
	"github.com/thediveo/pseudomm/uds"
	"golang.org/x/sys/unix"
)

func newRootCmd() *cobra.Command {
	var socket, backing string
	cmd := &cobra.Command{
		Use:          "poolserver",
		Short:        "serves a remote memory pool",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.OpenFile(backing, os.O_RDWR|os.O_CREATE, 0o600)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			store := poolserver.NewBacking(f, slog.Default())

			if socket != "" {
				return poolserver.ListenAndServe(cmd.Context(), socket, store)
			}
			conn, err := uds.NewUnixConn(3, "pool-server")
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()
			poolserver.Serve(cmd.Context(), conn, store)
			return nil
		},
	}
	cmd.Flags().StringVar(&socket, "socket", "", "unix domain socket path to listen on")
	cmd.Flags().StringVar(&backing, "backing", "", "backing file of the memory pool")
	_ = cmd.MarkFlagRequired("backing")
	return cmd
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{})))

	slog.Info("pseudomm/poolserver/cmd/poolserver started",
		slog.Int("pid", os.Getpid()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		slog.Error("pseudomm/poolserver/cmd/poolserver failed",
			slog.Int("pid", os.Getpid()),
			slog.String("err", err.Error()))
		os.Exit(1)
	}
	slog.Info("pseudomm/poolserver/cmd/poolserver terminated",
		slog.Int("pid", os.Getpid()))
}
