package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/praetorian-inc/aobscan/pkg/scanner"
	"github.com/praetorian-inc/aobscan/pkg/serve"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a streaming NDJSON server",
	Long: `Run aobscan as a long-lived streaming server that accepts scan and find
requests via stdin and writes responses to stdout, one JSON object per line.

The process loads the builtin rules once at startup and processes requests
until stdin closes, a "close" request arrives, or SIGTERM is received.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	core, err := scanner.NewCore("builtin", newLogger(cmd))
	if err != nil {
		return err
	}
	defer core.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	srv := serve.NewServer(core, cmd.InOrStdin(), cmd.OutOrStdout())
	return srv.Run(ctx)
}
