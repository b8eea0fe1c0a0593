package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"x-rigid/backend/internal/transport/ws"
)

func newWatchCmd() *cobra.Command {
	var (
		url      string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "connect to a server and print mirrored body states",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			err := watch(ctx, url, interval, cmd.OutOrStdout())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/ws", "sync server url")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "print interval")
	return cmd
}

func watch(ctx context.Context, url string, interval time.Duration, out io.Writer) error {
	client, err := ws.Dial(ctx, url)
	if err != nil {
		return err
	}
	defer client.Close()

	mirror := ws.NewMirror()
	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Run(ctx, mirror.Apply, func(m map[string]any) {
			if m["type"] == ws.MessageTypeInfo {
				fmt.Fprintf(out, "server: %v\n", m["message"])
			}
		})
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case err := <-errCh:
			return err
		case <-ticker.C:
			printMirror(out, mirror)
		}
	}
}

func printMirror(out io.Writer, mirror *ws.Mirror) {
	bodies := mirror.Bodies()
	fmt.Fprintf(out, "%d bodies\n", len(bodies))
	for _, b := range bodies {
		p, v := b.State.Position, b.State.LinearVelocity
		fmt.Fprintf(out, "  %4d type=%d pos=(%7.2f, %7.2f, %7.2f) |v|=%.2f\n",
			b.Spawn.EntityID, b.Spawn.TypeID, p.X(), p.Y(), p.Z(), v.Len())
	}
}
