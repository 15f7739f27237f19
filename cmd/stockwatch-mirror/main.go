package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"stockwatch/internal/live"
	"stockwatch/internal/util"
	"stockwatch/internal/watchlist"
)

func main() {
	addr := "localhost:50051"
	if a := os.Getenv("GRPC_ADDR"); a != "" {
		addr = a
	}
	flag.StringVar(&addr, "addr", addr, "stockwatch-server gRPC address")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger, logCloser, err := util.NewLogger(util.LogOptions{Level: *level, Format: "text", Output: os.Stderr})
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	client, err := live.Dial(addr, logger)
	if err != nil {
		logger.Error("dialing", "addr", addr, "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mirror := live.NewMirror()
	subID, ch := mirror.Subscribe(16)
	defer mirror.Unsubscribe(subID)

	// Reconnect with backoff until interrupted.
	go func() {
		err := util.Retry(ctx, 1<<30, time.Second, 30*time.Second, func() error {
			err := client.Sync(ctx, mirror)
			if ctx.Err() != nil {
				return util.Permanent(ctx.Err())
			}
			if err == nil {
				err = errors.New("stream closed by server")
			}
			logger.Warn("sync interrupted, reconnecting", "error", err)
			return err
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("sync error", "error", err)
		}
		cancel()
	}()

	for {
		select {
		case snap := <-ch:
			printSnapshot(os.Stdout, snap, mirror.Selectors())
		case <-ctx.Done():
			fmt.Println("\nshutdown")
			return
		}
	}
}

func printSnapshot(out io.Writer, snap live.Snapshot, sel *watchlist.Selectors) {
	what := "snapshot"
	if snap.Action != "" {
		what = snap.Action + " " + snap.WatchlistID
	}
	fmt.Fprintf(out, "%s  v%d  %s\n", time.Now().Format("15:04:05"), snap.Version, what)

	def, _ := sel.DefaultWatchlist()
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"", "ID", "Name", "Symbols"})
	for _, w := range sel.ListWatchlists() {
		mark := ""
		if w.ID == def.ID {
			mark = "*"
		}
		t.AppendRow(table.Row{mark, w.ID, w.Name, fmt.Sprint(w.Symbols())})
	}
	t.Render()
}
