package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"stockwatch/internal/config"
	"stockwatch/internal/domain"
	"stockwatch/internal/httpapi"
	"stockwatch/internal/store"
	"stockwatch/internal/util"
	"stockwatch/internal/watchlist"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: stockwatch-cli [-config path] <command> [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  list                        List watchlists\n")
	fmt.Fprintf(os.Stderr, "  show <id>                   Show the stocks of a watchlist (\"-\" for the default)\n")
	fmt.Fprintf(os.Stderr, "  create <name>               Create a watchlist\n")
	fmt.Fprintf(os.Stderr, "  rename <id> <name>          Rename a watchlist\n")
	fmt.Fprintf(os.Stderr, "  delete <id>                 Delete a watchlist\n")
	fmt.Fprintf(os.Stderr, "  add <id> <symbol> [name]    Add a stock (\"-\" for the default)\n")
	fmt.Fprintf(os.Stderr, "  remove <id> <symbol>        Remove a stock (\"-\" for the default)\n")
	fmt.Fprintf(os.Stderr, "  default <id>                Make a watchlist the default\n")
	fmt.Fprintf(os.Stderr, "  clear                       Remove every stock from the default watchlist\n")
	fmt.Fprintf(os.Stderr, "  version                     Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "\n")
}

func main() {
	cfgPath := flag.String("config", "", "config file (default $STOCKWATCH_CONFIG or "+config.DefaultPath+")")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	if flag.Arg(0) == "version" {
		fmt.Printf("stockwatch-cli %s\n", version)
		return
	}
	os.Exit(execute(*cfgPath, flag.Args(), os.Stdout, os.Stderr))
}

// execute opens the configured store, runs one command and returns the
// process exit code. Storage and the log file are closed before it returns.
func execute(cfgPath string, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "loading config: %v\n", err)
		return 1
	}
	logger, logCloser, err := util.NewLogger(util.LogOptions{Level: "warn", Format: "text", Output: stderr})
	if err != nil {
		fmt.Fprintf(stderr, "setting up logging: %v\n", err)
		return 1
	}
	defer logCloser.Close()

	kv, kvCloser, err := store.OpenKV(cfg.Storage.Backend, cfg.Storage.DataDir, cfg.Storage.SQLitePath)
	if err != nil {
		fmt.Fprintf(stderr, "opening storage: %v\n", err)
		return 1
	}
	defer kvCloser.Close()

	ctx := context.Background()
	wl, err := watchlist.New(ctx, kv, watchlist.WithKey(cfg.Watchlist.Key), watchlist.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(stderr, "opening watchlists: %v\n", err)
		return 1
	}

	runErr := run(wl, args, stdout)

	closeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := wl.Close(closeCtx); err != nil {
		fmt.Fprintf(stderr, "saving watchlists: %v\n", err)
		return 1
	}

	if runErr != nil {
		if errors.Is(runErr, errUsage) {
			flag.Usage()
		}
		fmt.Fprintf(stderr, "%v\n", runErr)
		return 1
	}
	return 0
}

var errUsage = errors.New("invalid arguments")

// run executes one command against wl and writes its output to out.
func run(wl *watchlist.Store, args []string, out io.Writer) error {
	cmd, args := args[0], args[1:]
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%w: %s needs %d argument(s)", errUsage, cmd, n)
		}
		return nil
	}

	switch cmd {
	case "list":
		printWatchlists(out, wl.Selectors())
		return nil

	case "show":
		if err := need(1); err != nil {
			return err
		}
		w, ok := lookup(wl, args[0])
		if !ok {
			return fmt.Errorf("watchlist %s not found", args[0])
		}
		printStocks(out, w)
		return nil

	case "create":
		if err := need(1); err != nil {
			return err
		}
		name, err := httpapi.CheckWatchlistName(wl.State(), strings.Join(args, " "), "")
		if err != nil {
			return err
		}
		return report(out, wl.CreateWatchlist(name))

	case "rename":
		if err := need(2); err != nil {
			return err
		}
		if _, ok := wl.State().Watchlist(args[0]); !ok {
			return report(out, watchlist.Result{Outcome: watchlist.NotFound, WatchlistID: args[0]})
		}
		name, err := httpapi.CheckWatchlistName(wl.State(), strings.Join(args[1:], " "), args[0])
		if err != nil {
			return err
		}
		return report(out, wl.RenameWatchlist(args[0], name))

	case "delete":
		if err := need(1); err != nil {
			return err
		}
		return report(out, wl.DeleteWatchlist(args[0]))

	case "add":
		if err := need(2); err != nil {
			return err
		}
		m := domain.Membership{Symbol: domain.NormalizeSymbol(args[1])}
		if len(args) > 2 {
			m.Name = strings.Join(args[2:], " ")
		}
		if m.Symbol == "" {
			return httpapi.ErrEmptySymbol
		}
		return report(out, wl.AddToWatchlist(targetID(args[0]), m))

	case "remove":
		if err := need(2); err != nil {
			return err
		}
		return report(out, wl.RemoveFromWatchlist(targetID(args[0]), args[1]))

	case "default":
		if err := need(1); err != nil {
			return err
		}
		return report(out, wl.SetDefaultWatchlist(args[0]))

	case "clear":
		return report(out, wl.ClearDefaultWatchlist())
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

// targetID maps "-" to the default watchlist.
func targetID(arg string) string {
	if arg == "-" {
		return ""
	}
	return arg
}

func lookup(wl *watchlist.Store, id string) (domain.Watchlist, bool) {
	if id == "-" {
		return wl.Selectors().DefaultWatchlist()
	}
	return wl.Selectors().WatchlistByID(id)
}

// report prints the outcome and turns not_found and forbidden into errors.
func report(out io.Writer, res watchlist.Result) error {
	switch res.Outcome {
	case watchlist.NotFound:
		return fmt.Errorf("watchlist %s not found", res.WatchlistID)
	case watchlist.Forbidden:
		return fmt.Errorf("watchlist %s is the default and cannot be deleted", res.WatchlistID)
	}
	fmt.Fprintf(out, "%s %s\n", res.Outcome, res.WatchlistID)
	return nil
}

func printWatchlists(out io.Writer, sel *watchlist.Selectors) {
	def, _ := sel.DefaultWatchlist()

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"", "ID", "Name", "Stocks", "Created"})
	for _, w := range sel.ListWatchlists() {
		mark := ""
		if w.ID == def.ID {
			mark = "*"
		}
		t.AppendRow(table.Row{mark, w.ID, w.Name, len(w.Stocks), formatMillis(w.CreatedAt)})
	}
	t.Render()
}

func printStocks(out io.Writer, w domain.Watchlist) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.SetTitle(w.Name)
	t.AppendHeader(table.Row{"#", "Symbol", "Name", "Added"})
	for i, m := range w.Stocks {
		t.AppendRow(table.Row{i + 1, m.Symbol, m.Name, formatMillis(m.AddedAt)})
	}
	t.AppendFooter(table.Row{"", "", "Total", len(w.Stocks)})
	t.Render()
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}
