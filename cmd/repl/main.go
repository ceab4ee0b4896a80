// Command repl is an interactive get/put/remove/clear shell against a
// running TieredCache backed by an in-process memstore.
//
// Usage:
//
//	repl [--node-id=n1] [--slot-count=1024]
//
// Commands (in the shell):
//
//	get <key>
//	put <key> <value>
//	replace <key> <old> <new>
//	remove <key>
//	clear
//	help
//	exit / quit
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/nearcache/tiercache"
	"github.com/nearcache/tiercache/globalstore/memstore"
)

func main() {
	nodeID := flag.String("node-id", "", "this process's node id (default: generated)")
	slotCount := flag.Int("slot-count", tiercache.DefaultSlotCount, "near-cache slot count, must be a power of two")
	flag.Parse()

	cfg := tiercache.DefaultConfig()
	if *nodeID != "" {
		cfg.NodeID = *nodeID
	}
	cfg.NearCache.SlotCount = *slotCount
	cfg.ChangeFeed.CheckpointPath = "" // no persistence needed for a scratch shell

	store := memstore.New(4)
	cache, err := tiercache.New(cfg, memstore.NewClient(store, cfg.NodeID))
	if err != nil {
		if tiercache.IsConfigError(err) {
			fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		} else {
			fmt.Fprintln(os.Stderr, "failed to start cache:", err)
		}
		os.Exit(1)
	}
	defer cache.Close(context.Background())

	fmt.Printf("tiercache repl (node=%s, slots=%d)\n", cfg.NodeID, cfg.NearCache.SlotCount)
	fmt.Println("Type 'help' for available commands.")

	runShell(cache)
}

func runShell(cache *tiercache.TieredCache) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	ctx := context.Background()
	for {
		input, err := line.Prompt("tiercache> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nbye")
				return
			}
			fmt.Fprintln(os.Stderr, "reading input:", err)
			return
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		fields := strings.Fields(input)
		cmd := strings.ToLower(fields[0])
		args := fields[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("bye")
			return
		case "help", "?":
			printHelp()
		case "get":
			runGet(ctx, cache, args)
		case "put":
			runPut(ctx, cache, args)
		case "replace":
			runReplace(ctx, cache, args)
		case "remove", "rm", "del":
			runRemove(ctx, cache, args)
		case "clear":
			if err := cache.Clear(ctx); err != nil {
				printErr(err)
			} else {
				fmt.Println("ok")
			}
		default:
			fmt.Printf("unknown command %q; type 'help'\n", cmd)
		}
	}
}

// printErr reports an operation error along with its coded diagnostics, so
// users can see whether a failure is retryable without reading the source.
func printErr(err error) {
	fmt.Println("error:", err)
	if code := tiercache.GetErrorCode(err); code != "" {
		fmt.Printf("  code: %s (retryable: %v)\n", code, tiercache.IsRetryable(err))
	}
	if ctx := tiercache.GetErrorContext(err); len(ctx) > 0 {
		fmt.Printf("  context: %v\n", ctx)
	}
}

func printHelp() {
	fmt.Println(`commands:
  get <key>
  put <key> <value>
  replace <key> <old> <new>
  remove <key>
  clear
  help
  exit / quit`)
}

func runGet(ctx context.Context, cache *tiercache.TieredCache, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: get <key>")
		return
	}
	v, found, err := cache.Get(ctx, args[0])
	if err != nil {
		printErr(err)
		return
	}
	if !found {
		fmt.Println("(not found)")
		return
	}
	fmt.Println(string(v))
}

func runPut(ctx context.Context, cache *tiercache.TieredCache, args []string) {
	if len(args) != 2 {
		fmt.Println("usage: put <key> <value>")
		return
	}
	if err := cache.Put(ctx, args[0], []byte(args[1])); err != nil {
		printErr(err)
		return
	}
	fmt.Println("ok")
}

func runReplace(ctx context.Context, cache *tiercache.TieredCache, args []string) {
	if len(args) != 3 {
		fmt.Println("usage: replace <key> <old> <new>")
		return
	}
	ok, err := cache.Replace(ctx, args[0], []byte(args[1]), []byte(args[2]))
	if err != nil {
		printErr(err)
		return
	}
	fmt.Println(ok)
}

func runRemove(ctx context.Context, cache *tiercache.TieredCache, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: remove <key>")
		return
	}
	if err := cache.Remove(ctx, args[0]); err != nil {
		printErr(err)
		return
	}
	fmt.Println("ok")
}
