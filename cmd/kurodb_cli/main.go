// kurodb_cli is an interactive shell over an in-process KuroDB index,
// useful for poking at the tree behavior without embedding it anywhere.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/sushant-115/kurodb/core/indexing/bptree"
	"github.com/sushant-115/kurodb/core/kv"
	"github.com/sushant-115/kurodb/pkg/logger"
)

const helpText = `Commands:
  set <key> <value>   upsert a pair
  get <key>           look up a key
  del <key>           remove a key
  len                 number of stored keys
  help                this text
  exit                quit`

func main() {
	order := flag.Int("order", 9, "tree order (fan-out), at least 3")
	logLevel := flag.String("log-level", "error", "log level (debug, info, warn, error)")
	flag.Parse()

	zlogger, err := logger.New(logger.Config{Level: *logLevel, Format: "console"})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer zlogger.Sync()

	tree, err := bptree.New[kv.String, kv.String](*order, zlogger.Named("bptree"))
	if err != nil {
		log.Fatalf("failed to create tree: %v", err)
	}

	rl, err := readline.New("kurodb> ")
	if err != nil {
		log.Fatalf("failed to initialize readline: %v", err)
	}
	defer rl.Close()

	fmt.Printf("KuroDB shell (order %d). Type 'help' for commands.\n", *order)
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			zlogger.Error("readline failed", zap.Error(err))
			return
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "set":
			if len(fields) < 3 {
				fmt.Println("usage: set <key> <value>")
				continue
			}
			tree.Insert(kv.String(fields[1]), kv.String(strings.Join(fields[2:], " ")))
			fmt.Println("OK")
		case "get":
			if len(fields) != 2 {
				fmt.Println("usage: get <key>")
				continue
			}
			value, found := tree.Search(kv.String(fields[1]))
			if !found {
				fmt.Println("NOT FOUND")
				continue
			}
			fmt.Println(value)
		case "del":
			if len(fields) != 2 {
				fmt.Println("usage: del <key>")
				continue
			}
			value, found := tree.Delete(kv.String(fields[1]))
			if !found {
				fmt.Println("NOT FOUND")
				continue
			}
			fmt.Println(value)
		case "len":
			fmt.Println(tree.Len())
		case "help":
			fmt.Println(helpText)
		case "exit", "quit":
			return
		default:
			fmt.Printf("unknown command %q, type 'help'\n", fields[0])
		}
	}
}
