// ccsctl talks to a running ccsd over the comm-header protocol
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"gitlab.com/ccsd.net/internal/adapter/crypto"
	"gitlab.com/ccsd.net/internal/config"
	"gitlab.com/ccsd.net/internal/domain"
	"gitlab.com/ccsd.net/internal/static/errs"
	"gitlab.com/ccsd.net/internal/tcp/client"
	"gitlab.com/ccsd.net/internal/tcp/defs"
)

const usage = `usage: ccsctl [flags] <command> [args]

commands:
  get <query>           print the first value matching query
  list <query>          print every value matching query
  set <path> <value>    write a value and roll it out to the cluster
  state                 print the session state
  cd <path> <query>     list query relative to path
  broadcast             print the node's whole document as JSON
  update <file>         roll out a JSON document read from file
  token <subject>       issue an admin API token signed with JWT_SECRET

flags:
`

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", fmt.Sprintf("127.0.0.1:%d", defs.DefaultPort), "daemon address")
	force := flag.Bool("force", false, "open the descriptor even without quorum")
	blocking := flag.Bool("blocking", false, "wait for quorum before opening the descriptor")
	quorate := flag.Bool("quorate", false, "broadcast only answers when the node is quorate")
	timeout := flag.Duration("timeout", 10*time.Second, "overall request timeout")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if args[0] == "token" {
		if err := issueToken(args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, "ccsctl:", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c, err := client.Dial(ctx, *addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ccsctl:", err)
		os.Exit(1)
	}
	defer c.Close()

	var flags defs.CommFlag
	if *force {
		flags = flags.Set(defs.FlagConnectForce)
	}
	if *blocking {
		flags = flags.Set(defs.FlagConnectBlocking)
	}

	if err := run(ctx, c, flags, *quorate, args); err != nil {
		fmt.Fprintln(os.Stderr, "ccsctl:", err)
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, c *client.Client, flags defs.CommFlag, quorate bool, args []string) error {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "broadcast":
		doc, err := c.Broadcast(ctx, quorate)
		if err != nil {
			return err
		}
		return printJSON(doc)
	case "update":
		if len(rest) != 1 {
			return fmt.Errorf("update takes a file")
		}
		raw, err := os.ReadFile(rest[0])
		if err != nil {
			return err
		}
		doc, err := domain.ParseDocument(raw)
		if err != nil {
			return err
		}
		version, err := c.StartUpdate(ctx, doc)
		if err != nil {
			return err
		}
		fmt.Println(version)
		return nil
	}

	desc, err := c.Connect(ctx, flags)
	if err != nil {
		return err
	}
	defer c.Disconnect(ctx, desc)

	switch cmd {
	case "get":
		if len(rest) != 1 {
			return fmt.Errorf("get takes a query")
		}
		value, err := c.Get(ctx, desc, rest[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
	case "list":
		if len(rest) != 1 {
			return fmt.Errorf("list takes a query")
		}
		return list(ctx, c, desc, rest[0])
	case "cd":
		if len(rest) != 2 {
			return fmt.Errorf("cd takes a path and a query")
		}
		if err := c.SetState(ctx, desc, rest[0], true); err != nil {
			return err
		}
		return list(ctx, c, desc, rest[1])
	case "set":
		if len(rest) != 2 {
			return fmt.Errorf("set takes a path and a value")
		}
		version, err := c.Set(ctx, desc, rest[0], rest[1])
		if err != nil {
			return err
		}
		fmt.Println(version)
	case "state":
		state, err := c.GetState(ctx, desc)
		if err != nil {
			return err
		}
		return printJSON(state)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

// list prints GET_LIST results until the walk runs out
func list(ctx context.Context, c *client.Client, desc int32, query string) error {
	for {
		value, err := c.GetList(ctx, desc, query)
		if errors.Is(err, errs.NoEntry) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println(value)
	}
}

func issueToken(args []string) error {
	subject := "admin"
	if len(args) > 0 {
		subject = args[0]
	}
	tokens := crypto.NewJWTService(config.NewJwtConfig())
	tok, err := tokens.GenerateTokenHMAC(context.Background(), "HS256", map[string]interface{}{"sub": subject})
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitCode turns a protocol error code into a process exit status
func exitCode(err error) int {
	var ce *defs.CommError
	if errors.As(err, &ce) {
		return int(-ce.Code)
	}
	return 1
}
