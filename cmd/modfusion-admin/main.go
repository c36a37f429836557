// Package main is the entry point for the ModFusion accounts admin CLI.
// The CLI operates on the same record store the server uses and is meant for
// local administration: listing accounts, changing roles, and resetting the
// directory. Protection invariants still apply; the protected admin cannot
// be deleted or demoted from here either.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/modfusion/accounts/internal/config"
	kvsqlite "github.com/modfusion/accounts/internal/kv/sqlite"
	"github.com/modfusion/accounts/internal/store"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()
	args := flag.Args()

	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "version":
		fmt.Printf("ModFusion Accounts Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "user":
		if len(args) < 2 {
			printUsage()
			os.Exit(1)
		}
		runUserCommand(*configPath, args[1:])

	case "reset":
		st, cleanup := openStore(*configPath)
		defer cleanup()
		if err := st.Reset(context.Background()); err != nil {
			fatal("reset failed: %v", err)
		}
		fmt.Println("directory reset; protected admin re-seeded")

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func runUserCommand(configPath string, args []string) {
	ctx := context.Background()
	st, cleanup := openStore(configPath)
	defer cleanup()

	switch args[0] {
	case "list":
		accounts, err := st.List(ctx)
		if err != nil {
			fatal("list failed: %v", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tCREATED\tLAST LOGIN")
		for _, a := range accounts {
			lastLogin := "-"
			if a.LastLogin != nil {
				lastLogin = a.LastLogin.Format(time.RFC3339)
			}
			protected := ""
			if st.IsProtectedAdmin(a.ID) {
				protected = " (protected)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s%s\t%s\t%s\n",
				a.ID, a.Email, a.FullName(), a.Role, protected,
				a.CreatedAt.Format(time.RFC3339), lastLogin)
		}
		w.Flush()

	case "promote":
		id := requireID(args)
		changed, err := st.Promote(ctx, id)
		if err != nil {
			fatal("promote failed: %v", err)
		}
		if !changed {
			fatal("no such account: %s", id)
		}
		fmt.Printf("promoted %s to admin\n", id)

	case "demote":
		id := requireID(args)
		if st.IsProtectedAdmin(id) {
			fatal("refusing to demote the protected admin account")
		}
		changed, err := st.Demote(ctx, id)
		if err != nil {
			fatal("demote failed: %v", err)
		}
		if !changed {
			fatal("no such account: %s", id)
		}
		fmt.Printf("demoted %s to user\n", id)

	case "delete":
		id := requireID(args)
		if st.IsProtectedAdmin(id) {
			fatal("refusing to delete the protected admin account")
		}
		deleted, err := st.Delete(ctx, id)
		if err != nil {
			fatal("delete failed: %v", err)
		}
		if !deleted {
			fatal("no such account: %s", id)
		}
		fmt.Printf("deleted %s\n", id)

	default:
		fmt.Fprintf(os.Stderr, "Unknown user command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

// openStore loads the configuration, opens the SQLite record store, and
// returns an initialized account store.
func openStore(configPath string) (*store.Store, func()) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fatal("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

	ctx := context.Background()
	sqliteCfg := kvsqlite.DefaultConfig(cfg.Database.Path)
	sqliteCfg.JournalMode = cfg.Database.JournalMode
	sqliteCfg.BusyTimeout = cfg.Database.BusyTimeout
	sqliteCfg.SynchronousMode = cfg.Database.SynchronousMode

	kvs, err := kvsqlite.NewStore(ctx, sqliteCfg, logger)
	if err != nil {
		fatal("failed to open record store: %v", err)
	}

	st := store.New(kvs, store.Seed{
		Email:     cfg.Seed.Email,
		Password:  cfg.Seed.Password,
		FirstName: cfg.Seed.FirstName,
		LastName:  cfg.Seed.LastName,
	}, logger)

	if err := st.Init(ctx); err != nil {
		kvs.Close()
		fatal("failed to initialize store: %v", err)
	}

	return st, func() { kvs.Close() }
}

func requireID(args []string) string {
	if len(args) < 2 || args[1] == "" {
		fatal("usage: modfusion-admin user %s <account-id>", args[0])
	}
	return args[1]
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Println(`ModFusion Accounts Admin CLI

Usage:
  modfusion-admin [-config path] <command> [arguments]

Commands:
  user list             List all accounts in the directory
  user promote <id>     Raise an account to the admin role
  user demote <id>      Lower an account to the user role
  user delete <id>      Remove an account from the directory
  reset                 Clear the directory and re-seed the protected admin
  version               Print version information
  help                  Show this help message

Examples:
  modfusion-admin user list
  modfusion-admin user promote 6f1e...
  modfusion-admin -config ./configs/config.yaml reset`)
}
