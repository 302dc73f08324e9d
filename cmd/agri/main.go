// Command agri is a terminal storefront for the agrimarket API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/and161185/agrimarket/internal/api"
	"github.com/and161185/agrimarket/internal/config"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const usageText = `agri: agrimarket storefront CLI
Usage:
  agri [-api URL] [-store file|memory|postgres|redis] [flags] <cmd> [args]

Session:
  version
  register   -u <username> -email <email> -p <password>
  login      -u <username> -p <password>
  logout
  whoami

Catalog:
  products   [-search s] [-category c] [-min p] [-max p] [-method m]... [-ordering o] [-producer u] [-limit n]
  product    -id <id>
  producers  [-search s] [-pref p] [-city c] [-page n]
  producer   -u <username>

Cart and favorites:
  cart show | add -id <id> [-qty n] | set -id <id> -qty n | rm -id <id> | clear
  fav list | toggle -id <id>
  checkout   -name -postal -pref -city -addr1 [-addr2] -phone [-payment credit_card|bank_transfer] [-notes]
  orders     [-page n] [-size n]
  order      -id <order_id>

Producer:
  my-products
  received   [-status s] [-search s] [-page n]
  ship       -id <order_id>

Environment: API_BASE_URL STORE_BACKEND STORE_DIR STORE_DSN REDIS_ADDR REDIS_PASSWORD REDIS_DB
             STORE_PASSPHRASE HTTP_TIMEOUT_SECONDS API_RATE_LIMIT API_RATE_BURST LOG_LEVEL (.env is read)
`

func usage() {
	fmt.Fprint(os.Stderr, usageText)
	os.Exit(2)
}

// main resolves configuration and runs one subcommand.
func main() {
	cfg, args, err := config.Load(".env", os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		usage()
	}
	if len(args) < 1 {
		usage()
	}
	if args[0] == "version" {
		fmt.Printf("agri %s (%s)\n", version, buildDate)
		return
	}

	logger, err := cfg.Logger()
	if err != nil {
		fail(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	a, err := newApp(ctx, cfg, logger, os.Stdout)
	if err != nil {
		fail(err)
	}
	defer a.close()

	if err := a.run(ctx, args); err != nil {
		if errors.Is(err, errUsage) {
			a.close()
			usage()
		}
		a.close()
		fail(err)
	}
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func fail(err error) {
	if d := api.Detail(err); d != "" {
		fmt.Fprintf(os.Stderr, "error: %s (%v)\n", d, err)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
