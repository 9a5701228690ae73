// Command bidctl is a CLI client for the bidhouse auction API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/and161185/bidhouse/internal/auth"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `bidctl CLI
Usage:
  bidctl -addr http://HOST:PORT <cmd> [args]

Commands:
  version
  token        -set <jwt>                           (saves token)
  token        -issue -user <uuid> -key <secret> [-ttl 1h]
  item-create  -title <t> -price <p> -end <RFC3339> [-desc <d>] [-start <RFC3339>]
  item         -id <uuid>
  bid          -item <uuid> -amount <decimal>
  notes        [-limit N]
  unread
  read         -id <uuid>
  read-all
  rm-note      -id <uuid>
  watch        [-item <uuid>]                       (streams realtime events)
`)
	os.Exit(2)
}

func main() {
	// global flags
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {

	case "version":
		fmt.Printf("bidctl %s (%s)\n", version, buildDate)

	case "token":
		fs := flag.NewFlagSet("token", flag.ExitOnError)
		set := fs.String("set", "", "existing access token")
		issue := fs.Bool("issue", false, "sign a token locally (dev)")
		user := fs.String("user", "", "user id for -issue")
		key := fs.String("key", "", "HS256 secret for -issue")
		ttl := fs.Duration("ttl", time.Hour, "token lifetime")
		_ = fs.Parse(args)

		var (
			tok string
			exp time.Time
			err error
		)
		switch {
		case *set != "":
			tok = *set
			exp, err = tokenExpiry(tok, *ttl)
		case *issue:
			uid, perr := uuid.FromString(*user)
			if perr != nil || *key == "" {
				fmt.Fprintln(os.Stderr, "need -user <uuid> and -key")
				os.Exit(1)
			}
			tok, err = auth.Issue([]byte(*key), uid, *ttl)
			exp = time.Now().Add(*ttl)
		default:
			fmt.Fprintln(os.Stderr, "need -set or -issue")
			os.Exit(1)
		}
		if err != nil {
			fail(err)
		}
		if err := saveToken(tok, exp); err != nil {
			fail(err)
		}
		fmt.Println("token saved, expires", exp.Format(time.RFC3339))

	case "item-create":
		fs := flag.NewFlagSet("item-create", flag.ExitOnError)
		title := fs.String("title", "", "title")
		desc := fs.String("desc", "", "description")
		price := fs.String("price", "", "starting price")
		start := fs.String("start", "", "start time (RFC3339, default now)")
		end := fs.String("end", "", "end time (RFC3339)")
		_ = fs.Parse(args)

		sp, err := decimal.NewFromString(*price)
		if err != nil || *title == "" {
			fmt.Fprintln(os.Stderr, "need -title and a numeric -price")
			os.Exit(1)
		}
		endAt, err := time.Parse(time.RFC3339, *end)
		if err != nil {
			fmt.Fprintln(os.Stderr, "need -end in RFC3339")
			os.Exit(1)
		}
		body := map[string]any{
			"title":         *title,
			"description":   *desc,
			"startingPrice": sp,
			"endTime":       endAt,
		}
		if *start != "" {
			startAt, err := time.Parse(time.RFC3339, *start)
			if err != nil {
				fail(fmt.Errorf("bad -start: %w", err))
			}
			body["startTime"] = startAt
		}

		var out map[string]any
		if err := authed(*addr).do(ctx, http.MethodPost, "/api/v1/items", body, &out); err != nil {
			fail(err)
		}
		printJSON(out)

	case "item":
		fs := flag.NewFlagSet("item", flag.ExitOnError)
		id := fs.String("id", "", "item id")
		_ = fs.Parse(args)
		mustUUID("id", *id)

		var out map[string]any
		if err := newAPIClient(*addr, "").do(ctx, http.MethodGet, "/api/v1/items/"+*id, nil, &out); err != nil {
			fail(err)
		}
		printJSON(out)

	case "bid":
		fs := flag.NewFlagSet("bid", flag.ExitOnError)
		item := fs.String("item", "", "item id")
		amount := fs.String("amount", "", "bid amount")
		_ = fs.Parse(args)
		mustUUID("item", *item)
		a, err := decimal.NewFromString(*amount)
		if err != nil {
			fmt.Fprintln(os.Stderr, "need numeric -amount")
			os.Exit(1)
		}

		var out map[string]any
		body := map[string]any{"itemId": *item, "amount": a}
		if err := authed(*addr).do(ctx, http.MethodPost, "/api/v1/bids", body, &out); err != nil {
			fail(err)
		}
		printJSON(out)

	case "notes":
		fs := flag.NewFlagSet("notes", flag.ExitOnError)
		limit := fs.Int("limit", 20, "max notifications")
		_ = fs.Parse(args)

		var out []map[string]any
		path := fmt.Sprintf("/api/v1/notifications?limit=%d", *limit)
		if err := authed(*addr).do(ctx, http.MethodGet, path, nil, &out); err != nil {
			fail(err)
		}
		printJSON(out)

	case "unread":
		var out struct {
			Count int `json:"count"`
		}
		if err := authed(*addr).do(ctx, http.MethodGet, "/api/v1/notifications/unread-count", nil, &out); err != nil {
			fail(err)
		}
		fmt.Println(out.Count)

	case "read":
		fs := flag.NewFlagSet("read", flag.ExitOnError)
		id := fs.String("id", "", "notification id")
		_ = fs.Parse(args)
		mustUUID("id", *id)

		if err := authed(*addr).do(ctx, http.MethodPatch, "/api/v1/notifications/"+*id+"/read", nil, nil); err != nil {
			fail(err)
		}
		fmt.Println("OK")

	case "read-all":
		var out map[string]any
		if err := authed(*addr).do(ctx, http.MethodPatch, "/api/v1/notifications/read-all", nil, &out); err != nil {
			fail(err)
		}
		printJSON(out)

	case "rm-note":
		fs := flag.NewFlagSet("rm-note", flag.ExitOnError)
		id := fs.String("id", "", "notification id")
		_ = fs.Parse(args)
		mustUUID("id", *id)

		if err := authed(*addr).do(ctx, http.MethodDelete, "/api/v1/notifications/"+*id, nil, nil); err != nil {
			fail(err)
		}
		fmt.Println("OK")

	case "watch":
		fs := flag.NewFlagSet("watch", flag.ExitOnError)
		item := fs.String("item", "", "item id to follow")
		_ = fs.Parse(args)
		if *item != "" {
			mustUUID("item", *item)
		}

		// anonymous watchers still get item rooms and global events
		tok, _ := loadToken()
		sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := watch(sigCtx, *addr, tok, *item, os.Stdout); err != nil {
			fail(err)
		}

	default:
		usage()
	}
}

func authed(addr string) *apiClient {
	tok, err := loadToken()
	if err != nil {
		fail(err)
	}
	return newAPIClient(addr, tok)
}

func mustUUID(name, v string) {
	if _, err := uuid.FromString(v); err != nil {
		fmt.Fprintf(os.Stderr, "need -%s <uuid>\n", name)
		os.Exit(1)
	}
}

func fail(err error) {
	var ae *apiError
	if errors.As(err, &ae) {
		fmt.Fprintf(os.Stderr, "api error: status=%d code=%s msg=%s\n", ae.Status, ae.Code, ae.Error())
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
