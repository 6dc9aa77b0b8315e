// Command ablyrest talks to the Ably REST API from the command line.
//
// Credentials and client settings are read from ABLY_* environment
// variables, or from a .env file in the working directory.
//
//	ablyrest time
//	ablyrest publish -channel news -name greeting hello
//	ablyrest history -channel news -limit 10
//	ablyrest presence -channel news [-history]
//	ablyrest stats -unit hour -limit 24
//	ablyrest token -ttl 1h -capability '{"*":["subscribe"]}'
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ably/ably-rest-go/ably"
)

var errUsage = errors.New("usage: ablyrest time|publish|history|presence|stats|token [flags]")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cfg, err := Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	client, err := ably.NewREST(cfg.ClientOptions()...)
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := &command{client: client, cfg: cfg, out: out}
	return cmd.run(ctx, args[0], args[1:])
}

type command struct {
	client *ably.REST
	cfg    *Config
	out    io.Writer
}

func (c *command) run(ctx context.Context, name string, args []string) error {
	switch name {
	case "time":
		return c.time(ctx)
	case "publish":
		return c.publish(ctx, args)
	case "history":
		return c.history(ctx, args)
	case "presence":
		return c.presence(ctx, args)
	case "stats":
		return c.stats(ctx, args)
	case "token":
		return c.token(ctx, args)
	default:
		return fmt.Errorf("unknown command %q: %w", name, errUsage)
	}
}

func (c *command) time(ctx context.Context) error {
	t, err := c.client.Time(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, t.UTC().Format(time.RFC3339Nano))
	return nil
}

func (c *command) publish(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	channel := fs.String("channel", "", "channel name")
	name := fs.String("name", "", "message name")
	asJSON := fs.Bool("json", false, "send the data as a JSON object or array")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *channel == "" {
		return errors.New("publish: -channel is required")
	}
	var data interface{} = strings.Join(fs.Args(), " ")
	if *asJSON {
		var v interface{}
		if err := json.Unmarshal([]byte(data.(string)), &v); err != nil {
			return fmt.Errorf("publish: invalid JSON data: %w", err)
		}
		data = v
	}
	return c.client.Channels.Get(*channel, c.cfg.ChannelOptions()...).Publish(ctx, *name, data)
}

func (c *command) history(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	channel := fs.String("channel", "", "channel name")
	limit := fs.Int("limit", 100, "messages per page")
	forwards := fs.Bool("forwards", false, "oldest messages first")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *channel == "" {
		return errors.New("history: -channel is required")
	}
	options := []ably.HistoryOption{ably.HistoryWithLimit(*limit)}
	if *forwards {
		options = append(options, ably.HistoryWithDirection(ably.Forwards))
	}
	page, err := c.client.Channels.Get(*channel, c.cfg.ChannelOptions()...).History(ctx, options...)
	for ; err == nil && page != nil; page, err = page.Next(ctx) {
		for _, msg := range page.Items() {
			if err := c.print(msg); err != nil {
				return err
			}
		}
	}
	return err
}

func (c *command) presence(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("presence", flag.ContinueOnError)
	channel := fs.String("channel", "", "channel name")
	history := fs.Bool("history", false, "show presence history instead of current members")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *channel == "" {
		return errors.New("presence: -channel is required")
	}
	presence := c.client.Channels.Get(*channel, c.cfg.ChannelOptions()...).Presence
	var page *ably.PaginatedResult[*ably.PresenceMessage]
	var err error
	if *history {
		page, err = presence.History(ctx)
	} else {
		page, err = presence.Get(ctx)
	}
	for ; err == nil && page != nil; page, err = page.Next(ctx) {
		for _, msg := range page.Items() {
			if err := c.print(msg); err != nil {
				return err
			}
		}
	}
	return err
}

func (c *command) stats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	unit := fs.String("unit", ably.StatGranularityMinute, "minute, hour, day or month")
	limit := fs.Int("limit", 10, "intervals to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	page, err := c.client.Stats(ctx, ably.StatsWithUnit(*unit), ably.StatsWithLimit(*limit))
	if err != nil {
		return err
	}
	for _, s := range page.Items() {
		if err := c.print(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *command) token(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	ttl := fs.Duration("ttl", 0, "token time to live")
	capability := fs.String("capability", "", "JSON capability")
	clientID := fs.String("client-id", "", "client id the token is issued for")
	if err := fs.Parse(args); err != nil {
		return err
	}
	params := &ably.TokenParams{
		TTL:      ttl.Milliseconds(),
		ClientID: *clientID,
	}
	if *capability != "" {
		capa, err := ably.ParseCapability(*capability)
		if err != nil {
			return fmt.Errorf("token: invalid capability: %w", err)
		}
		params.Capability = capa.Encode()
	}
	tok, err := c.client.Auth.RequestToken(ctx, params)
	if err != nil {
		return err
	}
	return c.print(tok)
}

func (c *command) print(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
