// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/requestbox/internal/api/connect"
)

var (
	app     = kingpin.New("requestbox-admincli", "requestbox admin client")
	server  = app.Flag("server", "Server address").Default("http://localhost:8080").Envar("REQUESTBOX_SERVER").String()
	token   = app.Flag("token", "Admin token (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()
	timeout = app.Flag("timeout", "Request timeout").Default("10s").Duration()

	statusCmd = app.Command("status", "Show venue status")

	queueCmd = app.Command("queue", "Show the playing request and the queue")

	cancelCmd = app.Command("cancel", "Cancel a queued request")
	cancelID  = cancelCmd.Arg("request-id", "Request ID").Required().String()

	skipCmd = app.Command("skip", "Skip the playing request")
	skipID  = skipCmd.Arg("request-id", "Request ID (default: whatever is playing)").String()

	getCmd = app.Command("get", "Show one setting")
	getKey = getCmd.Arg("key", "Setting key").Required().String()

	setCmd   = app.Command("set", "Create or update a setting")
	setKey   = setCmd.Arg("key", "Setting key").Required().String()
	setValue = setCmd.Arg("value", "Setting value").Required().String()
	setKind  = setCmd.Flag("kind", "Value kind").Default("string").Enum("boolean", "string", "number")

	settingsCmd = app.Command("settings", "List all settings").Alias("list-settings")
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: admin token is required (use --token or ADMIN_TOKEN env)")
		os.Exit(1)
	}

	client := apiconnect.NewAdminClient(http.DefaultClient, *server, *token)
	listener := apiconnect.NewListenerClient(http.DefaultClient, *server)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var err error
	switch command {
	case statusCmd.FullCommand():
		err = status(ctx, client)
	case queueCmd.FullCommand():
		err = showQueue(ctx, listener)
	case cancelCmd.FullCommand():
		err = cancelRequest(ctx, client, *cancelID)
	case skipCmd.FullCommand():
		err = skip(ctx, client, *skipID)
	case getCmd.FullCommand():
		err = getSetting(ctx, client, *getKey)
	case setCmd.FullCommand():
		err = setSetting(ctx, client, *setKey, *setValue, *setKind)
	case settingsCmd.FullCommand():
		err = listSettings(ctx, client)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func status(ctx context.Context, client *apiconnect.AdminClient) error {
	s, err := client.GetStatus(ctx)
	if err != nil {
		return err
	}

	fmt.Println("\n=== VENUE STATUS ===")
	fmt.Printf("State: %s\n", s.State)
	fmt.Printf("Display: %s\n", formatDisplay(s.Display))
	fmt.Printf("Queue Size: %d\n", s.QueueSize)
	fmt.Printf("Played: %d (skipped: %d)\n", s.Played, s.Skipped)
	fmt.Printf("Display Watchers: %d\n", s.Subscribers)
	if s.StartedAt != "" {
		fmt.Printf("Started At: %s\n", s.StartedAt)
	}

	if s.Current != nil {
		fmt.Println("\nCurrently Playing:")
		fmt.Printf("  Request ID: %s\n", s.Current.ID)
		fmt.Printf("  Title: %s\n", s.Current.Title)
		fmt.Printf("  Requester: %s\n", s.Current.RequesterRef)
		fmt.Printf("  Payment: %s\n", s.Current.PaymentState)
		fmt.Printf("  Submitted At: %s\n", formatTime(s.Current.SubmittedAt))
	} else {
		fmt.Println("\nNothing playing")
	}
	fmt.Println()
	return nil
}

func showQueue(ctx context.Context, client *apiconnect.ListenerClient) error {
	q, err := client.ListQueue(ctx)
	if err != nil {
		return err
	}

	t := newTable()
	t.AppendHeader(table.Row{"#", "Request ID", "Title", "Requester", "Payment", "Status", "Submitted"})
	if q.Current != nil {
		t.AppendRow(requestRow("▶", *q.Current))
	}
	for i, r := range q.Queued {
		t.AppendRow(requestRow(i+1, r))
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Queued", len(q.Queued)})
	t.Render()
	return nil
}

func cancelRequest(ctx context.Context, client *apiconnect.AdminClient, id string) error {
	r, err := client.CancelRequest(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("Request cancelled: %s (%s)\n", r.ID, r.Title)
	return nil
}

func skip(ctx context.Context, client *apiconnect.AdminClient, id string) error {
	if err := client.Skip(ctx, id); err != nil {
		return err
	}
	fmt.Println("Request skipped")
	return nil
}

func getSetting(ctx context.Context, client *apiconnect.AdminClient, key string) error {
	s, err := client.GetSetting(ctx, key)
	if err != nil {
		return err
	}
	renderSettings([]apiconnect.SettingInfo{*s})
	return nil
}

func setSetting(ctx context.Context, client *apiconnect.AdminClient, key, value, kind string) error {
	s, err := client.SetSetting(ctx, key, value, kind)
	if err != nil {
		return err
	}
	fmt.Printf("Setting updated: %s=%s (%s)\n", s.Key, s.Value, s.Kind)
	return nil
}

func listSettings(ctx context.Context, client *apiconnect.AdminClient) error {
	all, err := client.ListSettings(ctx)
	if err != nil {
		return err
	}
	renderSettings(all)
	return nil
}

func renderSettings(all []apiconnect.SettingInfo) {
	t := newTable()
	t.AppendHeader(table.Row{"Key", "Value", "Kind"})
	for _, s := range all {
		t.AppendRow(table.Row{s.Key, s.Value, s.Kind})
	}
	t.Render()
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	return t
}

func requestRow(pos any, r apiconnect.RequestInfo) table.Row {
	return table.Row{pos, r.ID, r.Title, r.RequesterRef, r.PaymentState, r.Status, formatTime(r.SubmittedAt)}
}

func formatDisplay(d apiconnect.DisplayInfo) string {
	switch d.Mode {
	case "PLAYING_SONG":
		if d.Request != nil {
			return fmt.Sprintf("▶️  Playing %q", d.Request.Title)
		}
		return "▶️  Playing"
	case "IDLE_FALLBACK":
		return "🎞  Idle video " + d.IdleURL
	case "NONE":
		return "⏹  Nothing"
	default:
		return "❓ " + d.Mode
	}
}

func formatTime(s string) string {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return s
	}
	return t.Local().Format(time.DateTime)
}
