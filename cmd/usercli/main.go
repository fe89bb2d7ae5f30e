// Package main provides the user CLI entry point for testing. It also plays
// the part of the playback device through the finished command.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/requestbox/internal/api/connect"
)

var (
	app    = kingpin.New("requestbox-usercli", "requestbox user client for testing")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").Envar("REQUESTBOX_SERVER").String()

	submitCmd       = app.Command("submit", "Submit a song request")
	submitTitle     = submitCmd.Arg("title", "Song title").Required().String()
	submitRequester = submitCmd.Flag("requester", "Requester reference (default: random)").String()
	submitPayment   = submitCmd.Flag("payment", "Payment state").Default("NOT_REQUIRED").
			Enum("NOT_REQUIRED", "CONFIRMED", "PENDING", "DENIED")

	queueCmd = app.Command("queue", "Show the queue")

	displayCmd = app.Command("display", "Show the current display")

	watchCmd = app.Command("watch", "Watch display changes")

	finishedCmd   = app.Command("finished", "Report that a request finished playing")
	finishedID    = finishedCmd.Arg("request-id", "Request ID").Required().String()
	finishedToken = finishedCmd.Flag("player-token", "Player token (or set PLAYER_TOKEN env)").Envar("PLAYER_TOKEN").String()
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	listener := apiconnect.NewListenerClient(http.DefaultClient, *server)
	ctx := context.Background()

	var err error
	switch command {
	case submitCmd.FullCommand():
		err = submit(ctx, listener, *submitTitle, *submitRequester, *submitPayment)
	case queueCmd.FullCommand():
		err = showQueue(ctx, listener)
	case displayCmd.FullCommand():
		err = showDisplay(ctx, listener)
	case watchCmd.FullCommand():
		err = watch(ctx, listener)
	case finishedCmd.FullCommand():
		if *finishedToken == "" {
			err = fmt.Errorf("player token is required (use --player-token or PLAYER_TOKEN env)")
			break
		}
		player := apiconnect.NewPlayerClient(http.DefaultClient, *server, *finishedToken)
		err = finished(ctx, player, *finishedID)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func submit(ctx context.Context, client *apiconnect.ListenerClient, title, requester, payment string) error {
	if requester == "" {
		requester = uuid.NewString()
	}

	resp, err := client.SubmitRequest(ctx, &apiconnect.SubmitRequestRequest{
		Title:        title,
		RequesterRef: requester,
		PaymentState: payment,
	})
	if err != nil {
		return err
	}

	if resp.Success {
		fmt.Printf("Success: %s\n", resp.Message)
		fmt.Printf("  Request ID: %s\n", resp.Request.ID)
		fmt.Printf("  Requester: %s\n", resp.Request.RequesterRef)
		return nil
	}

	retry := "do not retry"
	if resp.Retryable {
		retry = "may retry"
	}
	fmt.Printf("Rejected [%s]: %s (%s)\n", resp.Code, resp.Message, retry)
	return nil
}

func showQueue(ctx context.Context, client *apiconnect.ListenerClient) error {
	q, err := client.ListQueue(ctx)
	if err != nil {
		return err
	}

	if q.Current != nil {
		fmt.Printf("Now playing: %s (%s)\n", q.Current.Title, q.Current.ID)
	} else {
		fmt.Println("Nothing playing")
	}
	fmt.Printf("Queued (%d):\n", len(q.Queued))
	for i, r := range q.Queued {
		fmt.Printf("  %d. %s (%s)\n", i+1, r.Title, r.ID)
	}
	return nil
}

func showDisplay(ctx context.Context, client *apiconnect.ListenerClient) error {
	d, err := client.CurrentDisplay(ctx)
	if err != nil {
		return err
	}
	printDisplay(*d)
	return nil
}

func watch(ctx context.Context, client *apiconnect.ListenerClient) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stream, err := client.WatchDisplay(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	fmt.Println("Watching the display. Press Ctrl+C to exit.")

	for stream.Receive() {
		n := stream.Msg()
		fmt.Printf("\n[Sequence: %d] %s\n", n.SequenceNo, n.At)
		printDisplay(n.Display)
	}

	if ctx.Err() != nil {
		fmt.Println("\nStopped watching")
		return nil
	}
	return stream.Err()
}

func finished(ctx context.Context, client *apiconnect.PlayerClient, id string) error {
	if err := client.ReportFinished(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Reported finished: %s\n", id)
	return nil
}

func printDisplay(d apiconnect.DisplayInfo) {
	switch d.Mode {
	case "PLAYING_SONG":
		fmt.Println("▶️  Playing")
		if d.Request != nil {
			fmt.Printf("  Request ID: %s\n", d.Request.ID)
			fmt.Printf("  Title: %s\n", d.Request.Title)
			fmt.Printf("  Requester: %s\n", d.Request.RequesterRef)
		}
	case "IDLE_FALLBACK":
		fmt.Println("🎞  Idle video")
		fmt.Printf("  URL: %s\n", d.IdleURL)
	case "NONE":
		fmt.Println("⏹  Nothing to show")
	default:
		fmt.Printf("❓ Unknown (%s)\n", d.Mode)
	}
}
