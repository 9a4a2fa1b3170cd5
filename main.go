package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"govorilka/internal/config"
	"govorilka/internal/history"
	"govorilka/internal/models"
	"govorilka/internal/notify"
	"govorilka/internal/session"
	"govorilka/internal/storage"
	"govorilka/internal/transport"

	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context) error {
	userName := flag.String("user", "", "User name to chat as")
	room := flag.String("room", "", "Room to enter on start")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.Default()

	store, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// Fall back to the last saved profile for anything not given on
	// the command line.
	if profile, err := store.GetProfile(); err == nil {
		if *userName == "" {
			*userName = profile.UserName
		}
		if *room == "" {
			*room = profile.LastRoom
		}
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}
	if *userName == "" {
		return fmt.Errorf("no user name: pass -user or chat once to save a profile")
	}

	conn := transport.New(transport.Config{
		Endpoint:          wsEndpoint(cfg.ServerURL),
		ReconnectAttempts: cfg.ReconnectAttempts,
		DialTimeout:       cfg.DialTimeout,
		ReconnectDelay:    cfg.ReconnectDelay,
	}, logger)

	var notifier notify.Notifier = notify.NewLog(logger)
	if cfg.VAPIDPublicKey != "" {
		notifier = notify.NewWebPush(notify.WebPushConfig{
			Subscriber:      cfg.NotifySubscriber,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		}, store, logger)
	}

	sess, err := session.New(session.Config{
		UserName:  *userName,
		JoinGrace: cfg.JoinGrace,
	}, conn, history.NewClient(cfg.ServerURL, cfg.HistoryTimeout), notifier, logger)
	if err != nil {
		return err
	}

	printer := &transcriptPrinter{}
	sess.OnTranscript(printer.print)
	sess.OnPresence(func(users map[string]models.Status) {
		for name, status := range users {
			if status == models.StatusOffline {
				fmt.Printf("* %s went offline\n", name)
			}
		}
	})
	sess.OnState(func(state string) {
		fmt.Printf("* connection %s\n", state)
	})

	if *room != "" {
		printer.reset()
		if err := sess.Enter(ctx, *room); err != nil {
			return err
		}
		if err := store.SaveProfile(*userName, *room); err != nil {
			logger.Warn("failed to save profile", "error", err)
		}
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer sess.Close()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if done := handleLine(gCtx, sess, store, *userName, line, printer); done {
					return nil
				}
			}
		}
	})

	return g.Wait()
}

// transcriptPrinter prints only the messages appended since the last
// snapshot. Observer callbacks arrive on the transport goroutine while
// resets come from the input loop, hence the lock.
type transcriptPrinter struct {
	mu      sync.Mutex
	printed int
}

func (p *transcriptPrinter) print(messages []models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(messages) < p.printed {
		p.printed = 0
	}
	for _, msg := range messages[p.printed:] {
		fmt.Printf("[%s] %s\n", msg.UserName, msg.Text)
	}
	p.printed = len(messages)
}

func (p *transcriptPrinter) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printed = 0
}

func handleLine(ctx context.Context, sess *session.Session, store *storage.BboltStorage, userName, line string, printer *transcriptPrinter) bool {
	switch {
	case line == "/quit":
		return true
	case line == "/leave":
		sess.Leave()
		fmt.Println("* left room")
	case line == "/who":
		for _, name := range sess.Online() {
			fmt.Printf("* online: %s\n", name)
		}
	case strings.HasPrefix(line, "/join "):
		room := strings.TrimSpace(strings.TrimPrefix(line, "/join "))
		printer.reset()
		if err := sess.Enter(ctx, room); err != nil {
			fmt.Printf("* cannot join %q: %v\n", room, err)
			return false
		}
		if err := store.SaveProfile(userName, room); err != nil {
			slog.Warn("failed to save profile", "error", err)
		}
	case strings.HasPrefix(line, "/subscribe "):
		fields := strings.Fields(strings.TrimPrefix(line, "/subscribe "))
		if len(fields) != 3 {
			fmt.Println("* usage: /subscribe <endpoint> <p256dh> <auth>")
			return false
		}
		id, err := store.AddSubscription(fields[0], fields[1], fields[2])
		if err != nil {
			fmt.Printf("* cannot save subscription: %v\n", err)
			return false
		}
		fmt.Printf("* push subscription saved: %s\n", id)
	default:
		sess.Send(line)
	}
	return false
}

func wsEndpoint(baseURL string) string {
	endpoint := strings.Replace(baseURL, "https://", "wss://", 1)
	endpoint = strings.Replace(endpoint, "http://", "ws://", 1)
	return endpoint + "/ws"
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
