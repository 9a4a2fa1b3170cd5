package notify

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"govorilka/internal/storage"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Notifier delivers a user-facing notification. Delivery is
// fire-and-forget: failures are logged, never returned.
type Notifier interface {
	Notify(title, body string)
}

// Log writes notifications to the structured log. Used when no push
// keys are configured.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	if log == nil {
		log = slog.Default()
	}
	return &Log{log: log}
}

func (l *Log) Notify(title, body string) {
	l.log.Info("notification", "title", title, "body", body)
}

type subscriptionStore interface {
	ListSubscriptions() ([]storage.DBSubscription, error)
	RemoveSubscription(id string) error
}

// WebPush delivers notifications to the user's subscribed push
// endpoints using VAPID.
type WebPush struct {
	store      subscriptionStore
	options    webpush.Options
	log        *slog.Logger
	sendNotify func(message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

type WebPushConfig struct {
	Subscriber      string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
}

func NewWebPush(config WebPushConfig, store subscriptionStore, log *slog.Logger) *WebPush {
	if log == nil {
		log = slog.Default()
	}
	return &WebPush{
		store: store,
		options: webpush.Options{
			Subscriber:      config.Subscriber,
			VAPIDPublicKey:  config.VAPIDPublicKey,
			VAPIDPrivateKey: config.VAPIDPrivateKey,
			TTL:             60,
		},
		log:        log,
		sendNotify: webpush.SendNotification,
	}
}

type pushMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (w *WebPush) Notify(title, body string) {
	subs, err := w.store.ListSubscriptions()
	if err != nil {
		w.log.Error("failed to list push subscriptions", "error", err)
		return
	}

	payload, err := json.Marshal(pushMessage{Title: title, Body: body})
	if err != nil {
		w.log.Error("failed to marshal push payload", "error", err)
		return
	}

	for _, sub := range subs {
		target := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}

		options := w.options
		resp, err := w.sendNotify(payload, target, &options)
		if err != nil {
			w.log.Warn("push delivery failed", "endpoint", sub.Endpoint, "error", err)
			continue
		}
		_ = resp.Body.Close()

		// The push service reports a dead endpoint with 404/410.
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			w.log.Info("removing expired push subscription", "id", sub.ID)
			if err := w.store.RemoveSubscription(sub.ID); err != nil {
				w.log.Warn("failed to remove push subscription", "id", sub.ID, "error", err)
			}
		}
	}
}
