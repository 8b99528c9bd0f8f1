// Package notify delivers push notifications through Firebase Cloud
// Messaging.
package notify

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"github.com/m-mizutani/goerr/v2"

	"github.com/tbourn/nemo-backend/internal/services"
)

type sender interface {
	Send(ctx context.Context, m *messaging.Message) (string, error)
}

// FCM implements services.Notifier.
type FCM struct {
	client sender
	link   string
}

// NewFCM wraps a messaging client. link is opened when a web notification
// is clicked; it may be empty.
func NewFCM(client *messaging.Client, link string) *FCM {
	return &FCM{client: client, link: link}
}

func (f *FCM) Notify(ctx context.Context, token string, n services.Notification) (string, error) {
	msg := &messaging.Message{
		Token:        token,
		Notification: &messaging.Notification{Title: n.Title, Body: n.Body},
	}
	if f.link != "" {
		msg.Webpush = &messaging.WebpushConfig{
			FCMOptions: &messaging.WebpushFCMOptions{Link: f.link},
		}
	}
	id, err := f.client.Send(ctx, msg)
	if err != nil {
		if messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err) {
			return "", fmt.Errorf("%w: %v", services.ErrStaleToken, err)
		}
		return "", goerr.Wrap(err, "failed to send notification")
	}
	return id, nil
}
