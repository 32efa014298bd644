// Package fcm delivers push notifications through the FCM HTTP v1 API.
// Authentication is a short-lived OAuth2 bearer token obtained by exchanging
// a signed RS256 service-account assertion; the token source caches tokens
// until expiry so the exchange happens roughly once an hour.
package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	messagingScope = "https://www.googleapis.com/auth/firebase.messaging"
	sendTimeout    = 5 * time.Second
)

type Sender struct {
	log      *slog.Logger
	client   *http.Client
	tokens   oauth2.TokenSource
	endpoint string
}

// NewSender builds a sender from service-account credentials JSON. The
// returned token source performs the JWT-bearer exchange lazily and reuses
// tokens until they expire. Token() takes no context, so the exchange is
// bounded by handing the source the same timeout-capped client used for
// delivery.
func NewSender(ctx context.Context, log *slog.Logger, credentials []byte) (*Sender, error) {
	conf, err := google.JWTConfigFromJSON(credentials, messagingScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	var meta struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(credentials, &meta); err != nil {
		return nil, err
	}
	if meta.ProjectID == "" {
		return nil, fmt.Errorf("service account credentials missing project_id")
	}
	client := &http.Client{Timeout: sendTimeout}
	return &Sender{
		log:      log,
		client:   client,
		tokens:   conf.TokenSource(context.WithValue(ctx, oauth2.HTTPClient, client)),
		endpoint: fmt.Sprintf("https://fcm.googleapis.com/v1/projects/%s/messages:send", meta.ProjectID),
	}, nil
}

type message struct {
	Message struct {
		Token        string            `json:"token"`
		Notification map[string]string `json:"notification"`
		Android      androidConfig     `json:"android"`
		APNS         apnsConfig        `json:"apns"`
	} `json:"message"`
}

type androidConfig struct {
	Priority     string `json:"priority"`
	Notification struct {
		ChannelID             string `json:"channel_id"`
		Priority              string `json:"priority"`
		DefaultSound          bool   `json:"default_sound"`
		DefaultVibrateTimings bool   `json:"default_vibrate_timings"`
		Visibility            string `json:"visibility"`
	} `json:"notification"`
}

type apnsConfig struct {
	Headers map[string]string `json:"headers"`
	Payload struct {
		APS struct {
			Alert struct {
				Title string `json:"title"`
				Body  string `json:"body"`
			} `json:"alert"`
			Sound string `json:"sound"`
			Badge int    `json:"badge"`
		} `json:"aps"`
	} `json:"payload"`
}

func buildMessage(token, title, body string) message {
	var m message
	m.Message.Token = token
	m.Message.Notification = map[string]string{"title": title, "body": body}

	m.Message.Android.Priority = "high"
	m.Message.Android.Notification.ChannelID = "pharmaflow_channel"
	m.Message.Android.Notification.Priority = "max"
	m.Message.Android.Notification.DefaultSound = true
	m.Message.Android.Notification.DefaultVibrateTimings = true
	m.Message.Android.Notification.Visibility = "public"

	m.Message.APNS.Headers = map[string]string{"apns-priority": "10"}
	m.Message.APNS.Payload.APS.Alert.Title = title
	m.Message.APNS.Payload.APS.Alert.Body = body
	m.Message.APNS.Payload.APS.Sound = "default"
	m.Message.APNS.Payload.APS.Badge = 1
	return m
}

func (s *Sender) Send(ctx context.Context, deviceToken, title, body string) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	tok, err := s.tokens.Token()
	if err != nil {
		return fmt.Errorf("fcm token exchange: %w", err)
	}

	payload, err := json.Marshal(buildMessage(deviceToken, title, body))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("fcm send: http %d: %s", resp.StatusCode, detail)
	}
	return nil
}
