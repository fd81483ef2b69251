package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tankwatch/tank-guard/internal/domain/door"
	"github.com/tankwatch/tank-guard/internal/logger"
)

const imageUnavailableNote = "\n\n(camera image unavailable)"

var errTelegramRejected = errors.New("telegram rejected the request")

// TelegramConfig configures a Telegram notifier.
type TelegramConfig struct {
	BaseURL string
	Token   string
	ChatID  string
	// Retries is the number of delivery attempts for loud messages.
	Retries int
	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
	// Cameras maps channels to snapshot cameras. Channel zero is the default.
	Cameras map[door.ChannelID]string
	// UserAgent is sent with every request.
	UserAgent string
}

// Telegram delivers notifications through the Telegram Bot API.
// Messages carry a camera snapshot when one is available and fall back
// to plain text otherwise. Only loud messages are retried.
type Telegram struct {
	cfg       TelegramConfig
	client    *http.Client
	snapshots SnapshotSource
}

// NewTelegram creates a Telegram notifier. snapshots may be nil.
func NewTelegram(cfg TelegramConfig, client *http.Client, snapshots SnapshotSource) *Telegram {
	if client == nil {
		client = http.DefaultClient
	}

	if cfg.Retries <= 0 {
		cfg.Retries = 1
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Telegram{
		cfg:       cfg,
		client:    client,
		snapshots: snapshots,
	}
}

// Name implements Notifier.
func (t *Telegram) Name() string { return "telegram" }

// Send implements Notifier.
func (t *Telegram) Send(ctx context.Context, msg Message) error {
	image := t.snapshot(ctx, msg.Channel)

	if msg.Silent {
		return t.sendSilent(ctx, msg.Text, image)
	}

	var lastErr error

	for attempt := 1; attempt <= t.cfg.Retries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.cfg.RetryDelay):
			}
		}

		if image != nil {
			err := t.sendPhoto(ctx, msg.Text, image, false)
			if err == nil {
				return nil
			}

			logger.WarnKV(ctx, "Telegram photo failed, falling back to text", "attempt", attempt, "error", err)
		}

		text := msg.Text
		if image == nil || attempt == t.cfg.Retries {
			text += imageUnavailableNote
		}

		lastErr = t.sendMessage(ctx, text, false)
		if lastErr == nil {
			return nil
		}

		logger.WarnKV(ctx, "Telegram message failed", "attempt", attempt, "error", lastErr)
	}

	return fmt.Errorf("deliver after %d attempts: %w", t.cfg.Retries, lastErr)
}

// sendSilent makes a single photo attempt and one text fallback, both
// without sound.
func (t *Telegram) sendSilent(ctx context.Context, text string, image []byte) error {
	if image != nil {
		err := t.sendPhoto(ctx, text, image, true)
		if err == nil {
			return nil
		}

		logger.WarnKV(ctx, "Silent Telegram photo failed, falling back to text", "error", err)
	}

	return t.sendMessage(ctx, text+imageUnavailableNote, true)
}

func (t *Telegram) snapshot(ctx context.Context, id door.ChannelID) []byte {
	if t.snapshots == nil {
		return nil
	}

	camera, ok := t.cfg.Cameras[id]
	if !ok || camera == "" {
		camera = t.cfg.Cameras[0]
	}

	if camera == "" {
		return nil
	}

	image, err := t.snapshots.Snapshot(ctx, camera)
	if err != nil {
		logger.WarnKV(ctx, "Camera snapshot failed", "camera", camera, "error", err)

		return nil
	}

	return image
}

func (t *Telegram) sendMessage(ctx context.Context, text string, silent bool) error {
	form := url.Values{}
	form.Set("chat_id", t.cfg.ChatID)
	form.Set("text", text)
	form.Set("disable_notification", strconv.FormatBool(silent))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendMessage"),
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sendMessage request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return t.do(req)
}

func (t *Telegram) sendPhoto(ctx context.Context, caption string, image []byte, silent bool) error {
	var body bytes.Buffer

	w := multipart.NewWriter(&body)

	fields := map[string]string{
		"chat_id":              t.cfg.ChatID,
		"caption":              caption,
		"disable_notification": strconv.FormatBool(silent),
	}

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}

	part, err := w.CreateFormFile("photo", "snapshot.jpg")
	if err != nil {
		return fmt.Errorf("create photo part: %w", err)
	}

	if _, err = part.Write(image); err != nil {
		return fmt.Errorf("write photo: %w", err)
	}

	if err = w.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendPhoto"), &body)
	if err != nil {
		return fmt.Errorf("build sendPhoto request: %w", err)
	}

	req.Header.Set("Content-Type", w.FormDataContentType())

	return t.do(req)
}

func (t *Telegram) do(req *http.Request) error {
	if t.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", t.cfg.UserAgent)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		// The bot token is part of the URL.
		var urlErr *url.Error
		if errors.As(err, &urlErr) && t.cfg.Token != "" {
			urlErr.URL = strings.ReplaceAll(urlErr.URL, t.cfg.Token, "<redacted>")
		}

		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read telegram response: %w", err)
	}

	if err = json.Unmarshal(data, &result); err != nil || resp.StatusCode != http.StatusOK || !result.OK {
		return fmt.Errorf("%w: status %d: %s", errTelegramRejected, resp.StatusCode, result.Description)
	}

	return nil
}

func (t *Telegram) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.cfg.BaseURL, t.cfg.Token, method)
}
