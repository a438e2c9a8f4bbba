package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/soarbot/internal/resilience"
	"github.com/i474232898/soarbot/internal/soaring"
)

// DefaultTelegramURL is the Bot API base URL.
const DefaultTelegramURL = "https://api.telegram.org"

var ErrNoToken = errors.New("telegram bot token not set")

// Telegram delivers messages through the Telegram Bot API sendMessage method.
type Telegram struct {
	token   string
	baseURL string
	httpCfg resilience.HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewTelegram(client *http.Client, token, baseURL string) *Telegram {
	if baseURL == "" {
		baseURL = DefaultTelegramURL
	}
	return &Telegram{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: resilience.HTTPClientConfig{
			Client:  client,
			Backoff: resilience.NoRetry,
		},
		circuit: resilience.NewBreaker("telegram"),
	}
}

// Preflight fails when no bot token is configured.
func (t *Telegram) Preflight() error {
	if t.token == "" {
		return fmt.Errorf("%w: %w", soaring.ErrConfig, ErrNoToken)
	}
	return nil
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Send(ctx context.Context, chatID, text string, format soaring.MessageFormat) error {
	if err := t.Preflight(); err != nil {
		return err
	}
	payload := sendMessageRequest{ChatID: chatID, Text: text, DisableWebPagePreview: true}
	if format == soaring.FormatRich {
		payload.ParseMode = "HTML"
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode telegram message: %w", err)
	}

	buildRequest := func() (*http.Request, error) {
		u := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
		req, err := http.NewRequest(http.MethodPost, u, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	resp, err := resilience.Do(ctx, t.httpCfg, t.circuit, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode telegram response: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("telegram: %s", out.Description)
	}
	return nil
}

// Operator sends cycle failure alerts to an admin chat. With no chat
// configured alerts are dropped.
type Operator struct {
	notifier soaring.Notifier
	chatID   string
}

func NewOperator(n soaring.Notifier, chatID string) *Operator {
	return &Operator{notifier: n, chatID: chatID}
}

func (o *Operator) Alert(ctx context.Context, text string) error {
	if o == nil || o.chatID == "" || o.notifier == nil {
		return nil
	}
	return o.notifier.Send(ctx, o.chatID, text, soaring.FormatPlain)
}
