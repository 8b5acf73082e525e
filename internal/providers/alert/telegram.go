package alert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

type TelegramConfig struct {
	Token   string
	ChatIDs []string
	BaseURL string
	Timeout time.Duration
}

// TelegramProvider posts alerts through the Telegram Bot API sendMessage call.
type TelegramProvider struct {
	cfg    TelegramConfig
	client *http.Client
}

func NewTelegram(cfg TelegramConfig) *TelegramProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTelegramBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &TelegramProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *TelegramProvider) Notify(ctx context.Context, message string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(p.cfg.BaseURL, "/"), p.cfg.Token)

	var errs []error
	for _, chatID := range p.cfg.ChatIDs {
		form := url.Values{}
		form.Set("chat_id", chatID)
		form.Set("text", message)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := p.client.Do(req)
		if err != nil {
			errs = append(errs, fmt.Errorf("telegram chat %s: %w", chatID, err))
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode >= http.StatusMultipleChoices {
			errs = append(errs, fmt.Errorf("telegram chat %s: status %d", chatID, resp.StatusCode))
		}
	}
	return errors.Join(errs...)
}
