package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const DefaultTelegramBaseURL = "https://api.telegram.org"

// TelegramNotifier sends messages through the Bot API sendMessage method.
// Calls are rate limited and guarded by a circuit breaker so a dead endpoint
// costs nothing after a few failures.
type TelegramNotifier struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// TelegramOptions configures a TelegramNotifier.
type TelegramOptions struct {
	BaseURL       string
	Token         string
	ChatID        string
	RatePerMinute int
	HTTPClient    *http.Client
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

func NewTelegramNotifier(opts TelegramOptions, logger *zap.Logger) (*TelegramNotifier, error) {
	if opts.Token == "" || opts.ChatID == "" {
		return nil, errors.New("telegram token and chat id are required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultTelegramBaseURL
	}
	if opts.RatePerMinute <= 0 {
		opts.RatePerMinute = 20
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	st := gobreaker.Settings{Name: "telegram"}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 3
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn("circuit breaker state change",
			zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
	}

	return &TelegramNotifier{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		chatID:  opts.ChatID,
		client:  opts.HTTPClient,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), opts.RatePerMinute),
		breaker: gobreaker.NewCircuitBreaker(st),
		logger:  logger,
	}, nil
}

func (t *TelegramNotifier) SendNotification(ctx context.Context, text string) error {
	return t.send(ctx, text)
}

func (t *TelegramNotifier) SendAlert(ctx context.Context, text string) error {
	return t.send(ctx, "⚠️ "+text)
}

func (t *TelegramNotifier) send(ctx context.Context, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit: %w", err)
	}
	_, err := t.breaker.Execute(func() (interface{}, error) {
		return nil, t.sendMessage(ctx, text)
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (t *TelegramNotifier) sendMessage(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return err
	}
	var tr telegramResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return fmt.Errorf("HTTP %d: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !tr.OK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, tr.Description)
	}
	return nil
}
