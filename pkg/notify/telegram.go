package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"daytrader-api/pkg/strategy"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// Telegram sends messages through the Bot API and collects approve/cancel
// verdicts from inline keyboard callbacks via getUpdates.
type Telegram struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
	offset  int64
}

// TelegramOption customises the client.
type TelegramOption func(*Telegram)

// WithTelegramBaseURL overrides the Bot API host.
func WithTelegramBaseURL(u string) TelegramOption {
	return func(t *Telegram) { t.baseURL = strings.TrimRight(u, "/") }
}

// WithTelegramHTTPClient overrides the HTTP client.
func WithTelegramHTTPClient(c *http.Client) TelegramOption {
	return func(t *Telegram) { t.client = c }
}

// NewTelegram builds a Telegram sink for one chat.
func NewTelegram(token, chatID string, opts ...TelegramOption) *Telegram {
	t := &Telegram{
		baseURL: defaultTelegramBaseURL,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type tgKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type tgSendMessage struct {
	ChatID      string `json:"chat_id"`
	Text        string `json:"text"`
	ParseMode   string `json:"parse_mode,omitempty"`
	ReplyMarkup *struct {
		InlineKeyboard [][]tgKeyboardButton `json:"inline_keyboard"`
	} `json:"reply_markup,omitempty"`
}

type tgResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (t *Telegram) call(ctx context.Context, method string, payload any, out *tgResponse) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal %s: %w", method, err)
	}
	url := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("telegram: read %s response: %w", method, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("telegram: decode %s response: %w", method, err)
	}
	if !out.OK {
		return fmt.Errorf("telegram: %s failed: %s", method, out.Description)
	}
	return nil
}

func priorityPrefix(p Priority) string {
	switch p {
	case PriorityCritical:
		return "🚨 "
	case PriorityWarning:
		return "⚠️ "
	default:
		return ""
	}
}

// Send delivers a titled plain message.
func (t *Telegram) Send(ctx context.Context, title, text string, priority Priority) error {
	var resp tgResponse
	return t.call(ctx, "sendMessage", tgSendMessage{
		ChatID:    t.chatID,
		Text:      fmt.Sprintf("%s*%s*\n%s", priorityPrefix(priority), title, text),
		ParseMode: "Markdown",
	}, &resp)
}

// SendProposalForApproval renders the proposal with an inline approve/cancel
// keyboard. The callback data carries the proposal ID.
func (t *Telegram) SendProposalForApproval(ctx context.Context, p strategy.Proposal) error {
	msg := tgSendMessage{
		ChatID: t.chatID,
		Text: fmt.Sprintf("*Proposal %s*\n%s %s x%d @ %.2f (%s)\nNotional: %.2f",
			p.ID, p.Side, p.Symbol, p.Quantity, p.Price, p.Strategy, p.Notional()),
		ParseMode: "Markdown",
	}
	msg.ReplyMarkup = &struct {
		InlineKeyboard [][]tgKeyboardButton `json:"inline_keyboard"`
	}{
		InlineKeyboard: [][]tgKeyboardButton{{
			{Text: "✅ Approve", CallbackData: "approve:" + p.ID},
			{Text: "❌ Cancel", CallbackData: "cancel:" + p.ID},
		}},
	}
	var resp tgResponse
	return t.call(ctx, "sendMessage", msg, &resp)
}

type tgUpdate struct {
	UpdateID      int64 `json:"update_id"`
	CallbackQuery *struct {
		ID   string `json:"id"`
		Data string `json:"data"`
	} `json:"callback_query"`
}

// PollApprovals drains pending callback queries and converts approve/cancel
// callbacks to verdicts. The update offset advances even past updates we do
// not understand, so a malformed callback never wedges the poller.
func (t *Telegram) PollApprovals(ctx context.Context) ([]Approval, error) {
	var resp tgResponse
	err := t.call(ctx, "getUpdates", map[string]any{
		"offset":          t.offset,
		"timeout":         0,
		"allowed_updates": []string{"callback_query"},
	}, &resp)
	if err != nil {
		return nil, err
	}

	var updates []tgUpdate
	if err := json.Unmarshal(resp.Result, &updates); err != nil {
		return nil, fmt.Errorf("telegram: decode updates: %w", err)
	}

	var approvals []Approval
	for _, u := range updates {
		if u.UpdateID >= t.offset {
			t.offset = u.UpdateID + 1
		}
		if u.CallbackQuery == nil {
			continue
		}
		action, id, ok := strings.Cut(u.CallbackQuery.Data, ":")
		if !ok || id == "" {
			logx.Infof("telegram: ignoring callback data %q", u.CallbackQuery.Data)
			continue
		}
		switch action {
		case "approve":
			approvals = append(approvals, Approval{ProposalID: id, Approved: true})
		case "cancel":
			approvals = append(approvals, Approval{ProposalID: id, Approved: false})
		default:
			logx.Infof("telegram: ignoring callback action %q", action)
			continue
		}
		t.ack(ctx, u.CallbackQuery.ID)
	}
	return approvals, nil
}

// ack answers the callback query so the client stops showing a spinner.
// Failure here is cosmetic.
func (t *Telegram) ack(ctx context.Context, callbackID string) {
	var resp tgResponse
	if err := t.call(ctx, "answerCallbackQuery", map[string]string{
		"callback_query_id": callbackID,
	}, &resp); err != nil {
		logx.Infof("telegram: answerCallbackQuery: %v", err)
	}
}
