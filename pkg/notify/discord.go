package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"daytrader-api/pkg/strategy"
)

// Discord posts embeds to a webhook. Discord has no callback channel here,
// so proposals render as plain embeds and approvals flow through Telegram.
type Discord struct {
	webhookURL string
	client     *http.Client
}

// NewDiscord builds a webhook sink. An empty URL yields a disabled sink
// whose sends are no-ops.
func NewDiscord(webhookURL string, client *http.Client) *Discord {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Discord{webhookURL: webhookURL, client: client}
}

func priorityColor(p Priority) int {
	switch p {
	case PriorityCritical:
		return 0xE74C3C
	case PriorityWarning:
		return 0xF1C40F
	default:
		return 0x3498DB
	}
}

func (d *Discord) post(ctx context.Context, title, description string, color int) error {
	if d.webhookURL == "" {
		return nil
	}
	payload := map[string]any{
		"embeds": []map[string]any{{
			"title":       title,
			"description": description,
			"color":       color,
			"timestamp":   time.Now().Format(time.RFC3339),
		}},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord: marshal embed: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("discord: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Send delivers a titled embed.
func (d *Discord) Send(ctx context.Context, title, text string, priority Priority) error {
	return d.post(ctx, title, text, priorityColor(priority))
}

// SendProposalForApproval renders the proposal as an informational embed.
func (d *Discord) SendProposalForApproval(ctx context.Context, p strategy.Proposal) error {
	desc := fmt.Sprintf("%s %s x%d @ %.2f (%s)\nNotional: %.2f\nID: `%s`",
		p.Side, p.Symbol, p.Quantity, p.Price, p.Strategy, p.Notional(), p.ID)
	return d.post(ctx, "Proposal pending approval", desc, priorityColor(PriorityWarning))
}
