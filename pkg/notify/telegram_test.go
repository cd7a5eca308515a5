package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daytrader-api/pkg/strategy"
)

func testProposal() strategy.Proposal {
	return strategy.NewProposal(time.Now(), "momentum_options", "PETR4",
		strategy.SideBuy, 1000, 1.25, nil)
}

func TestTelegramSendProposalKeyboard(t *testing.T) {
	var got tgSendMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Contains(t, r.URL.Path, "/bottok123/sendMessage")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	}))
	defer srv.Close()

	tg := NewTelegram("tok123", "chat1", WithTelegramBaseURL(srv.URL))
	p := testProposal()
	require.NoError(t, tg.SendProposalForApproval(context.Background(), p))

	assert.Equal(t, "chat1", got.ChatID)
	assert.Contains(t, got.Text, "PETR4")
	require.NotNil(t, got.ReplyMarkup)
	require.Len(t, got.ReplyMarkup.InlineKeyboard, 1)
	row := got.ReplyMarkup.InlineKeyboard[0]
	require.Len(t, row, 2)
	assert.Equal(t, "approve:"+p.ID, row[0].CallbackData)
	assert.Equal(t, "cancel:"+p.ID, row[1].CallbackData)
}

func TestTelegramSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"description":"Bad Request: chat not found"}`)
	}))
	defer srv.Close()

	tg := NewTelegram("tok", "chat", WithTelegramBaseURL(srv.URL))
	err := tg.Send(context.Background(), "t", "x", PriorityInfo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramPollApprovals(t *testing.T) {
	calls := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/bottok/getUpdates":
			calls["getUpdates"]++
			var req struct {
				Offset int64 `json:"offset"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if calls["getUpdates"] == 1 {
				require.Zero(t, req.Offset)
				fmt.Fprint(w, `{"ok":true,"result":[
					{"update_id":10,"callback_query":{"id":"cb1","data":"approve:id-1"}},
					{"update_id":11,"callback_query":{"id":"cb2","data":"cancel:id-2"}},
					{"update_id":12,"callback_query":{"id":"cb3","data":"garbage"}}
				]}`)
				return
			}
			// Second poll resumes past everything already seen.
			require.EqualValues(t, 13, req.Offset)
			fmt.Fprint(w, `{"ok":true,"result":[]}`)
		case r.URL.Path == "/bottok/answerCallbackQuery":
			calls["answer"]++
			fmt.Fprint(w, `{"ok":true,"result":true}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	tg := NewTelegram("tok", "chat", WithTelegramBaseURL(srv.URL))

	approvals, err := tg.PollApprovals(context.Background())
	require.NoError(t, err)
	require.Len(t, approvals, 2)
	assert.Equal(t, Approval{ProposalID: "id-1", Approved: true}, approvals[0])
	assert.Equal(t, Approval{ProposalID: "id-2", Approved: false}, approvals[1])
	assert.Equal(t, 2, calls["answer"])

	approvals, err = tg.PollApprovals(context.Background())
	require.NoError(t, err)
	assert.Empty(t, approvals)
}
