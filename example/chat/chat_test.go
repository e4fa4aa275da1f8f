package chat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shaipe/async-graphql/internal/executor"
	"github.com/shaipe/async-graphql/internal/language"
)

func newTestExecutor(t *testing.T) (*Service, *executor.Executor) {
	t.Helper()
	service := NewService()
	sch, err := service.Schema()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	return service, executor.New(sch)
}

func mustParse(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	doc, err := language.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func dataOf(t *testing.T, resp *executor.Response) map[string]any {
	t.Helper()
	if len(resp.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", resp.Errors)
	}
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestSendAndQueryHistory(t *testing.T) {
	_, exec := newTestExecutor(t)
	ctx := context.Background()

	send := mustParse(t, `mutation Send($text: String!) {
		sendMessage(roomId: "general", author: "alice", text: $text) { id author text }
	}`)
	for _, text := range []string{"hi", "anyone here?", "ok then"} {
		resp := exec.ExecuteRequest(ctx, send, "", map[string]any{"text": text}, nil)
		data := dataOf(t, resp)
		sent := data["sendMessage"].(map[string]any)
		if sent["text"] != text || sent["author"] != "alice" {
			t.Fatalf("sendMessage returned %v", sent)
		}
		if sent["id"] == "" {
			t.Fatal("sendMessage must assign an id")
		}
	}

	resp := exec.ExecuteRequest(ctx, mustParse(t, `{ messages(roomId: "general", last: 2) { text } }`), "", nil, nil)
	data := dataOf(t, resp)
	msgs := data["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected last 2 messages, got %d", len(msgs))
	}
	if got := msgs[0].(map[string]any)["text"]; got != "anyone here?" {
		t.Fatalf("messages[0].text = %v", got)
	}
	if got := msgs[1].(map[string]any)["text"]; got != "ok then" {
		t.Fatalf("messages[1].text = %v", got)
	}
}

func TestEmptyMessageRejected(t *testing.T) {
	_, exec := newTestExecutor(t)

	resp := exec.ExecuteRequest(context.Background(),
		mustParse(t, `mutation { sendMessage(roomId: "general", author: "alice", text: "") { id } }`),
		"", nil, nil)

	if len(resp.Errors) != 1 {
		t.Fatalf("expected one error, got %v", resp.Errors)
	}
	// sendMessage is non-null, so the violation reaches the root.
	if resp.Data != nil {
		t.Fatalf("data = %v, want null", resp.Data)
	}
}

func TestSubscriptionReceivesRoomMessages(t *testing.T) {
	_, exec := newTestExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := exec.ExecuteSubscription(ctx,
		mustParse(t, `subscription { messageAdded(roomId: "general") { author text } }`), "", nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	send := mustParse(t, `mutation { sendMessage(roomId: "general", author: "bob", text: "ping") { id } }`)
	if resp := exec.ExecuteRequest(ctx, send, "", nil, nil); len(resp.Errors) > 0 {
		t.Fatalf("send: %v", resp.Errors)
	}
	// A message in another room must not reach this subscriber.
	other := mustParse(t, `mutation { sendMessage(roomId: "random", author: "bob", text: "noise") { id } }`)
	if resp := exec.ExecuteRequest(ctx, other, "", nil, nil); len(resp.Errors) > 0 {
		t.Fatalf("send: %v", resp.Errors)
	}

	select {
	case resp := <-ch:
		data := dataOf(t, resp)
		added := data["messageAdded"].(map[string]any)
		if added["author"] != "bob" || added["text"] != "ping" {
			t.Fatalf("messageAdded = %v", added)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the subscription event")
	}

	select {
	case resp := <-ch:
		t.Fatalf("unexpected cross-room event: %v", resp)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscriptionAuthorFilter(t *testing.T) {
	_, exec := newTestExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := exec.ExecuteSubscription(ctx,
		mustParse(t, `subscription { messageAdded(roomId: "general", author: "alice") { author text } }`), "", nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for _, m := range []struct{ author, text string }{
		{"bob", "filtered out"},
		{"alice", "kept"},
	} {
		send := mustParse(t, `mutation Send($author: String!, $text: String!) {
			sendMessage(roomId: "general", author: $author, text: $text) { id }
		}`)
		vars := map[string]any{"author": m.author, "text": m.text}
		if resp := exec.ExecuteRequest(ctx, send, "", vars, nil); len(resp.Errors) > 0 {
			t.Fatalf("send: %v", resp.Errors)
		}
	}

	select {
	case resp := <-ch:
		data := dataOf(t, resp)
		added := data["messageAdded"].(map[string]any)
		if added["author"] != "alice" || added["text"] != "kept" {
			t.Fatalf("filter let through %v", added)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the filtered event")
	}
}

func TestRoomSubscriberCount(t *testing.T) {
	_, exec := newTestExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	count := func() float64 {
		resp := exec.ExecuteRequest(ctx, mustParse(t, `{ roomSubscribers(roomId: "general") }`), "", nil, nil)
		return dataOf(t, resp)["roomSubscribers"].(float64)
	}

	if got := count(); got != 0 {
		t.Fatalf("initial subscriber count = %v", got)
	}

	_, err := exec.ExecuteSubscription(ctx,
		mustParse(t, `subscription { messageAdded(roomId: "general") { id } }`), "", nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if got := count(); got != 1 {
		t.Fatalf("subscriber count = %v, want 1", got)
	}
}
