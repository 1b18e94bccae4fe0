package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog"

	"github.com/calderonlabs/tienda-backend/pkg/config"
	"github.com/calderonlabs/tienda-backend/pkg/db/models"
	"github.com/calderonlabs/tienda-backend/pkg/logger"
	"github.com/calderonlabs/tienda-backend/pkg/types"
)

type fakeStore struct {
	history  []types.Turn
	appended []types.Turn
	created  []string
}

func (f *fakeStore) GetOrCreate(_ context.Context, phone string) (*models.Conversation, error) {
	f.created = append(f.created, phone)
	return &models.Conversation{PhoneNumber: phone}, nil
}

func (f *fakeStore) History(context.Context, string) ([]types.Turn, error) {
	return f.history, nil
}

func (f *fakeStore) Append(_ context.Context, _ string, delta []types.Turn) error {
	f.appended = append(f.appended, delta...)
	return nil
}

// modelScript serves scripted chat completion responses in order.
type modelScript struct {
	responses []string
	requests  []json.RawMessage
}

func (s *modelScript) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		var body json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		s.requests = append(s.requests, body)

		if len(s.responses) == 0 {
			t.Error("model called more times than scripted")
			http.Error(w, "out of script", http.StatusInternalServerError)
			return
		}
		next := s.responses[0]
		s.responses = s.responses[1:]
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, next)
	}
}

func textCompletion(content string) string {
	return fmt.Sprintf(`{
		"id": "cmpl-1",
		"object": "chat.completion",
		"choices": [{
			"index": 0,
			"finish_reason": "stop",
			"message": {"role": "assistant", "content": %q}
		}]
	}`, content)
}

func toolCallCompletion(callID, tool, args string) string {
	return fmt.Sprintf(`{
		"id": "cmpl-1",
		"object": "chat.completion",
		"choices": [{
			"index": 0,
			"finish_reason": "tool_calls",
			"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [{
					"id": %q,
					"type": "function",
					"function": {"name": %q, "arguments": %q}
				}]
			}
		}]
	}`, callID, tool, args)
}

func newTestOrchestrator(t *testing.T, modelURL, apiURL string, store HistoryStore) *Orchestrator {
	t.Helper()
	client := openai.NewClient(option.WithAPIKey("test"), option.WithBaseURL(modelURL))
	log := logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard})
	o, err := NewOrchestrator(
		&client,
		config.OpenRouterConfig{Model: "test-model", Temperature: 0.1, MaxTokens: 350, Timeout: 5 * time.Second},
		config.AgentConfig{APIBaseURL: apiURL, MaxToolRounds: 4},
		nil,
		store,
		log,
		nil,
	)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return o
}

func TestRunTurnPlainReply(t *testing.T) {
	script := &modelScript{responses: []string{textCompletion("Hola! En que puedo ayudarte?")}}
	modelSrv := httptest.NewServer(script.handler(t))
	defer modelSrv.Close()

	store := &fakeStore{}
	o := newTestOrchestrator(t, modelSrv.URL, "http://unused", store)

	reply, err := o.RunTurn(context.Background(), "+5215552000", "hola")
	if err != nil {
		t.Fatalf("run turn: %v", err)
	}
	if reply != "Hola! En que puedo ayudarte?" {
		t.Fatalf("unexpected reply: %q", reply)
	}

	if len(store.created) != 1 || store.created[0] != "+5215552000" {
		t.Fatalf("conversation should be provisioned once, got %v", store.created)
	}
	// One request turn with the prompt, one response turn with the text.
	if len(store.appended) != 2 {
		t.Fatalf("expected 2 persisted turns, got %d", len(store.appended))
	}
	if store.appended[0].Kind != types.TurnKindRequest ||
		store.appended[0].Parts[0].Kind != types.PartKindUserPrompt {
		t.Fatalf("first turn should carry the user prompt: %+v", store.appended[0])
	}
	if store.appended[1].Kind != types.TurnKindResponse ||
		store.appended[1].Parts[0].Content != "Hola! En que puedo ayudarte?" {
		t.Fatalf("second turn should carry the reply: %+v", store.appended[1])
	}
}

func TestRunTurnToolLoop(t *testing.T) {
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products" {
			t.Errorf("unexpected tool path %s", r.URL.Path)
		}
		writeData(w, http.StatusOK, `[{"name":"Chips","price":"12.00","stock":5}]`)
	}))
	defer apiSrv.Close()

	script := &modelScript{responses: []string{
		toolCallCompletion("call_1", toolGetProducts, `{}`),
		textCompletion("Tenemos Chips a $12.00, hay 5 disponibles."),
	}}
	modelSrv := httptest.NewServer(script.handler(t))
	defer modelSrv.Close()

	store := &fakeStore{}
	o := newTestOrchestrator(t, modelSrv.URL, apiSrv.URL, store)

	reply, err := o.RunTurn(context.Background(), "+5215552001", "que productos tienes?")
	if err != nil {
		t.Fatalf("run turn: %v", err)
	}
	if !strings.Contains(reply, "Chips") {
		t.Fatalf("unexpected reply: %q", reply)
	}

	// request(prompt), response(tool-call), request(tool-return), response(text)
	if len(store.appended) != 4 {
		t.Fatalf("expected 4 persisted turns, got %d", len(store.appended))
	}
	call := store.appended[1].Parts[0]
	if call.Kind != types.PartKindToolCall || call.ToolName != toolGetProducts || call.ToolCallID != "call_1" {
		t.Fatalf("tool call not recorded: %+v", call)
	}
	ret := store.appended[2].Parts[0]
	if ret.Kind != types.PartKindToolReturn || ret.ToolCallID != "call_1" {
		t.Fatalf("tool return not recorded: %+v", ret)
	}
	if !strings.HasPrefix(ret.Content, `{"products":`) {
		t.Fatalf("tool return should carry the envelope: %s", ret.Content)
	}

	// The second model call must include the tool result message.
	if len(script.requests) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(script.requests))
	}
	if !strings.Contains(string(script.requests[1]), `"tool_call_id":"call_1"`) {
		t.Fatalf("tool result missing from second model request: %s", script.requests[1])
	}
}

func TestRunTurnStatelessWithoutStore(t *testing.T) {
	script := &modelScript{responses: []string{textCompletion("hecho")}}
	modelSrv := httptest.NewServer(script.handler(t))
	defer modelSrv.Close()

	o := newTestOrchestrator(t, modelSrv.URL, "http://unused", nil)

	reply, err := o.RunTurn(context.Background(), "+5215552002", "hola")
	if err != nil {
		t.Fatalf("run turn: %v", err)
	}
	if reply != "hecho" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestRunTurnReplaysHistory(t *testing.T) {
	script := &modelScript{responses: []string{textCompletion("claro")}}
	modelSrv := httptest.NewServer(script.handler(t))
	defer modelSrv.Close()

	store := &fakeStore{history: []types.Turn{
		{Kind: types.TurnKindRequest, Parts: []types.TurnPart{{Kind: types.PartKindUserPrompt, Content: "hola"}}},
		{Kind: types.TurnKindResponse, Parts: []types.TurnPart{{Kind: types.PartKindText, Content: "hola!"}}},
	}}
	o := newTestOrchestrator(t, modelSrv.URL, "http://unused", store)

	if _, err := o.RunTurn(context.Background(), "+5215552003", "y mi carrito?"); err != nil {
		t.Fatalf("run turn: %v", err)
	}

	request := string(script.requests[0])
	if !strings.Contains(request, `"hola"`) || !strings.Contains(request, `"hola!"`) {
		t.Fatalf("prior turns missing from model request: %s", request)
	}
}

func TestRunTurnToolRoundCap(t *testing.T) {
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, `[]`)
	}))
	defer apiSrv.Close()

	// The model asks for tools forever.
	looping := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		looping = append(looping, toolCallCompletion(fmt.Sprintf("call_%d", i), toolGetCategories, `{}`))
	}
	script := &modelScript{responses: looping}
	modelSrv := httptest.NewServer(script.handler(t))
	defer modelSrv.Close()

	o := newTestOrchestrator(t, modelSrv.URL, apiSrv.URL, nil)

	_, err := o.RunTurn(context.Background(), "+5215552004", "hola")
	if err == nil {
		t.Fatal("expected tool round cap to trip")
	}
	if !strings.Contains(err.Error(), "tool rounds") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTruncateReply(t *testing.T) {
	long := strings.Repeat("a", maxReplyLen+50)
	if got := truncateReply(long); len([]rune(got)) != maxReplyLen {
		t.Fatalf("expected %d runes, got %d", maxReplyLen, len([]rune(got)))
	}
	if got := truncateReply("corto"); got != "corto" {
		t.Fatalf("short replies pass through, got %q", got)
	}
}

func TestHistoryToMessagesShapes(t *testing.T) {
	callID := "call_9"
	args := json.RawMessage(`{"product_id":"` + uuid.NewString() + `"}`)
	history := []types.Turn{
		{Kind: types.TurnKindRequest, Parts: []types.TurnPart{{Kind: types.PartKindUserPrompt, Content: "dame chips"}}},
		{Kind: types.TurnKindResponse, Parts: []types.TurnPart{
			{Kind: types.PartKindToolCall, ToolName: toolGetProductByID, ToolCallID: callID, Args: args},
		}},
		{Kind: types.TurnKindRequest, Parts: []types.TurnPart{
			{Kind: types.PartKindToolReturn, ToolName: toolGetProductByID, ToolCallID: callID, Content: `{"product":{}}`},
		}},
		{Kind: types.TurnKindResponse, Parts: []types.TurnPart{{Kind: types.PartKindText, Content: "aqui tienes"}}},
	}

	messages := historyToMessages(history)
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
	if messages[0].OfUser == nil {
		t.Fatal("first message should be a user message")
	}
	assistant := messages[1].OfAssistant
	if assistant == nil || len(assistant.ToolCalls) != 1 {
		t.Fatalf("second message should carry the tool call: %+v", messages[1])
	}
	if assistant.ToolCalls[0].OfFunction.ID != callID {
		t.Fatalf("tool call id mismatch: %+v", assistant.ToolCalls[0])
	}
	if messages[2].OfTool == nil || messages[2].OfTool.ToolCallID != callID {
		t.Fatalf("third message should be the tool result: %+v", messages[2])
	}
	if messages[3].OfAssistant == nil {
		t.Fatal("fourth message should be the assistant text")
	}
}
