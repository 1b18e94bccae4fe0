package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v2"

	"github.com/calderonlabs/tienda-backend/pkg/config"
	"github.com/calderonlabs/tienda-backend/pkg/db/models"
	"github.com/calderonlabs/tienda-backend/pkg/logger"
	"github.com/calderonlabs/tienda-backend/pkg/metrics"
	"github.com/calderonlabs/tienda-backend/pkg/types"
)

// maxReplyLen caps the final text handed back for delivery. WhatsApp messages
// past this length get cut off by carriers anyway.
const maxReplyLen = 1500

// HistoryStore is the persistence surface the orchestrator needs. A nil store
// runs the turn stateless: no prior context is loaded and nothing is saved.
type HistoryStore interface {
	GetOrCreate(ctx context.Context, phone string) (*models.Conversation, error)
	History(ctx context.Context, phone string) ([]types.Turn, error)
	Append(ctx context.Context, phone string, delta []types.Turn) error
}

// Orchestrator drives one conversational turn end to end: load history, run
// the model's tool loop against the Dispatcher, persist the produced turns,
// return the final text.
type Orchestrator struct {
	client  *openai.Client
	model   config.OpenRouterConfig
	agent   config.AgentConfig
	httpDo  *http.Client
	store   HistoryStore
	log     *logger.Logger
	metrics *metrics.AgentMetrics
}

func NewOrchestrator(
	client *openai.Client,
	modelCfg config.OpenRouterConfig,
	agentCfg config.AgentConfig,
	httpClient *http.Client,
	store HistoryStore,
	log *logger.Logger,
	m *metrics.AgentMetrics,
) (*Orchestrator, error) {
	if client == nil {
		return nil, fmt.Errorf("model client required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if agentCfg.MaxToolRounds <= 0 {
		agentCfg.MaxToolRounds = 8
	}
	return &Orchestrator{
		client:  client,
		model:   modelCfg,
		agent:   agentCfg,
		httpDo:  httpClient,
		store:   store,
		log:     log,
		metrics: m,
	}, nil
}

// RunTurn handles one inbound customer message and returns the reply text.
func (o *Orchestrator) RunTurn(ctx context.Context, phone, message string) (string, error) {
	start := time.Now()
	ctx = o.log.WithPhone(ctx, phone)

	reply, err := o.runTurn(ctx, phone, message)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	o.metrics.ObserveTurn(outcome, time.Since(start))
	return reply, err
}

func (o *Orchestrator) runTurn(ctx context.Context, phone, message string) (string, error) {
	var history []types.Turn
	if o.store != nil {
		if _, err := o.store.GetOrCreate(ctx, phone); err != nil {
			return "", err
		}
		var err error
		history, err = o.store.History(ctx, phone)
		if err != nil {
			return "", err
		}
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(salesPrompt),
	}
	messages = append(messages, historyToMessages(history)...)
	messages = append(messages, openai.UserMessage(message))

	delta := []types.Turn{{
		Kind:  types.TurnKindRequest,
		Parts: []types.TurnPart{{Kind: types.PartKindUserPrompt, Content: message}},
	}}

	dispatcher := NewDispatcher(o.httpDo, o.agent.APIBaseURL, phone)
	tools := toolSet()

	var final string
	for round := 0; ; round++ {
		if round >= o.agent.MaxToolRounds {
			return "", fmt.Errorf("model exceeded %d tool rounds", o.agent.MaxToolRounds)
		}

		msg, err := o.complete(ctx, messages, tools)
		if err != nil {
			return "", err
		}

		delta = append(delta, responseTurn(msg))

		if len(msg.ToolCalls) == 0 {
			final = msg.Content
			break
		}

		messages = append(messages, msg.ToParam())
		returns := types.Turn{Kind: types.TurnKindRequest}
		for _, call := range msg.ToolCalls {
			o.metrics.IncToolCall(call.Function.Name)
			result := dispatcher.Dispatch(ctx, call.Function.Name, json.RawMessage(call.Function.Arguments))
			if result.IsError() {
				o.log.Warn(o.log.WithField(ctx, "tool", call.Function.Name), "tool call resolved to error envelope")
			}
			body := result.JSON()
			messages = append(messages, openai.ToolMessage(body, call.ID))
			returns.Parts = append(returns.Parts, types.TurnPart{
				Kind:       types.PartKindToolReturn,
				ToolName:   call.Function.Name,
				ToolCallID: call.ID,
				Content:    body,
			})
		}
		delta = append(delta, returns)
	}

	if o.store != nil {
		if err := o.store.Append(ctx, phone, delta); err != nil {
			return "", err
		}
	}

	return truncateReply(final), nil
}

// complete runs one model call under the configured timeout.
func (o *Orchestrator) complete(
	ctx context.Context,
	messages []openai.ChatCompletionMessageParamUnion,
	tools []openai.ChatCompletionToolUnionParam,
) (openai.ChatCompletionMessage, error) {
	if o.model.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.model.Timeout)
		defer cancel()
	}

	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model.Model),
		Messages:    messages,
		Tools:       tools,
		Temperature: openai.Float(o.model.Temperature),
		MaxTokens:   openai.Int(o.model.MaxTokens),
	})
	if err != nil {
		return openai.ChatCompletionMessage{}, fmt.Errorf("model call failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return openai.ChatCompletionMessage{}, fmt.Errorf("model returned no choices")
	}
	return completion.Choices[0].Message, nil
}

// responseTurn records a model message in the stored wire shape.
func responseTurn(msg openai.ChatCompletionMessage) types.Turn {
	turn := types.Turn{Kind: types.TurnKindResponse}
	if msg.Content != "" {
		turn.Parts = append(turn.Parts, types.TurnPart{
			Kind:    types.PartKindText,
			Content: msg.Content,
		})
	}
	for _, call := range msg.ToolCalls {
		turn.Parts = append(turn.Parts, types.TurnPart{
			Kind:       types.PartKindToolCall,
			ToolName:   call.Function.Name,
			ToolCallID: call.ID,
			Args:       json.RawMessage(call.Function.Arguments),
		})
	}
	return turn
}

// historyToMessages replays stored turns as chat messages. Unknown part kinds
// are skipped rather than failing the turn.
func historyToMessages(history []types.Turn) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	for _, turn := range history {
		switch turn.Kind {
		case types.TurnKindRequest:
			for _, part := range turn.Parts {
				switch part.Kind {
				case types.PartKindUserPrompt:
					messages = append(messages, openai.UserMessage(part.Content))
				case types.PartKindToolReturn:
					messages = append(messages, openai.ToolMessage(part.Content, part.ToolCallID))
				}
			}
		case types.TurnKindResponse:
			messages = append(messages, assistantMessage(turn))
		}
	}
	return messages
}

func assistantMessage(turn types.Turn) openai.ChatCompletionMessageParamUnion {
	assistant := openai.ChatCompletionAssistantMessageParam{}
	for _, part := range turn.Parts {
		switch part.Kind {
		case types.PartKindText:
			assistant.Content.OfString = openai.String(part.Content)
		case types.PartKindToolCall:
			assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
				OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
					ID: part.ToolCallID,
					Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
						Name:      part.ToolName,
						Arguments: string(part.Args),
					},
				},
			})
		}
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

func truncateReply(text string) string {
	runes := []rune(text)
	if len(runes) <= maxReplyLen {
		return text
	}
	return string(runes[:maxReplyLen])
}
