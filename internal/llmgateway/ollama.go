package llmgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/logging"
	"github.com/bsommerfeld/wsbg-terminal-sub002/retry"
)

const (
	chatTimeout  = 5 * time.Minute
	visionTimeout = 30 * time.Second
)

// OllamaGateway is the Gateway implementation talking to a local
// Ollama-compatible OpenAI-style chat-completions endpoint, grounded on
// the teacher's ollama provider request/retry/decode shape.
type OllamaGateway struct {
	endpoint        string
	reasoningModel  string
	translatorModel string
	embeddingModel  string
	visionModel     string

	client *http.Client
	memory *scopedMemory
	logger logging.Logger
}

// Config names every resolved model role and the server endpoint.
type Config struct {
	Endpoint        string
	ReasoningModel  string
	TranslatorModel string
	EmbeddingModel  string
	VisionModel     string
}

// NewOllamaGateway constructs a Gateway against an already-resolved
// Config (see ResolveModel for how roles are resolved at startup).
func NewOllamaGateway(cfg Config, logger logging.Logger) *OllamaGateway {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &OllamaGateway{
		endpoint:        cfg.Endpoint,
		reasoningModel:  cfg.ReasoningModel,
		translatorModel: cfg.TranslatorModel,
		embeddingModel:  cfg.EmbeddingModel,
		visionModel:     cfg.VisionModel,
		client:          &http.Client{Timeout: chatTimeout},
		memory:          newScopedMemory(),
		logger:          logger,
	}
}

// Chat streams a reasoning-model response to message within scopeID's
// sliding memory window.
func (g *OllamaGateway) Chat(ctx context.Context, scopeID, message string) (Stream, error) {
	history := g.memory.Append(scopeID, ChatMessage{Role: "user", Content: message})
	stream, err := g.streamChat(ctx, g.reasoningModel, history)
	if err != nil {
		return nil, err
	}
	return g.trackingStream(scopeID, stream), nil
}

// trackingStream wraps a Stream so the assistant's full reply is recorded
// into the scope's memory once the stream completes.
type trackingStream struct {
	Stream
	gateway *OllamaGateway
	scopeID string
	stored  bool
}

func (g *OllamaGateway) trackingStream(scopeID string, inner Stream) Stream {
	return &trackingStream{Stream: inner, gateway: g, scopeID: scopeID}
}

func (t *trackingStream) Next() bool {
	more := t.Stream.Next()
	if !more && !t.stored && t.Stream.Err() == nil {
		t.stored = true
		t.gateway.memory.Append(t.scopeID, ChatMessage{Role: "assistant", Content: t.Stream.FullText()})
	}
	return more
}

// Translate streams a translation of text from sourceLang to targetLang
// using the translator model role. Translation requests are stateless —
// they don't participate in any memory scope.
func (g *OllamaGateway) Translate(ctx context.Context, text, sourceLang, targetLang string) (Stream, error) {
	prompt := fmt.Sprintf("Translate the following text from %s to %s. Respond with only the translation, no commentary.\n\n%s", sourceLang, targetLang, text)
	messages := []ChatMessage{{Role: "user", Content: prompt}}
	return g.streamChat(ctx, g.translatorModel, messages)
}

func (g *OllamaGateway) streamChat(ctx context.Context, model string, messages []ChatMessage) (Stream, error) {
	requestID := newRequestID()
	g.logger.Debug("starting chat stream", "request_id", requestID, "model", model)

	body, err := json.Marshal(ChatRequest{Model: model, Messages: messages, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, g.endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := g.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("starting chat stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("chat stream failed: status %d", resp.StatusCode)
	}

	return newSSEStream(resp.Body, cancel), nil
}

// Embed returns a fixed-dim embedding vector for text via the embedding
// model role.
func (g *OllamaGateway) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("embed: empty input")
	}

	var result EmbedResponse
	err := retry.Do(ctx, func() error {
		body, err := json.Marshal(EmbedRequest{Model: g.embeddingModel, Input: text})
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"/v1/embeddings", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.client.Do(req)
		if err != nil {
			return retry.NewRecoverableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			if retry.ShouldRetry(resp.StatusCode) {
				return retry.NewRecoverableError(fmt.Errorf("embed request status %d", resp.StatusCode))
			}
			return fmt.Errorf("embed request status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&result)
	}, retry.WithMaxRetries(3), retry.WithBaseWait(200*time.Millisecond))
	if err != nil {
		return nil, err
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("embed: empty response")
	}
	return result.Embeddings[0], nil
}

// newRequestID generates an opaque id for request-scoped logging.
func newRequestID() string {
	return uuid.NewString()
}
