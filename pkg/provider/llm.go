package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/prospecting-engine/pkg/cost"
	"github.com/codeready-toolchain/prospecting-engine/pkg/model"
	"github.com/codeready-toolchain/prospecting-engine/pkg/ratelimit"
)

// TextLLMClient drives the structured-JSON text completion calls used for
// query optimization and relevance scoring (§4.4).
type TextLLMClient struct {
	r         *runner
	transport *grpcTransport
	model     string
}

// NewTextLLMClient dials the LLM sidecar at addr and builds a text
// completion client on that connection.
func NewTextLLMClient(limiter *ratelimit.Limiter, tracker *cost.Tracker, addr, modelName string) (*TextLLMClient, error) {
	transport, err := dialLLM(addr)
	if err != nil {
		return nil, err
	}
	return &TextLLMClient{
		r:         newRunner(limiter, tracker, "text-llm"),
		transport: transport,
		model:     modelName,
	}, nil
}

// Complete sends prompt to the text model and unmarshals its JSON-object
// reply into out. A reply that fails to parse as JSON is retried once
// with a repair prompt before the call is treated as a permanent failure
// (§4.4); ordinary transient/quota errors still follow the shared retry
// and quota-latch policy in runner.call.
func (c *TextLLMClient) Complete(ctx context.Context, runID, operation, prompt string, out any) error {
	return c.r.call(ctx, runID, "text-llm", operation, func(ctx context.Context) (float64, float64, error) {
		reply, err := c.transport.invoke(ctx, "/prospecting.llm.v1.TextLLM/Complete", map[string]any{
			"model":  c.model,
			"prompt": prompt,
		})
		if err != nil {
			return 0, 0, classifyGRPCError("text-llm", operation, err)
		}

		usd, tokens, content := extractCompletion(reply)

		if jsonErr := json.Unmarshal([]byte(content), out); jsonErr != nil {
			repaired, repairErr := c.transport.invoke(ctx, "/prospecting.llm.v1.TextLLM/Complete", map[string]any{
				"model":  c.model,
				"prompt": repairPrompt(prompt, content, jsonErr),
			})
			if repairErr != nil {
				return usd, tokens, model.NewProviderError(model.KindPermanent, "text-llm", operation, jsonErr)
			}
			repairedUsd, repairedTokens, repairedContent := extractCompletion(repaired)
			usd += repairedUsd
			tokens += repairedTokens
			if jsonErr := json.Unmarshal([]byte(repairedContent), out); jsonErr != nil {
				return usd, tokens, model.NewProviderError(model.KindPermanent, "text-llm", operation, jsonErr)
			}
		}

		return usd, tokens, nil
	})
}

// Close releases the underlying gRPC connection.
func (c *TextLLMClient) Close() error { return c.transport.Close() }

// VisionLLMClient drives the image-analysis fallback used when website
// scraping yields no structured contact data (§4.4).
type VisionLLMClient struct {
	r         *runner
	transport *grpcTransport
	model     string
}

// NewVisionLLMClient builds a vision-analysis client. When addr matches
// an already-dialed text client's address, callers may share one
// grpcTransport by constructing both clients against the same sidecar
// process; this constructor dials its own connection for simplicity.
func NewVisionLLMClient(limiter *ratelimit.Limiter, tracker *cost.Tracker, addr, modelName string) (*VisionLLMClient, error) {
	transport, err := dialLLM(addr)
	if err != nil {
		return nil, err
	}
	return &VisionLLMClient{
		r:         newRunner(limiter, tracker, "vision-llm"),
		transport: transport,
		model:     modelName,
	}, nil
}

// Analyze sends a screenshot (PNG bytes) and prompt to the vision model
// and unmarshals its JSON-object reply into out. Same repair-retry
// behavior as TextLLMClient.Complete.
func (c *VisionLLMClient) Analyze(ctx context.Context, runID, operation string, png []byte, prompt string, out any) error {
	return c.r.call(ctx, runID, "vision-llm", operation, func(ctx context.Context) (float64, float64, error) {
		reply, err := c.transport.invoke(ctx, "/prospecting.llm.v1.VisionLLM/Analyze", map[string]any{
			"model":      c.model,
			"prompt":     prompt,
			"image_png":  base64.StdEncoding.EncodeToString(png),
			"image_mime": "image/png",
		})
		if err != nil {
			return 0, 0, classifyGRPCError("vision-llm", operation, err)
		}

		usd, tokens, content := extractCompletion(reply)

		if jsonErr := json.Unmarshal([]byte(content), out); jsonErr != nil {
			repaired, repairErr := c.transport.invoke(ctx, "/prospecting.llm.v1.VisionLLM/Analyze", map[string]any{
				"model":      c.model,
				"prompt":     repairPrompt(prompt, content, jsonErr),
				"image_png":  base64.StdEncoding.EncodeToString(png),
				"image_mime": "image/png",
			})
			if repairErr != nil {
				return usd, tokens, model.NewProviderError(model.KindPermanent, "vision-llm", operation, jsonErr)
			}
			repairedUsd, repairedTokens, repairedContent := extractCompletion(repaired)
			usd += repairedUsd
			tokens += repairedTokens
			if jsonErr := json.Unmarshal([]byte(repairedContent), out); jsonErr != nil {
				return usd, tokens, model.NewProviderError(model.KindPermanent, "vision-llm", operation, jsonErr)
			}
		}

		return usd, tokens, nil
	})
}

// Close releases the underlying gRPC connection.
func (c *VisionLLMClient) Close() error { return c.transport.Close() }

func extractCompletion(reply map[string]any) (usd, tokens float64, content string) {
	usd, _ = reply["cost_usd"].(float64)
	tokens, _ = reply["total_tokens"].(float64)
	content, _ = reply["content"].(string)
	return usd, tokens, content
}

func repairPrompt(original, badReply string, parseErr error) string {
	return fmt.Sprintf(
		"Your previous reply was not valid JSON (%s). Reply again with ONLY a valid JSON object satisfying this request:\n\n%s\n\nYour previous reply was:\n%s",
		parseErr, original, badReply,
	)
}
