// Package generate produces images from text prompts through a hosted
// text-to-image gateway.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"weavemint.dev/weavemint/fault"
	"weavemint.dev/weavemint/logging"
)

const (
	DefaultEndpoint = "https://dream-gateway.livepeer.cloud"
	DefaultModelID  = "SG161222/RealVisXL_V4.0_Lightning"
	DefaultTokenEnv = "LIVEPEER_API_TOKEN"

	textToImagePath = "/text-to-image"
)

// Client calls the text-to-image endpoint. The zero value uses the default
// endpoint and model with no token.
type Client struct {
	Endpoint   string
	ModelID    string
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type textToImageRequest struct {
	ModelID string `json:"model_id"`
	Prompt  string `json:"prompt"`
}

type textToImageResponse struct {
	Images []struct {
		URL  string `json:"url"`
		Seed int64  `json:"seed"`
		NSFW bool   `json:"nsfw"`
	} `json:"images"`
}

// ProviderError is an unsuccessful response from the generation service.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("generation service returned %d: %s", e.StatusCode, e.Message)
}

// Generate returns the URL of the first image produced for prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	const op = "generate.text_to_image"
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fault.New(fault.KindInvalid, op, "prompt is empty")
	}

	body, err := json.Marshal(textToImageRequest{ModelID: c.modelID(), Prompt: prompt})
	if err != nil {
		return "", fault.Wrap(fault.KindGeneration, op, "marshaling request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint()+textToImagePath, bytes.NewReader(body))
	if err != nil {
		return "", fault.Wrap(fault.KindGeneration, op, "creating request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	start := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", fault.Wrap(fault.KindGeneration, op, "sending request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fault.Wrap(fault.KindGeneration, op, "request rejected", readProviderError(resp))
	}

	var out textToImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fault.Wrap(fault.KindGeneration, op, "decoding response", err)
	}
	if len(out.Images) == 0 || out.Images[0].URL == "" {
		return "", fault.New(fault.KindGeneration, op, "response contained no images")
	}

	logging.OrDiscard(c.Logger).Info("generated image",
		"model", c.modelID(),
		"images", len(out.Images),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return out.Images[0].URL, nil
}

// readProviderError understands {"error":{"message":...}} and
// {"detail":{"msg":...}} bodies and falls back to the raw text.
func readProviderError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var wire struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Detail struct {
			Msg string `json:"msg"`
		} `json:"detail"`
	}
	if json.Unmarshal(body, &wire) == nil {
		if wire.Error.Message != "" {
			return &ProviderError{StatusCode: resp.StatusCode, Message: wire.Error.Message}
		}
		if wire.Detail.Msg != "" {
			return &ProviderError{StatusCode: resp.StatusCode, Message: wire.Detail.Msg}
		}
	}
	return &ProviderError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}

func (c *Client) endpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return strings.TrimRight(c.Endpoint, "/")
}

func (c *Client) modelID() string {
	if c.ModelID == "" {
		return DefaultModelID
	}
	return c.ModelID
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}
