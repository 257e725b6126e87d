package generators

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultHuggingFaceURL = "https://router.huggingface.co/hf-inference/models"
	DefaultImageModel     = "black-forest-labs/FLUX.1-dev"
	DefaultSD35Model      = "stabilityai/stable-diffusion-3.5-large"

	// MaxImageBytes bounds a single generated image.
	MaxImageBytes = 32 << 20
)

// HuggingFaceClient calls the Hugging Face inference router for text-to-image
// models. The router answers with raw image bytes on success and a JSON error
// document otherwise.
type HuggingFaceClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type textToImageRequest struct {
	Inputs     string                `json:"inputs"`
	Parameters textToImageParameters `json:"parameters"`
}

type textToImageParameters struct {
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	GuidanceScale     float64 `json:"guidance_scale"`
	NumInferenceSteps int     `json:"num_inference_steps"`
}

type inferenceError struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}

func NewHuggingFaceClient(baseURL, apiKey string, httpClient *http.Client) *HuggingFaceClient {
	if baseURL == "" {
		baseURL = DefaultHuggingFaceURL
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 120 * time.Second,
		}
	}
	return &HuggingFaceClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: httpClient,
	}
}

// Configured reports whether an API token is present.
func (c *HuggingFaceClient) Configured() bool {
	return c != nil && c.apiKey != ""
}

// TextToImage returns the generated image bytes and their mime type.
// Failures are returned as *UpstreamError attributed to provider.
func (c *HuggingFaceClient) TextToImage(ctx context.Context, provider, model, prompt string) ([]byte, string, error) {
	jsonData, err := json.Marshal(textToImageRequest{
		Inputs: prompt,
		Parameters: textToImageParameters{
			Width:             1024,
			Height:            1024,
			GuidanceScale:     7.5,
			NumInferenceSteps: 30,
		},
	})
	if err != nil {
		return nil, "", Unavailable(provider, fmt.Errorf("failed to marshal request: %w", err))
	}

	url := c.baseURL + "/" + strings.TrimPrefix(model, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, "", Unavailable(provider, fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", Unavailable(provider, fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode == http.StatusOK && strings.HasPrefix(contentType, "image/") {
		data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
		if err != nil {
			return nil, "", Unavailable(provider, fmt.Errorf("failed to read image body: %w", err))
		}
		if len(data) > MaxImageBytes {
			return nil, "", Unavailable(provider, fmt.Errorf("image exceeds %d bytes", MaxImageBytes))
		}
		mimeType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
		return data, mimeType, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var apiErr inferenceError
	_ = json.Unmarshal(body, &apiErr)
	message := apiErr.Error
	if message == "" {
		message = fmt.Sprintf("HTTP %d: unexpected response (content-type %q)", resp.StatusCode, contentType)
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable && apiErr.EstimatedTime > 0:
		wait := time.Duration(math.Ceil(apiErr.EstimatedTime)) * time.Second
		return nil, "", RateLimited(provider, wait, fmt.Errorf("model is loading: %s", message))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, "", RateLimited(provider, parseRetryAfter(resp.Header.Get("Retry-After")), errors.New(message))
	default:
		return nil, "", Unavailable(provider, fmt.Errorf("status %d: %s", resp.StatusCode, message))
	}
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}
