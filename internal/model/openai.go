package model

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const (
	openaiDefaultBaseURL = "https://api.openai.com/v1"
	defaultVisionModel   = "gpt-4o"
	defaultImageModel    = "gpt-image-1"

	// The images/edits call is the slowest external call in the pipeline.
	imageEditTimeout = 3 * time.Minute
)

// ErrImageEditTimeout marks an image edit that exceeded its deadline. It is
// distinct from generic failures so callers and step retries can tell the
// two apart.
var ErrImageEditTimeout = errors.New("image edit timed out")

// ImageCandidate is a downloaded source-image buffer under consideration.
type ImageCandidate struct {
	URL      string
	Data     []byte
	MIMEType string
}

// ImageSelection is the structured verdict of the vision-selection call.
type ImageSelection struct {
	SelectedIndex      int    `json:"selectedIndex"`
	Reason             string `json:"reason"`
	SubjectDescription string `json:"subjectDescription"`
	ColorTarget        string `json:"colorTarget"`
}

// SEOResult is one site's rewritten metadata package.
type SEOResult struct {
	MetaTitle       string `json:"metatitle"`
	MetaDescription string `json:"metadescription"`
	Keyword         string `json:"keyword"`
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithOpenAIBaseURL sets a custom base URL for the API endpoint.
// Useful for testing with httptest.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(o *OpenAIClient) {
		o.baseURL = url
	}
}

// WithVisionModel overrides the vision/SEO chat model.
func WithVisionModel(model string) OpenAIOption {
	return func(o *OpenAIClient) {
		o.visionModel = model
	}
}

// WithImageEditTimeout overrides the images/edits deadline.
func WithImageEditTimeout(d time.Duration) OpenAIOption {
	return func(o *OpenAIClient) {
		o.editTimeout = d
	}
}

// OpenAIClient calls the OpenAI chat-completions and images/edits APIs.
type OpenAIClient struct {
	apiKey      string
	baseURL     string
	visionModel string
	imageModel  string
	editTimeout time.Duration
	client      *http.Client
}

// NewOpenAIClient creates an OpenAIClient with the given API key and options.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	o := &OpenAIClient{
		apiKey:      apiKey,
		baseURL:     openaiDefaultBaseURL,
		visionModel: defaultVisionModel,
		imageModel:  defaultImageModel,
		editTimeout: imageEditTimeout,
		client:      &http.Client{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// contentPart is one element of a multi-part user message (text or image).
type contentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// SelectImage sends the candidate buffers as data URIs to the vision model
// and returns its structured selection. The caller is responsible for
// clamping SelectedIndex into range.
func (o *OpenAIClient) SelectImage(ctx context.Context, candidates []ImageCandidate, system, user string) (*ImageSelection, error) {
	parts := []contentPart{{Type: "text", Text: user}}
	for _, c := range candidates {
		dataURI := fmt.Sprintf("data:%s;base64,%s", c.MIMEType, base64.StdEncoding.EncodeToString(c.Data))
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &chatImageURL{URL: dataURI, Detail: "auto"},
		})
	}

	text, err := o.chatJSON(ctx, system, parts)
	if err != nil {
		return nil, err
	}

	var sel ImageSelection
	if err := json.Unmarshal([]byte(text), &sel); err != nil {
		return nil, fmt.Errorf("parse selection response: %w", err)
	}
	return &sel, nil
}

// RewriteSEO asks the model for a unique per-site metadata package.
func (o *OpenAIClient) RewriteSEO(ctx context.Context, system, user string) (*SEOResult, error) {
	text, err := o.chatJSON(ctx, system, []contentPart{{Type: "text", Text: user}})
	if err != nil {
		return nil, err
	}

	var seo SEOResult
	if err := json.Unmarshal([]byte(text), &seo); err != nil {
		return nil, fmt.Errorf("parse SEO response: %w", err)
	}
	return &seo, nil
}

// chatJSON performs a chat completion constrained to a JSON object response
// and returns the raw message content.
func (o *OpenAIClient) chatJSON(ctx context.Context, system string, parts []contentPart) (string, error) {
	body := chatRequest{
		Model: o.visionModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: parts},
		},
		ResponseFormat: map[string]any{"type": "json_object"},
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return apiResp.Choices[0].Message.Content, nil
}

type imageEditResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// EditImage submits the image buffer and prompt to the images/edits
// endpoint and returns the edited image bytes. A deadline overrun surfaces
// as ErrImageEditTimeout rather than a generic failure.
func (o *OpenAIClient) EditImage(ctx context.Context, image []byte, mimeType, prompt string) ([]byte, error) {
	editCtx, cancel := context.WithTimeout(ctx, o.editTimeout)
	defer cancel()

	ext := "jpg"
	if mimeType == "image/png" {
		ext = "png"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", "image."+ext)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("write image part: %w", err)
	}
	writer.WriteField("prompt", prompt)
	writer.WriteField("model", o.imageModel)
	writer.WriteField("n", "1")
	writer.WriteField("size", "1536x1024")
	writer.WriteField("quality", "high")
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(editCtx, "POST", o.baseURL+"/images/edits", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		if editCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w after %s", ErrImageEditTimeout, o.editTimeout)
		}
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai image edit failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp imageEditResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) == 0 || apiResp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("openai image edit returned no data")
	}

	edited, err := base64.StdEncoding.DecodeString(apiResp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image base64: %w", err)
	}
	return edited, nil
}
