package model

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatReply(content any) string {
	raw, _ := json.Marshal(content)
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": string(raw)}},
		},
	}
	out, _ := json.Marshal(resp)
	return string(out)
}

func TestSelectImage(t *testing.T) {
	var gotReq chatRequest
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		fmt.Fprint(w, chatReply(ImageSelection{
			SelectedIndex:      1,
			Reason:             "sharpest subject",
			SubjectDescription: "a trading floor",
			ColorTarget:        "the ticker board",
		}))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", WithOpenAIBaseURL(server.URL))
	candidates := []ImageCandidate{
		{URL: "https://img.example/a.jpg", Data: []byte("aaa"), MIMEType: "image/jpeg"},
		{URL: "https://img.example/b.png", Data: []byte("bbb"), MIMEType: "image/png"},
	}

	sel, err := client.SelectImage(context.Background(), candidates, "pick one", "here are the images")
	require.NoError(t, err)
	assert.Equal(t, 1, sel.SelectedIndex)
	assert.Equal(t, "a trading floor", sel.SubjectDescription)
	assert.Equal(t, "the ticker board", sel.ColorTarget)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, map[string]any{"type": "json_object"}, gotReq.ResponseFormat)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)

	// The user message carries one text part plus one data URI per candidate.
	parts, ok := gotReq.Messages[1].Content.([]any)
	require.True(t, ok, "user content should be a part list")
	require.Len(t, parts, 3)
	img1 := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	assert.True(t, strings.HasPrefix(img1, "data:image/jpeg;base64,"), "got %q", img1)
	img2 := parts[2].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	assert.True(t, strings.HasPrefix(img2, "data:image/png;base64,"), "got %q", img2)
}

func TestSelectImage_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"not json at all"}}]}`)
	}))
	defer server.Close()

	client := NewOpenAIClient("k", WithOpenAIBaseURL(server.URL))
	_, err := client.SelectImage(context.Background(), nil, "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse selection response")
}

func TestRewriteSEO(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReply(SEOResult{
			MetaTitle:       "Fed Cuts Rates Again",
			MetaDescription: "The central bank moved.",
			Keyword:         "fed rates",
		}))
	}))
	defer server.Close()

	client := NewOpenAIClient("k", WithOpenAIBaseURL(server.URL))
	seo, err := client.RewriteSEO(context.Background(), "rewrite", "the article")
	require.NoError(t, err)
	assert.Equal(t, "Fed Cuts Rates Again", seo.MetaTitle)
	assert.Equal(t, "fed rates", seo.Keyword)
}

func TestRewriteSEO_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer server.Close()

	client := NewOpenAIClient("k", WithOpenAIBaseURL(server.URL))
	_, err := client.RewriteSEO(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestEditImage(t *testing.T) {
	edited := []byte("edited-image-bytes")

	var gotPrompt, gotModel, gotSize, gotFileName string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/images/edits", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotPrompt = r.FormValue("prompt")
		gotModel = r.FormValue("model")
		gotSize = r.FormValue("size")
		if fhs := r.MultipartForm.File["image"]; len(fhs) > 0 {
			gotFileName = fhs[0].Filename
		}

		fmt.Fprintf(w, `{"data":[{"b64_json":%q}]}`, base64.StdEncoding.EncodeToString(edited))
	}))
	defer server.Close()

	client := NewOpenAIClient("k", WithOpenAIBaseURL(server.URL))
	out, err := client.EditImage(context.Background(), []byte("source"), "image/png", "make the sign green")
	require.NoError(t, err)
	assert.Equal(t, edited, out)

	assert.Equal(t, "make the sign green", gotPrompt)
	assert.Equal(t, defaultImageModel, gotModel)
	assert.Equal(t, "1536x1024", gotSize)
	assert.Equal(t, "image.png", gotFileName)
}

func TestEditImage_JPEGFileName(t *testing.T) {
	var gotFileName string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		if fhs := r.MultipartForm.File["image"]; len(fhs) > 0 {
			gotFileName = fhs[0].Filename
		}
		fmt.Fprintf(w, `{"data":[{"b64_json":%q}]}`, base64.StdEncoding.EncodeToString([]byte("x")))
	}))
	defer server.Close()

	client := NewOpenAIClient("k", WithOpenAIBaseURL(server.URL))
	_, err := client.EditImage(context.Background(), []byte("source"), "image/jpeg", "p")
	require.NoError(t, err)
	assert.Equal(t, "image.jpg", gotFileName)
}

func TestEditImage_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"invalid image"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("k", WithOpenAIBaseURL(server.URL))
	_, err := client.EditImage(context.Background(), []byte("source"), "image/jpeg", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestEditImage_DeadlineSurfacesTimeoutError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer server.Close()
	defer close(release)

	client := NewOpenAIClient("k", WithOpenAIBaseURL(server.URL), WithImageEditTimeout(20*time.Millisecond))
	_, err := client.EditImage(context.Background(), []byte("source"), "image/jpeg", "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImageEditTimeout)
}

func TestEditImage_EmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer server.Close()

	client := NewOpenAIClient("k", WithOpenAIBaseURL(server.URL))
	_, err := client.EditImage(context.Background(), []byte("source"), "image/jpeg", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data")
}
