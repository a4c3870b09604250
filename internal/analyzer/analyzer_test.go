package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BerylCAtieno/unitydesk-api/internal/models"
	"github.com/BerylCAtieno/unitydesk-api/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = MustSchema("test", `{
  "type": "object",
  "required": ["issue", "score"],
  "properties": {
    "issue": {"type": "string"},
    "score": {"type": "integer", "minimum": 1, "maximum": 10},
    "note": {"type": ["string", "null"]}
  }
}`)

type testAnswer struct {
	Issue string  `json:"issue"`
	Score int     `json:"score"`
	Note  *string `json:"note"`
}

func chatServer(t *testing.T, status int, content string, inspect func(req chatRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &req))
		if inspect != nil {
			inspect(req)
		}

		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"upstream down"}}`))
			return
		}
		resp := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(url string) *Client {
	return NewClient(Options{APIURL: url, APIKey: "test-key", Model: "text-model", VisionModel: "vision-model"}, utils.NewNopLogger())
}

func TestCompleteJSON_StripsFencesAndUndefined(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "```json\n{\"issue\": \"pothole\", \"score\": 7, \"note\": undefined}\n```", func(req chatRequest) {
		assert.Equal(t, "text-model", req.Model)
		if assert.NotNil(t, req.ResponseFormat) {
			assert.Equal(t, "json_object", req.ResponseFormat.Type)
		}
	})
	defer srv.Close()

	var out testAnswer
	err := newTestClient(srv.URL).CompleteJSON(context.Background(), "prompt", testSchema, &out)
	require.NoError(t, err)
	assert.Equal(t, "pothole", out.Issue)
	assert.Equal(t, 7, out.Score)
	assert.Nil(t, out.Note)
}

func TestCompleteJSON_SchemaViolation(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"issue": "pothole", "score": 42}`, nil)
	defer srv.Close()

	var out testAnswer
	err := newTestClient(srv.URL).CompleteJSON(context.Background(), "prompt", testSchema, &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedOutput))
}

func TestCompleteJSON_NotJSON(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "Sure! The issue is a pothole.", nil)
	defer srv.Close()

	var out testAnswer
	err := newTestClient(srv.URL).CompleteJSON(context.Background(), "prompt", testSchema, &out)
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestCompleteJSON_APIError(t *testing.T) {
	srv := chatServer(t, http.StatusBadGateway, "", nil)
	defer srv.Close()

	var out testAnswer
	err := newTestClient(srv.URL).CompleteJSON(context.Background(), "prompt", testSchema, &out)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestDescribeImage_SendsImagePart(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "  A large pothole filled with water.  ", func(req chatRequest) {
		assert.Equal(t, "vision-model", req.Model)
		assert.Nil(t, req.ResponseFormat)

		raw, _ := json.Marshal(req.Messages[0].Content)
		assert.Contains(t, string(raw), `"type":"image_url"`)
		assert.Contains(t, string(raw), "data:image/jpeg;base64,")
	})
	defer srv.Close()

	desc, err := newTestClient(srv.URL).DescribeImage(context.Background(), models.Media{Data: []byte("jpeg"), ContentType: "image/jpeg"})
	require.NoError(t, err)
	assert.Equal(t, "A large pothole filled with water.", desc)
}

func TestCheckImage(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"isValid": false}`, nil)
	defer srv.Close()

	check, err := newTestClient(srv.URL).CheckImage(context.Background(), models.Media{Data: []byte("png"), ContentType: "image/png"})
	require.NoError(t, err)
	assert.False(t, check.IsValid)
	assert.NotEmpty(t, check.Message)
}

func TestParseStructured_PlainJSON(t *testing.T) {
	var out testAnswer
	require.NoError(t, ParseStructured(`{"issue":"garbage","score":3}`, testSchema, &out))
	assert.Equal(t, "garbage", out.Issue)
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		assert.True(t, strings.HasSuffix(header.Filename, ".webm"))

		data, _ := io.ReadAll(file)
		assert.Equal(t, "audio-bytes", string(data))

		_, _ = w.Write([]byte(`{"text":" Garbage has not been collected for a week. "}`))
	}))
	defer srv.Close()

	tr := NewTranscriber(SpeechOptions{APIURL: srv.URL, APIKey: "k", Model: "whisper-1"}, utils.NewNopLogger())
	text, err := tr.Transcribe(context.Background(), models.Media{Data: []byte("audio-bytes"), ContentType: "audio/webm"})
	require.NoError(t, err)
	assert.Equal(t, "Garbage has not been collected for a week.", text)
}

func TestTranscribe_Disabled(t *testing.T) {
	tr := NewTranscriber(SpeechOptions{}, utils.NewNopLogger())
	_, err := tr.Transcribe(context.Background(), models.Media{Data: []byte("x")})
	assert.ErrorIs(t, err, ErrSpeechDisabled)
}
