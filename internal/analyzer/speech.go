package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/BerylCAtieno/unitydesk-api/internal/models"
	"github.com/BerylCAtieno/unitydesk-api/internal/utils"
)

// ErrSpeechDisabled is returned when no speech-to-text credentials are configured.
var ErrSpeechDisabled = errors.New("speech transcription is not configured")

type Transcriber interface {
	Transcribe(ctx context.Context, audio models.Media) (string, error)
}

type SpeechOptions struct {
	APIURL  string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// SpeechClient posts recordings to an OpenAI-compatible /audio/transcriptions endpoint.
type SpeechClient struct {
	opts   SpeechOptions
	logger *utils.Logger
	client *http.Client
}

// NewTranscriber returns a working client, or a disabled one when no key is configured.
func NewTranscriber(opts SpeechOptions, logger *utils.Logger) Transcriber {
	if opts.APIKey == "" {
		logger.Warn("Speech API key not set; voice recordings will not be transcribed")
		return disabledTranscriber{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &SpeechClient{
		opts:   opts,
		logger: logger,
		client: &http.Client{Timeout: opts.Timeout},
	}
}

type disabledTranscriber struct{}

func (disabledTranscriber) Transcribe(context.Context, models.Media) (string, error) {
	return "", ErrSpeechDisabled
}

func (s *SpeechClient) Transcribe(ctx context.Context, audio models.Media) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	filename := audio.Filename
	if filename == "" {
		filename = "recording" + audioExtension(audio.ContentType)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	contentType := audio.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	if err := writer.WriteField("model", s.opts.Model); err != nil {
		return "", fmt.Errorf("failed to write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.APIURL, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.opts.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		s.logger.Error("Speech API error", "status", resp.StatusCode, "body", string(respBody))
		return "", &APIError{StatusCode: resp.StatusCode}
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", fmt.Errorf("%w: empty transcript", ErrMalformedOutput)
	}
	return text, nil
}

func audioExtension(contentType string) string {
	switch {
	case strings.Contains(contentType, "webm"):
		return ".webm"
	case strings.Contains(contentType, "ogg"):
		return ".ogg"
	case strings.Contains(contentType, "wav"):
		return ".wav"
	case strings.Contains(contentType, "mp4"), strings.Contains(contentType, "m4a"):
		return ".m4a"
	default:
		return ".mp3"
	}
}
