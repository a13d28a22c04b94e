package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mediamod/analysis-server/pkg/types"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	retryBase          = 250 * time.Millisecond
	retryMax           = 2
)

// RemoteDetector talks to an object-detection inference sidecar over HTTP.
// The sidecar accepts a multipart POST of the frame on /detect and answers
// with a JSON detection list.
type RemoteDetector struct {
	baseURL string
	client  *http.Client
}

// NewRemoteDetector creates a detector client for the sidecar at baseURL.
func NewRemoteDetector(baseURL string) *RemoteDetector {
	return &RemoteDetector{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

type detectResponse struct {
	Detections []types.Detection `json:"detections"`
}

// Detect implements ObjectDetector.
func (d *RemoteDetector) Detect(ctx context.Context, imagePath string) ([]types.Detection, error) {
	body, err := postFile(ctx, d.client, d.baseURL+"/detect", "frame", imagePath)
	if err != nil {
		return nil, err
	}

	var parsed detectResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode detect response: %w", err)
	}
	return parsed.Detections, nil
}

// Probe implements Prober.
func (d *RemoteDetector) Probe(ctx context.Context) error {
	return probe(ctx, d.client, d.baseURL)
}

// RemoteRecognizer talks to a speech-to-text inference sidecar over HTTP.
// The sidecar accepts a multipart POST of the clip on /transcribe and
// answers with text, segments and language.
type RemoteRecognizer struct {
	baseURL string
	client  *http.Client
}

// NewRemoteRecognizer creates a recognizer client for the sidecar at baseURL.
func NewRemoteRecognizer(baseURL string) *RemoteRecognizer {
	return &RemoteRecognizer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// Transcribe implements SpeechRecognizer.
func (r *RemoteRecognizer) Transcribe(ctx context.Context, audioPath string) (RawTranscript, error) {
	body, err := postFile(ctx, r.client, r.baseURL+"/transcribe", "audio", audioPath)
	if err != nil {
		return RawTranscript{}, err
	}

	var parsed RawTranscript
	if err := json.Unmarshal(body, &parsed); err != nil {
		return RawTranscript{}, fmt.Errorf("decode transcribe response: %w", err)
	}
	return parsed, nil
}

// Probe implements Prober.
func (r *RemoteRecognizer) Probe(ctx context.Context) error {
	return probe(ctx, r.client, r.baseURL)
}

// postFile uploads the file at path as a multipart POST and returns the
// response body. Transient failures (network errors, 5xx) are retried with
// capped exponential backoff; 4xx responses fail immediately.
func postFile(ctx context.Context, client *http.Client, url, field, path string) ([]byte, error) {
	var result []byte

	b := retry.NewExponential(retryBase)
	err := retry.Do(ctx, retry.WithMaxRetries(retryMax, b), func(ctx context.Context) error {
		body, contentType, err := buildUploadForm(field, path)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("backend http %d: %s", resp.StatusCode, data))
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("backend http %d: %s", resp.StatusCode, data)
		}

		result = data
		return nil
	})
	return result, err
}

func buildUploadForm(field, path string) (*bytes.Buffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}

	return &buf, mw.FormDataContentType(), nil
}

func probe(ctx context.Context, client *http.Client, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend health check returned %d", resp.StatusCode)
	}
	return nil
}
