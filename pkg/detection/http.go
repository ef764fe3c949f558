package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

//HTTPDetector sends every frame (JPEG encoded) to an inference server and reads back its detections.
//The server answers POST <url> with {"detections":[{"class":..,"confidence":..,"box":{"xmin":..}}]}.
type HTTPDetector struct {
	url    string
	client *http.Client
}

func NewHTTPDetector(endpoint string, timeout time.Duration) *HTTPDetector {
	return &HTTPDetector{
		url:    endpoint,
		client: &http.Client{Timeout: timeout},
	}
}

//Detect posts one JPEG frame as multipart 'file'
func (h *HTTPDetector) Detect(ctx context.Context, jpeg []byte) ([]Detection, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, errors.Wrap(err, "create form file")
	}
	if _, err := io.Copy(part, bytes.NewReader(jpeg)); err != nil {
		return nil, errors.Wrap(err, "copy frame data")
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, body)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Detections []Detection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}

	return result.Detections, nil
}

//CheckHealth checks GET /health on the inference server's host
func (h *HTTPDetector) CheckHealth(ctx context.Context) error {
	u, err := url.Parse(h.url)
	if err != nil {
		return errors.Wrapf(err, "bad detector url '%s'", h.url)
	}
	u.Path, u.RawQuery = "/health", ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy: %d", resp.StatusCode)
	}
	return nil
}
