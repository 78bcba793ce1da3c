package descriptor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const defaultServiceURL = "http://localhost:8000"

// ServiceClient talks to the face service over HTTP. The service exposes a
// multipart face detection endpoint and a JSON inference endpoint; it
// implements both FaceDetector and Model.
type ServiceClient struct {
	baseURL string
	client  *http.Client
}

// NewServiceClient creates a face service client. An empty baseURL falls
// back to the local development default.
func NewServiceClient(baseURL string, timeout time.Duration) *ServiceClient {
	if baseURL == "" {
		baseURL = defaultServiceURL
	}
	return &ServiceClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// detectResponse is the face detection payload returned by the service.
type detectResponse struct {
	FacesCount int     `json:"faces_count"`
	BBox       []int   `json:"bbox"` // [x, y, width, height] in pixels
	DetScore   float64 `json:"det_score"`
}

// inferRequest and inferResponse frame the inference endpoint.
type inferRequest struct {
	Input []float32 `json:"input"`
}

type inferResponse struct {
	Dim        int       `json:"dim"`
	Descriptor []float32 `json:"descriptor"`
	Model      string    `json:"model"`
}

// DetectFace posts the image to the detection endpoint and returns the
// single strongest face region. Returns ErrNoFaceDetected when the service
// reports no faces.
func (c *ServiceClient) DetectFace(ctx context.Context, img image.Image) (Rect, error) {
	var encoded bytes.Buffer
	if err := jpeg.Encode(&encoded, img, &jpeg.Options{Quality: 90}); err != nil {
		return Rect{}, fmt.Errorf("failed to encode image: %w", err)
	}

	body, err := c.postMultipartImage(ctx, "/detect/face", encoded.Bytes())
	if err != nil {
		return Rect{}, err
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Rect{}, fmt.Errorf("failed to parse detection response: %w", err)
	}

	if resp.FacesCount == 0 || len(resp.BBox) != 4 {
		return Rect{}, ErrNoFaceDetected
	}

	return Rect{
		X:      resp.BBox[0],
		Y:      resp.BBox[1],
		Width:  resp.BBox[2],
		Height: resp.BBox[3],
	}, nil
}

// Infer sends the normalized buffer to the inference endpoint.
func (c *ServiceClient) Infer(ctx context.Context, normalized []float32) ([]float32, error) {
	reqBody, err := json.Marshal(inferRequest{Input: normalized})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/infer", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("face service error (status %d): %s", resp.StatusCode, string(body))
	}

	var infResp inferResponse
	if err := json.Unmarshal(body, &infResp); err != nil {
		return nil, fmt.Errorf("failed to parse inference response: %w", err)
	}

	if len(infResp.Descriptor) == 0 {
		return nil, fmt.Errorf("empty descriptor returned")
	}

	return infResp.Descriptor, nil
}

// postMultipartImage constructs a multipart form with the image data and
// posts it to the given endpoint.
func (c *ServiceClient) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("face service error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}
