package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/triplehelix/pkg/models"
)

// Client talks to the remote content API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a content API client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// FetchStitch loads one stitch by id.
func (c *Client) FetchStitch(ctx context.Context, id string) (*models.StitchContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stitches/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("content API request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("stitch %s not found", id)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("content API returned status %d", resp.StatusCode)
	}

	var content models.StitchContent
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		return nil, fmt.Errorf("failed to decode stitch: %v", err)
	}
	return &content, nil
}

type batchRequest struct {
	IDs []string `json:"ids"`
}

// FetchBatch loads several stitches in one round trip. Ids the server
// doesn't know are absent from the result, not errors.
func (c *Client) FetchBatch(ctx context.Context, ids []string) (map[string]models.StitchContent, error) {
	body, err := json.Marshal(batchRequest{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch request: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/stitches/batch", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("content API request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("content API returned status %d", resp.StatusCode)
	}

	var batch map[string]models.StitchContent
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %v", err)
	}
	return batch, nil
}

// FetchManifest loads the ordered stitch-id lists per tube.
func (c *Client) FetchManifest(ctx context.Context) (models.Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/manifest", nil)
	if err != nil {
		return models.Manifest{}, fmt.Errorf("failed to build request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Manifest{}, fmt.Errorf("content API request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Manifest{}, fmt.Errorf("content API returned status %d", resp.StatusCode)
	}

	var manifest models.Manifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return models.Manifest{}, fmt.Errorf("failed to decode manifest: %v", err)
	}
	return manifest, nil
}
