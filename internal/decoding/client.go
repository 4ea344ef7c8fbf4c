package decoding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cgm-bridge/cgm-bridge-server/internal/config"
	"github.com/cgm-bridge/cgm-bridge-server/pkg/nfc"
)

// Client calls the out-of-process decoding service for encrypted sensor
// memory. The service exposes three endpoints under one base URL: auth
// and data take the tag authentication payload, decode takes the
// encrypted image together with the session material the first two
// handed back. Callers treat failures as non-fatal: the encrypted
// payload is kept either way.
type Client struct {
	config     config.DecoderConfig
	httpClient *http.Client
}

// NewClient creates a decoding service client
func NewClient(cfg config.DecoderConfig) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type serviceResponse struct {
	Data  []byte `json:"data"`
	P1    int    `json:"p1"`
	Error string `json:"error,omitempty"`
}

// Authorize posts the tag authentication payload to the auth endpoint
// and the data endpoint. The session parameter comes from the former,
// the command bytes from the latter.
func (c *Client) Authorize(ctx context.Context, req nfc.AuthRequest) (*nfc.AuthResponse, error) {
	auth, err := c.post(ctx, "/auth", req)
	if err != nil {
		return nil, fmt.Errorf("auth endpoint: %w", err)
	}

	data, err := c.post(ctx, "/data", req)
	if err != nil {
		return nil, fmt.Errorf("data endpoint: %w", err)
	}

	return &nfc.AuthResponse{P1: auth.P1, Data: data.Data}, nil
}

// Decode sends one payload to the decode endpoint and returns the
// decrypted memory image.
func (c *Client) Decode(ctx context.Context, req nfc.DecodeRequest) ([]byte, error) {
	resp, err := c.post(ctx, "/decode", req)
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("decode service returned no data")
	}

	return resp.Data, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (*serviceResponse, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(c.config.URL, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("decoding service request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("decoding service returned status %d", resp.StatusCode)
	}

	var out serviceResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if out.Error != "" {
		return nil, fmt.Errorf("decoding service: %s", out.Error)
	}

	return &out, nil
}
