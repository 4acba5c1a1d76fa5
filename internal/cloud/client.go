package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-appliances/internal/appliance"
	"github.com/nerrad567/gray-logic-appliances/internal/infrastructure/config"
)

const (
	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 8 << 20

	// maxErrorBody is how much of an error response is kept for the message.
	maxErrorBody = 256
)

// Client is the vendor API transport. It holds no state besides the
// credentials and is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	language   string
	httpClient *http.Client
}

// NewClient creates a client for cfg. A nil httpClient gets a default
// one with cfg.Timeout applied.
func NewClient(cfg config.CloudConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.AccessToken,
		language:   cfg.Language,
		httpClient: httpClient,
	}
}

// Close closes idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// FetchDevices returns every appliance on the account. Records that fail
// to parse are returned in skipped rather than failing the whole fetch.
func (c *Client) FetchDevices(ctx context.Context) (records []appliance.Record, skipped map[string]error, err error) {
	q := url.Values{}
	if c.language != "" {
		q.Set("language", c.language)
	}
	path := "/devices"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching devices: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, fmt.Errorf("reading device list: %w", err)
	}
	return appliance.ParseDevices(data)
}

// SendAction PUTs body to the device's action endpoint. A 2xx response
// means the cloud accepted it, not that the appliance has acted yet.
func (c *Client) SendAction(ctx context.Context, deviceID string, body map[string]any) error {
	if deviceID == "" {
		return ErrInvalidDeviceID
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding action: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPut, "/devices/"+url.PathEscape(deviceID)+"/actions", payload)
	if err != nil {
		return fmt.Errorf("sending action to %s: %w", deviceID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	return nil
}

// do performs the request and turns non-2xx responses into errors. The
// caller closes the body on success.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(snippet))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnauthorized, resp.StatusCode, msg)
	default:
		return nil, fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, msg)
	}
}
