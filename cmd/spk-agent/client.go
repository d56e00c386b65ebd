package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// APIClient talks to a running agent's control plane.
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient creates a client; empty baseURL targets the default local
// listener.
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:5111/api"
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// IsReachable checks whether an agent is listening.
func (c *APIClient) IsReachable() bool {
	resp, err := c.client.Get(c.baseURL + "/status")
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode != http.StatusNotFound
}

func (c *APIClient) get(path string, out any) error {
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return decodeResponse(resp, out)
}

func (c *APIClient) post(path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	resp, err := c.client.Post(c.baseURL+path, "application/json", &buf)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API error: status %d", resp.StatusCode)
		}
		return fmt.Errorf("API error: %s", errorResp.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetStatus fetches the node status summary.
func (c *APIClient) GetStatus() (map[string]any, error) {
	var out map[string]any
	if err := c.get("/status", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPins lists the recursively pinned CIDs.
func (c *APIClient) GetPins() ([]map[string]any, error) {
	var out []map[string]any
	if err := c.get("/pins", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Pin pins a CID on the supervised node.
func (c *APIClient) Pin(cid, name string) error {
	return c.post("/pin", map[string]string{"cid": cid, "name": name}, nil)
}

// Unpin removes a pin from the supervised node.
func (c *APIClient) Unpin(cid string) error {
	return c.post("/unpin", map[string]string{"cid": cid}, nil)
}

// GetEarnings fetches the earnings summary.
func (c *APIClient) GetEarnings() (map[string]any, error) {
	var out map[string]any
	if err := c.get("/earnings", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Challenge asks the agent to answer a storage-proof challenge.
func (c *APIClient) Challenge(cid, salt string, indices []uint64) (map[string]any, error) {
	var out map[string]any
	err := c.post("/challenge", map[string]any{
		"cid":           cid,
		"salt":          salt,
		"block_indices": indices,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}
