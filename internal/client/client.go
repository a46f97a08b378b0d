// Package client talks to the SealKeeper HTTP API.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Sentinels matched by *APIError through errors.Is.
var (
	ErrEmptySecret = errors.New("secret must not be empty")
	ErrRecoverable = errors.New("record is in backup only; recover it with the secret")
	ErrMismatch    = errors.New("verification failed")
	ErrCorrupt     = errors.New("backup is corrupt and was removed")
	ErrNoBackup    = errors.New("no backup available")
)

var codeSentinels = map[int]error{
	1: ErrRecoverable,
	2: ErrMismatch,
	3: ErrCorrupt,
	4: ErrNoBackup,
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Is matches the sentinel associated with the error code.
func (e *APIError) Is(target error) bool {
	sentinel, ok := codeSentinels[e.Code]
	return ok && sentinel == target
}

// RecoverResult is the body of a successful recover call.
type RecoverResult struct {
	Data    string `json:"data"`
	Outcome string `json:"outcome"`
}

// Client is a SealKeeper API client.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for baseURL. A nil httpClient uses http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// NewHTTPClient builds an HTTP client with the given timeout. When caFile is
// set, server certificates are verified against it only.
func NewHTTPClient(caFile string, timeout time.Duration) (*http.Client, error) {
	c := &http.Client{Timeout: timeout}
	if caFile == "" {
		return c, nil
	}

	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to parse CA cert")
	}
	c.Transport = &http.Transport{TLSClientConfig: &tls.Config{RootCAs: caPool, MinVersion: tls.VersionTLS12}}
	return c, nil
}

// Read returns the record data when it is loaded in memory.
func (c *Client) Read(ctx context.Context) (string, error) {
	var out struct {
		Data string `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/", nil, &out); err != nil {
		return "", err
	}
	return out.Data, nil
}

// Write stores data sealed with secret.
func (c *Client) Write(ctx context.Context, data, secret string) error {
	if secret == "" {
		return ErrEmptySecret
	}
	body := map[string]string{"data": data, "secret": secret}
	return c.do(ctx, http.MethodPost, "/", body, nil)
}

// Verify checks secret against the stored record. It returns the server
// message on success.
func (c *Client) Verify(ctx context.Context, secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/verify", map[string]string{"secret": secret}, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Recover asks the server to restore the record from its backup.
func (c *Client) Recover(ctx context.Context, secret string) (RecoverResult, error) {
	if secret == "" {
		return RecoverResult{}, ErrEmptySecret
	}
	var out RecoverResult
	if err := c.do(ctx, http.MethodPost, "/recover", map[string]string{"secret": secret}, &out); err != nil {
		return RecoverResult{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}

	var body struct {
		Code  int    `json:"code"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
