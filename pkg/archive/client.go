package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	errs "isicfetch/pkg/errors"
	"isicfetch/pkg/logger"
)

// tokenHeader carries the opaque API credential on every request
const tokenHeader = "Girder-Token"

// Client performs single HTTP GET round trips against the archive API.
// It classifies failures into typed errors; retry policy is a caller decision.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	logger     logger.Logger
}

// NewClient creates a new archive API client
func NewClient(baseURL string, timeout time.Duration, log logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		headers: map[string]string{
			"Accept": "application/json",
		},
		logger: log,
	}
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken attaches an opaque API token to all subsequent requests
func (c *Client) SetToken(token string) {
	if token == "" {
		delete(c.headers, tokenHeader)
		return
	}
	c.headers[tokenHeader] = token
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, classifyTransportError(err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// classifyTransportError maps low-level transport failures to typed errors
func classifyTransportError(err error) error {
	errType := errs.ErrorTypeNetwork

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		errType = errs.ErrorTypeTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		errType = errs.ErrorTypeTimeout
	}

	return &errs.Error{
		Type:    errType,
		Message: fmt.Sprintf("request failed: %v", err),
		Code:    0,
	}
}

// Get performs a GET request to the specified URL
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
			Code:    0,
		}
	}

	return c.doRequest(req)
}

// GetJSON performs a GET request and decodes the JSON response
func (c *Client) GetJSON(ctx context.Context, url string, target interface{}) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errs.Error{
			Type:    errs.ErrorTypeDecode,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    resp.StatusCode,
		}
	}

	return nil
}

// checkResponseStatus checks the HTTP response status and returns typed errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		c.logger.WarnWithFields("authentication error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: "authentication required",
			Code:    resp.StatusCode,
		}
	case http.StatusNotFound:
		c.logger.WarnWithFields("resource not found", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeNotFound,
			Message: "resource not found",
			Code:    resp.StatusCode,
		}
	case http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeRateLimit,
			Message: "rate limit exceeded",
			Code:    resp.StatusCode,
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		c.logger.ErrorWithFields("server error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeServerError,
			Message: "server error",
			Code:    resp.StatusCode,
		}
	default:
		if resp.StatusCode >= 400 {
			c.logger.ErrorWithFields("unexpected API error", map[string]interface{}{
				"status": resp.StatusCode,
				"url":    resp.Request.URL.String(),
			})
			return &errs.Error{
				Type:    errs.ErrorTypeUnknown,
				Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
				Code:    resp.StatusCode,
			}
		}
		return nil
	}
}

// Login exchanges a username and password for an API token via the
// basic-auth authentication endpoint
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, AuthenticationURL(c.baseURL), nil)
	if err != nil {
		return "", &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
			Code:    0,
		}
	}
	req.SetBasicAuth(username, password)

	resp, err := c.doRequest(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return "", err
	}

	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", &errs.Error{
			Type:    errs.ErrorTypeDecode,
			Message: fmt.Sprintf("failed to parse login response: %v", err),
			Code:    resp.StatusCode,
		}
	}

	if auth.AuthToken.Token == "" {
		return "", &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: "login response did not contain a token",
			Code:    resp.StatusCode,
		}
	}

	c.logger.Info("API token acquired")
	return auth.AuthToken.Token, nil
}

// ListImages fetches one page of image metadata records
func (c *Client) ListImages(ctx context.Context, limit, offset int, datasetID string) ([]Image, error) {
	url := ListImagesURL(c.baseURL, limit, offset, datasetID)

	var images []Image
	if err := c.GetJSON(ctx, url, &images); err != nil {
		return nil, err
	}

	return images, nil
}

// GetImage fetches the full detail record for a single image
func (c *Client) GetImage(ctx context.Context, imageID string) (*Image, error) {
	var image Image
	if err := c.GetJSON(ctx, ImageURL(c.baseURL, imageID), &image); err != nil {
		return nil, err
	}
	return &image, nil
}

// ListDatasets fetches the datasets available in the archive
func (c *Client) ListDatasets(ctx context.Context, limit, offset int) ([]Dataset, error) {
	var datasets []Dataset
	if err := c.GetJSON(ctx, ListDatasetsURL(c.baseURL, limit, offset), &datasets); err != nil {
		return nil, err
	}
	return datasets, nil
}

// FetchImage opens a streaming GET against a resource URL. The caller is
// responsible for closing the returned body.
func (c *Client) FetchImage(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	if err := c.checkResponseStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return resp.Body, nil
}
