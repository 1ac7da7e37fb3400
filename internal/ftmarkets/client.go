package ftmarkets

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"ftmarkets/internal/config"
)

// Client is the transport layer for markets.ft.com. A single Client is
// long-lived and reused for connection pooling; it holds no
// request-specific state.
type Client struct {
	http *resty.Client
	log  *logrus.Logger
}

// retryableStatus lists the transient HTTP statuses that warrant an
// automatic retry of an idempotent request.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// NewClient creates a new markets.ft.com client with the configured
// timeout, default headers and bounded exponential-backoff retry.
func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)
	client.SetHeaders(map[string]string{
		"User-Agent": cfg.UserAgent,
		"Accept":     cfg.Accept,
		"Referer":    cfg.Referer,
	})

	client.SetRetryCount(cfg.MaxRetries)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(30 * time.Second)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		// Only idempotent requests are retried.
		if r.Request.Method != http.MethodGet {
			return false
		}
		if err != nil {
			return true
		}
		return retryableStatus[r.StatusCode()]
	})

	return &Client{
		http: client,
		log:  logger,
	}
}

// Get issues a GET request and returns an error on transport failure or
// any non-2xx status after retries are exhausted.
func (c *Client) Get(ctx context.Context, path string, params map[string]string) (*resty.Response, error) {
	c.log.WithFields(logrus.Fields{"path": path, "params": params}).Debug("GET")

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("GET %s: HTTP %d", path, resp.StatusCode())
	}

	return resp, nil
}

// Post issues a JSON POST request and returns an error on transport
// failure or any non-2xx status.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*resty.Response, error) {
	c.log.WithField("path", path).Debug("POST")

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("POST %s: HTTP %d", path, resp.StatusCode())
	}

	return resp, nil
}

// finalURL reports the URL the request ended up at after redirects,
// which is how a search that lands directly on a tearsheet page is
// recognized.
func finalURL(resp *resty.Response) string {
	if resp.RawResponse != nil && resp.RawResponse.Request != nil && resp.RawResponse.Request.URL != nil {
		return resp.RawResponse.Request.URL.String()
	}
	return resp.Request.URL
}
