package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yegors/airspace-monitor/pkg/logger"
)

// maxBodyBytes caps a single download
const maxBodyBytes = 32 << 20

// ClientConfig tunes the HTTP client
type ClientConfig struct {
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string
}

// Client downloads network data files over HTTP
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *logger.Logger
	backoff    func(attempt int) time.Duration
}

// NewClient creates a feed client
func NewClient(config ClientConfig, log *logger.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 20 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.UserAgent == "" {
		config.UserAgent = "airspace-monitor"
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: log.Named("feed-client"),
		backoff: func(attempt int) time.Duration {
			return time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
		},
	}
}

// Fetch downloads url, retrying with exponential backoff
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt)
			c.logger.Info("Retrying feed download",
				logger.String("url", url),
				logger.Int("attempt", attempt),
				logger.Duration("backoff", wait))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		body, err := c.fetchOnce(ctx, url)
		if err == nil {
			if attempt > 0 {
				c.logger.Info("Fetched feed after retries",
					logger.String("url", url),
					logger.Int("attempts_needed", attempt+1))
			}
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		c.logger.Warn("Feed download failed, may retry",
			logger.String("url", url),
			logger.Error(err),
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", c.config.MaxRetries+1))
	}

	c.logger.Error("All attempts to fetch feed failed",
		logger.String("url", url),
		logger.Error(lastErr),
		logger.Int("max_attempts", c.config.MaxRetries+1))
	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
