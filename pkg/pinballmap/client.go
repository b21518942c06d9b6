package pinballmap

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the PinballMap API root
	DefaultBaseURL = "https://pinballmap.com/api/v1/"
	// DefaultGeocodingBaseURL is the open-meteo geocoding API root
	DefaultGeocodingBaseURL = "https://geocoding-api.open-meteo.com/v1/"

	maxRetries   = 3
	retryBackoff = 2 * time.Second
)

// Client talks to the PinballMap and geocoding APIs. All requests share one rate limiter.
type Client struct {
	HttpClient       *http.Client
	BaseURL          string
	GeocodingBaseURL string

	limiter *rate.Limiter
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewClient(httpClient *http.Client, baseURL, geocodingBaseURL string, ratePerSecond float64) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if geocodingBaseURL == "" {
		geocodingBaseURL = DefaultGeocodingBaseURL
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	burst := int(ratePerSecond)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		HttpClient:       httpClient,
		BaseURL:          baseURL,
		GeocodingBaseURL: geocodingBaseURL,
		limiter:          rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		now:              time.Now,
		sleep:            sleepContext,
	}
}

// getJSON performs a rate limited GET request and decodes the JSON response into target.
// 429 responses are retried with backoff.
func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values, target interface{}) error {
	requestURL := endpoint
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	for attempt := 0; ; attempt++ {
		err := c.limiter.Wait(ctx)
		if err != nil {
			return errors.Wrap(err, "failure waiting for rate limiter")
		}

		req, err := http.NewRequest(http.MethodGet, requestURL, nil)
		if err != nil {
			return errors.Wrap(err, "failure creating api request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.HttpClient.Do(req.WithContext(ctx))
		if err != nil {
			return errors.Wrap(err, "failure performing api request")
		}

		respData, err := ioutil.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return errors.Wrap(err, "failure reading api response body")
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt >= maxRetries {
				return errors.Wrapf(ErrRateLimited, "giving up after %d retries", attempt)
			}

			err = c.sleep(ctx, retryDelay(resp.Header.Get("Retry-After"), attempt))
			if err != nil {
				return errors.Wrap(err, "interrupted while backing off")
			}
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			return errors.Wrapf(ErrNotFound, "%s", requestURL)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &StatusError{StatusCode: resp.StatusCode, URL: requestURL, Body: string(respData)}
		}

		err = json.Unmarshal(respData, target)
		if err != nil {
			return errors.Wrap(err, "failure parsing api response body")
		}

		return nil
	}
}

func retryDelay(retryAfter string, attempt int) time.Duration {
	if retryAfter != "" {
		seconds, err := strconv.Atoi(retryAfter)
		if err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	return retryBackoff * time.Duration(1<<uint(attempt))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) endpoint(format string, args ...interface{}) string {
	return c.BaseURL + fmt.Sprintf(format, args...)
}
