package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"aerorelay-service/internal/domain/entity"
	"aerorelay-service/internal/domain/repository"
	"aerorelay-service/pkg/logger"
	"aerorelay-service/pkg/metrics"
	"aerorelay-service/pkg/utils"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

// historicalAfter is how far in the past a departure must be before the
// historical endpoint is used
const historicalAfter = 24 * time.Hour

const maxErrorBody = 512

// CiriumConfig configures the FlightStats flex API client
type CiriumConfig struct {
	BaseURL        string
	AppID          string
	AppKey         string
	RequestTimeout time.Duration
	MaxRetries     uint64
	RetryBase      time.Duration
	RPS            float64
}

// CiriumClient fetches flight statuses from the Cirium FlightStats API
type CiriumClient struct {
	cfg     CiriumConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewCiriumClient creates a new flight status client
func NewCiriumClient(cfg CiriumConfig, httpClient *http.Client, logger logger.Logger, m *metrics.Metrics) repository.FlightStatusRepository {
	return newCiriumClient(cfg, httpClient, logger, m)
}

func newCiriumClient(cfg CiriumConfig, httpClient *http.Client, logger logger.Logger, m *metrics.Metrics) *CiriumClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}

	limit := rate.Inf
	burst := 1
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
		burst = int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
	}

	return &CiriumClient{
		cfg:     cfg,
		client:  httpClient,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// FetchStatus returns the raw status document for a flight departing on the given day
func (c *CiriumClient) FetchStatus(ctx context.Context, carrier, flightNumber string, departure time.Time) (*entity.UpstreamPayload, error) {
	variant := entity.VariantLive
	if c.now().Sub(departure) > historicalAfter {
		variant = entity.VariantHistorical
	}
	endpoint := c.statusURL(variant, carrier, flightNumber, departure)

	var body []byte
	attempt := 0
	backoff := retry.WithMaxRetries(c.cfg.MaxRetries, retry.NewExponential(c.cfg.RetryBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			c.metrics.UpstreamRetries.Inc()
			c.logger.Debug("Retrying flight status request",
				"carrier", carrier,
				"flightNumber", flightNumber,
				"attempt", attempt)
		}

		b, err := c.do(ctx, variant, endpoint)
		if err != nil {
			if retryable(ctx, err) {
				return retry.RetryableError(err)
			}
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch status %s%s: %w", carrier, flightNumber, err)
	}

	return &entity.UpstreamPayload{
		Carrier:      carrier,
		FlightNumber: flightNumber,
		Departure:    departure,
		Variant:      variant,
		Body:         body,
		FetchedAt:    c.now().UTC(),
	}, nil
}

// do performs a single attempt bounded by the per-request timeout
func (c *CiriumClient) do(ctx context.Context, variant, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	c.metrics.UpstreamDuration.WithLabelValues(variant).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues(variant, "transport").Inc()
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	c.metrics.UpstreamRequests.WithLabelValues(variant, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &repository.UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       utils.Truncate(strings.TrimSpace(string(body)), maxErrorBody),
		}
	}
	return body, nil
}

func (c *CiriumClient) statusURL(variant, carrier, flightNumber string, departure time.Time) string {
	dep := departure.UTC()
	query := url.Values{}
	query.Set("appId", c.cfg.AppID)
	query.Set("appKey", c.cfg.AppKey)

	prefix := "/flightstatus/rest/v2/json/flight/status"
	if variant == entity.VariantHistorical {
		prefix = "/flightstatus/historical/rest/v3/json/flight/status"
		query.Set("extendedOptions", "useHttpErrors")
	} else {
		query.Set("utc", "true")
	}

	return fmt.Sprintf("%s%s/%s/%s/dep/%d/%d/%d?%s",
		strings.TrimRight(c.cfg.BaseURL, "/"),
		prefix,
		url.PathEscape(carrier),
		url.PathEscape(flightNumber),
		dep.Year(), int(dep.Month()), dep.Day(),
		query.Encode())
}

// retryable reports whether a failed attempt may succeed when repeated.
// Cancellation of the caller's context is final.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var upstream *repository.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
