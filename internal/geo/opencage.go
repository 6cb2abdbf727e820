package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// lookupTimeout bounds a shared lookup, which outlives the caller that
// started it.
const lookupTimeout = 10 * time.Second

// OpenCageClient talks to an OpenCage-compatible forward geocoding API.
// Outbound calls are rate limited and identical concurrent lookups share a
// single request. Each caller waits on the shared request only as long as its
// own context allows.
type OpenCageClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	group   singleflight.Group
	timeout time.Duration
	logger  *zap.Logger
}

// NewOpenCageClient builds a client. rps <= 0 disables the rate limit.
func NewOpenCageClient(baseURL, apiKey string, rps float64, logger *zap.Logger) *OpenCageClient {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &OpenCageClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
		timeout: lookupTimeout,
		logger:  logger,
	}
}

type openCageResponse struct {
	Status struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
	Results []struct {
		Formatted string `json:"formatted"`
		Geometry  struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"geometry"`
		Annotations struct {
			Timezone struct {
				Name string `json:"name"`
			} `json:"timezone"`
		} `json:"annotations"`
	} `json:"results"`
}

func (c *OpenCageClient) Resolve(ctx context.Context, candidate string) (Location, error) {
	ch := c.group.DoChan(key(candidate), func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.lookup(lookupCtx, candidate)
	})

	select {
	case <-ctx.Done():
		return Location{}, fmt.Errorf("geocode %q: %w", candidate, ctx.Err())
	case res := <-ch:
		if res.Shared {
			c.logger.Debug("geocode lookup shared", zap.String("candidate", candidate))
		}
		if res.Err != nil {
			return Location{}, res.Err
		}
		return res.Val.(Location), nil
	}
}

func (c *OpenCageClient) lookup(ctx context.Context, candidate string) (Location, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Location{}, fmt.Errorf("geocoder rate limit: %w", err)
	}

	q := url.Values{}
	q.Set("q", candidate)
	q.Set("key", c.apiKey)
	q.Set("limit", "1")
	q.Set("no_record", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/geocode/v1/json?"+q.Encode(), nil)
	if err != nil {
		return Location{}, fmt.Errorf("build geocode request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Location{}, fmt.Errorf("geocoder returned %d: %s", resp.StatusCode, body)
	}

	var out openCageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Location{}, fmt.Errorf("decode geocode response: %w", err)
	}
	if len(out.Results) == 0 {
		return Location{}, ErrNotFound
	}

	r := out.Results[0]
	if r.Annotations.Timezone.Name == "" {
		c.logger.Warn("geocode result without timezone", zap.String("candidate", candidate))
	}
	return Location{
		Name:      r.Formatted,
		Latitude:  r.Geometry.Lat,
		Longitude: r.Geometry.Lng,
		Timezone:  r.Annotations.Timezone.Name,
	}, nil
}
