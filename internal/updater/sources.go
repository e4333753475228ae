package updater

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pydverify/backend/pkg/circuitbreaker"
	"github.com/pydverify/backend/pkg/logger"
	"github.com/pydverify/backend/pkg/retry"
)

// ErrFetch wraps every transport, status and decode failure from the
// registry or change-log endpoints.
var ErrFetch = errors.New("updater: fetch failed")

const maxBodyBytes = 8 << 20

// Release is the subset of registry metadata the updater uses.
type Release struct {
	Version     string
	ReleaseDate string
	HomePage    string
}

type registryResponse struct {
	Info struct {
		Version  string `json:"version"`
		HomePage string `json:"home_page"`
	} `json:"info"`
	Releases map[string][]struct {
		UploadTime string `json:"upload_time"`
	} `json:"releases"`
}

type changelogResponse struct {
	TagName string `json:"tag_name"`
	Body    string `json:"body"`
}

// source is a JSON endpoint guarded by retry and a circuit breaker.
type source struct {
	name       string
	httpClient *http.Client
	retryCfg   retry.Config
	breaker    *circuitbreaker.CircuitBreaker
}

func newSource(name string, timeout time.Duration, maxAttempts int) *source {
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = maxAttempts
	retryCfg.InitialDelay = 200 * time.Millisecond
	retryCfg.MaxDelay = 2 * time.Second
	retryCfg.Logger = logger.GetLogger()

	return &source{
		name: name,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryCfg: retryCfg,
		breaker: circuitbreaker.NewCircuitBreaker(name, circuitbreaker.Config{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          5 * time.Minute,
			FailureThreshold: 3,
			Logger:           logger.GetLogger(),
		}),
	}
}

func (s *source) getJSON(ctx context.Context, url string, v any) error {
	err := s.breaker.Execute(ctx, func() error {
		return retry.Do(ctx, s.retryCfg, func() error {
			return s.fetchOnce(ctx, url, v)
		})
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFetch, s.name, err)
	}
	return nil
}

func (s *source) fetchOnce(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "pydverify/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%s returned status %d", s.name, resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Permanent(err)
		}
		return err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return retry.Permanent(fmt.Errorf("failed to parse response: %w", err))
	}
	return nil
}

// RegistryClient reads the current release from the package registry.
type RegistryClient struct {
	url string
	src *source
}

func NewRegistryClient(url string, timeout time.Duration, maxAttempts int) *RegistryClient {
	return &RegistryClient{url: url, src: newSource("registry", timeout, maxAttempts)}
}

// Latest returns the current version and its upload time. ReleaseDate is
// empty when the registry lists no files for that version.
func (c *RegistryClient) Latest(ctx context.Context) (Release, error) {
	var resp registryResponse
	if err := c.src.getJSON(ctx, c.url, &resp); err != nil {
		return Release{}, err
	}

	version := strings.TrimSpace(resp.Info.Version)
	if version == "" {
		return Release{}, fmt.Errorf("%w: registry: response has no version", ErrFetch)
	}

	release := Release{Version: version, HomePage: resp.Info.HomePage}
	if files := resp.Releases[version]; len(files) > 0 {
		release.ReleaseDate = files[0].UploadTime
	}

	logger.Debug("Registry release resolved",
		zap.String("version", release.Version),
		zap.String("release_date", release.ReleaseDate),
	)
	return release, nil
}

// ChangelogClient reads release notes for a version tag.
type ChangelogClient struct {
	baseURL string
	src     *source
}

func NewChangelogClient(baseURL string, timeout time.Duration, maxAttempts int) *ChangelogClient {
	return &ChangelogClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		src:     newSource("changelog", timeout, maxAttempts),
	}
}

// Notes returns the free-text release body for tag v<version>.
func (c *ChangelogClient) Notes(ctx context.Context, version string) (string, error) {
	var resp changelogResponse
	if err := c.src.getJSON(ctx, fmt.Sprintf("%s/v%s", c.baseURL, version), &resp); err != nil {
		return "", err
	}
	return resp.Body, nil
}
