package speedtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sm8ke1/pulsenet/internal/domain"
)

const (
	ProviderCloudflare = "cloudflare"
	ProviderHetzner    = "hetzner"

	defaultDownloadBytes = 10 * 1024 * 1024
	defaultUploadBytes   = 5 * 1024 * 1024
	defaultSamples       = 5
)

var (
	ErrBusy            = errors.New("speed test already running")
	ErrStopped         = errors.New("speed test stopped")
	ErrUnknownProvider = errors.New("unknown provider")
)

// Client measures throughput and latency against a provider endpoint.
// One test runs at a time; Stop advances a generation counter so a
// response arriving after a stop/restart is discarded rather than
// reported.
type Client struct {
	logger     *zap.Logger
	HTTPClient *http.Client

	CloudflareBase     string
	HetznerDownloadURL string
	HetznerUploadURL   string
	LatencyURL         string
	IPWhoisURL         string

	DownloadBytes int
	UploadBytes   int
	Samples       int

	busy atomic.Bool
	gen  atomic.Uint64
}

func NewClient(logger *zap.Logger) *Client {
	return &Client{
		logger:             logger,
		HTTPClient:         &http.Client{Timeout: 2 * time.Minute},
		CloudflareBase:     "https://speed.cloudflare.com",
		HetznerDownloadURL: "https://speed.hetzner.de/10MB.bin",
		HetznerUploadURL:   "https://httpbin.org/post",
		LatencyURL:         "https://www.gstatic.com/generate_204",
		IPWhoisURL:         "https://ipwho.is/",
		DownloadBytes:      defaultDownloadBytes,
		UploadBytes:        defaultUploadBytes,
		Samples:            defaultSamples,
	}
}

// Stop invalidates any in-flight run; its result will be discarded.
func (c *Client) Stop() {
	c.gen.Add(1)
}

// Run executes a full measurement against the named provider.
func (c *Client) Run(ctx context.Context, provider string) (domain.SpeedResult, error) {
	if provider != ProviderCloudflare && provider != ProviderHetzner {
		return domain.SpeedResult{}, ErrUnknownProvider
	}
	if !c.busy.CompareAndSwap(false, true) {
		return domain.SpeedResult{}, ErrBusy
	}
	defer c.busy.Store(false)

	gen := c.gen.Load()

	var out domain.SpeedResult
	if provider == ProviderCloudflare {
		latency, jitter := c.measureLatency(ctx, c.CloudflareBase+"/__ping")
		download := c.measureDownload(ctx, fmt.Sprintf("%s/__down?bytes=%d", c.CloudflareBase, c.DownloadBytes))
		upload := c.measureUpload(ctx, c.CloudflareBase+"/__up")
		ip, country := c.traceIdentity(ctx)
		out = domain.SpeedResult{
			DownloadMbps: round2(download),
			UploadMbps:   round2(upload),
			LatencyMs:    round2(latency),
			JitterMs:     round2(jitter),
			IP:           ip,
			Country:      country,
		}
	} else {
		latency, jitter := c.measureLatency(ctx, c.LatencyURL)
		download := c.measureDownload(ctx, c.HetznerDownloadURL)
		upload := c.measureUpload(ctx, c.HetznerUploadURL)
		ip, country := c.whoisIdentity(ctx)
		out = domain.SpeedResult{
			DownloadMbps: round2(download),
			UploadMbps:   round2(upload),
			LatencyMs:    round2(latency),
			JitterMs:     round2(jitter),
			IP:           ip,
			Country:      country,
		}
	}

	if c.gen.Load() != gen {
		return domain.SpeedResult{}, ErrStopped
	}

	c.logger.Info("speedtest_done",
		zap.String("provider", provider),
		zap.Float64("download_mbps", out.DownloadMbps),
		zap.Float64("upload_mbps", out.UploadMbps),
		zap.Float64("latency_ms", out.LatencyMs),
	)
	return out, nil
}

// measureLatency samples the endpoint repeatedly; jitter is the mean
// absolute difference between successive samples.
func (c *Client) measureLatency(ctx context.Context, url string) (avg, jitter float64) {
	samples := make([]float64, 0, c.Samples)
	for i := 0; i < c.Samples; i++ {
		start := time.Now()
		if resp, err := c.get(ctx, url); err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		samples = append(samples, float64(time.Since(start))/float64(time.Millisecond))
	}
	if len(samples) == 0 {
		return 0, 0
	}

	var sum float64
	for _, s := range samples {
		sum += s
	}
	avg = sum / float64(len(samples))

	if len(samples) > 1 {
		var diff float64
		for i := 1; i < len(samples); i++ {
			diff += math.Abs(samples[i] - samples[i-1])
		}
		jitter = diff / float64(len(samples)-1)
	}
	return avg, jitter
}

func (c *Client) measureDownload(ctx context.Context, url string) float64 {
	start := time.Now()
	resp, err := c.get(ctx, url)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	n, _ := io.Copy(io.Discard, resp.Body)
	secs := time.Since(start).Seconds()
	if secs == 0 {
		return 0
	}
	return float64(n) * 8 / secs / 1_000_000
}

func (c *Client) measureUpload(ctx context.Context, url string) float64 {
	payload := make([]byte, c.UploadBytes)
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	secs := time.Since(start).Seconds()
	if secs == 0 {
		return 0
	}
	return float64(c.UploadBytes) * 8 / secs / 1_000_000
}

// traceIdentity reads ip/country from Cloudflare's cdn-cgi/trace lines.
func (c *Client) traceIdentity(ctx context.Context) (string, string) {
	resp, err := c.get(ctx, c.CloudflareBase+"/cdn-cgi/trace")
	if err != nil {
		return "N/A", "N/A"
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return ParseTrace(string(body))
}

// whoisIdentity reads ip/country from the ipwho.is JSON body.
func (c *Client) whoisIdentity(ctx context.Context) (string, string) {
	resp, err := c.get(ctx, c.IPWhoisURL)
	if err != nil {
		return "N/A", "N/A"
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return ParseWhois(body)
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "PulseNet")
	return c.HTTPClient.Do(req)
}

// ParseTrace extracts ip= and loc= values from a cdn-cgi/trace body.
func ParseTrace(body string) (ip, country string) {
	ip, country = "N/A", "N/A"
	for _, line := range strings.Split(body, "\n") {
		if v, ok := strings.CutPrefix(line, "ip="); ok && strings.TrimSpace(v) != "" {
			ip = strings.TrimSpace(v)
		}
		if v, ok := strings.CutPrefix(line, "loc="); ok && strings.TrimSpace(v) != "" {
			country = strings.TrimSpace(v)
		}
	}
	return ip, country
}

// ParseWhois extracts ip and country_code from an ipwho.is response.
func ParseWhois(body []byte) (string, string) {
	var payload struct {
		IP          string `json:"ip"`
		CountryCode string `json:"country_code"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "N/A", "N/A"
	}
	ip, country := payload.IP, payload.CountryCode
	if ip == "" {
		ip = "N/A"
	}
	if country == "" {
		country = "N/A"
	}
	return ip, country
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
