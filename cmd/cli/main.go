package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
)

type hostStatus struct {
	Host struct {
		ID      string `json:"id"`
		Label   string `json:"label"`
		Address string `json:"address"`
		Pinned  bool   `json:"pinned"`
		Paused  bool   `json:"paused"`
	} `json:"host"`
	Last *struct {
		Alive   bool     `json:"alive"`
		RTTMs   *float64 `json:"rtt_ms"`
		Kind    string   `json:"error_kind"`
		Message string   `json:"message"`
	} `json:"last"`
}

type statusResponse struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Hosts       []hostStatus `json:"hosts"`
}

type benchmarkResponse struct {
	Domain string `json:"domain"`
	Rounds int    `json:"rounds"`
	Stats  []struct {
		Server       string   `json:"server"`
		AvgLatencyMs *float64 `json:"avg_latency_ms"`
		SuccessRate  int      `json:"success_rate_percent"`
	} `json:"stats"`
	Err string `json:"error,omitempty"`
}

func main() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://127.0.0.1:8787"
	}
	key := os.Getenv("API_KEY")

	if len(os.Args) < 2 {
		usage()
		return
	}

	c := &client{base: api, key: key, http: &http.Client{Timeout: 2 * time.Minute}}

	var err error
	switch os.Args[1] {
	case "status":
		err = c.status()
	case "add":
		if len(os.Args) < 4 {
			usage()
			return
		}
		err = c.addHost(os.Args[2], os.Args[3])
	case "dns":
		if len(os.Args) < 3 {
			usage()
			return
		}
		err = c.dnsBenchmark(os.Args[2])
	case "speed":
		provider := "cloudflare"
		if len(os.Args) >= 3 {
			provider = os.Args[2]
		}
		err = c.speedTest(provider)
	default:
		usage()
		return
	}
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("usage: pulsenet-cli <command>")
	fmt.Println("  status                show live host status")
	fmt.Println("  add <label> <addr>    add a monitored host")
	fmt.Println("  dns <domain>          benchmark DNS servers against a domain")
	fmt.Println("  speed [provider]      run a speed test (cloudflare or hetzner)")
}

type client struct {
	base string
	key  string
	http *http.Client
}

func (c *client) do(method, path string, body, out any) error {
	var payload *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	} else {
		payload = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, c.base+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) status() error {
	var st statusResponse
	if err := c.do(http.MethodGet, "/api/status", nil, &st); err != nil {
		return err
	}

	green := color.New(color.FgHiGreen)
	red := color.New(color.FgHiRed)
	yellow := color.New(color.FgHiYellow)

	for _, h := range st.Hosts {
		name := h.Host.Label
		if name == "" {
			name = h.Host.Address
		}
		tag := ""
		if h.Host.Pinned {
			tag = " [pinned]"
		}
		switch {
		case h.Host.Paused:
			yellow.Printf("  ⏸ %s (%s)%s paused\n", name, h.Host.Address, tag)
		case h.Last == nil:
			fmt.Printf("  … %s (%s)%s waiting\n", name, h.Host.Address, tag)
		case h.Last.Alive && h.Last.RTTMs != nil:
			green.Printf("  ✔ %s (%s)%s %.0f ms\n", name, h.Host.Address, tag, *h.Last.RTTMs)
		default:
			reason := h.Last.Message
			if reason == "" {
				reason = h.Last.Kind
			}
			red.Printf("  ✖ %s (%s)%s %s\n", name, h.Host.Address, tag, reason)
		}
	}
	return nil
}

func (c *client) addHost(label, address string) error {
	if err := c.do(http.MethodPost, "/api/hosts", map[string]string{"label": label, "address": address}, nil); err != nil {
		return err
	}
	color.Green("Added %s (%s).", label, address)
	return nil
}

func (c *client) dnsBenchmark(domain string) error {
	fmt.Printf("Benchmarking DNS servers against %s...\n", domain)
	var report benchmarkResponse
	if err := c.do(http.MethodPost, "/api/dns/benchmark", map[string]any{"domain": domain}, &report); err != nil {
		return err
	}
	if report.Err != "" {
		color.Yellow("Benchmark incomplete: %s", report.Err)
	}
	for i, s := range report.Stats {
		if s.AvgLatencyMs == nil {
			color.Red("  %2d. %-18s unreachable (%d%%)", i+1, s.Server, s.SuccessRate)
			continue
		}
		color.Green("  %2d. %-18s %.0f ms (%d%%)", i+1, s.Server, *s.AvgLatencyMs, s.SuccessRate)
	}
	return nil
}

func (c *client) speedTest(provider string) error {
	fmt.Printf("Running speed test via %s (this can take a minute)...\n", provider)
	var result struct {
		DownloadMbps float64 `json:"downloadMbps"`
		UploadMbps   float64 `json:"uploadMbps"`
		LatencyMs    float64 `json:"latencyMs"`
		JitterMs     float64 `json:"jitterMs"`
		IP           string  `json:"ip"`
		Country      string  `json:"country"`
	}
	if err := c.do(http.MethodPost, "/api/speedtest", map[string]string{"provider": provider}, &result); err != nil {
		return err
	}
	color.Green("  Download: %.2f Mbps", result.DownloadMbps)
	color.Green("  Upload:   %.2f Mbps", result.UploadMbps)
	fmt.Printf("  Latency:  %.0f ms (jitter %.0f ms)\n", result.LatencyMs, result.JitterMs)
	fmt.Printf("  IP:       %s (%s)\n", result.IP, result.Country)
	return nil
}
