package update

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sm8ke1/pulsenet/internal/domain"
)

const githubRepo = "SM8KE1/PulseNet"

// Checker asks GitHub whether a newer release exists. Failures are
// reported inside the result, never as a fault.
type Checker struct {
	logger     *zap.Logger
	HTTPClient *http.Client
	Current    string

	LatestURL string
	ListURL   string
}

func NewChecker(logger *zap.Logger, current string) *Checker {
	return &Checker{
		logger:     logger,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		Current:    current,
		LatestURL:  "https://api.github.com/repos/" + githubRepo + "/releases/latest",
		ListURL:    "https://api.github.com/repos/" + githubRepo + "/releases?per_page=20",
	}
}

type release struct {
	TagName    string `json:"tag_name"`
	Prerelease bool   `json:"prerelease"`
	Draft      bool   `json:"draft"`
	HTMLURL    string `json:"html_url"`
}

func (c *Checker) fallbackURL() string {
	return "https://github.com/" + githubRepo + "/releases/latest"
}

// Check fetches the latest release (or the newest non-draft one when
// prereleases are included) and compares its tag to the running version.
func (c *Checker) Check(ctx context.Context, includePrerelease bool) domain.UpdateResult {
	out := domain.UpdateResult{
		CurrentVersion: c.Current,
		URL:            c.fallbackURL(),
	}

	url := c.LatestURL
	if includePrerelease {
		url = c.ListURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		out.Err = "update-check-failed"
		return out
	}
	req.Header.Set("User-Agent", "PulseNet")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.logger.Warn("update_check_error", zap.Error(err))
		out.Err = "update-check-failed"
		return out
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	var rel release
	if includePrerelease {
		var list []release
		if err := json.Unmarshal(body, &list); err != nil {
			out.Err = "invalid-response"
			return out
		}
		found := false
		for _, r := range list {
			if !r.Draft {
				rel = r
				found = true
				break
			}
		}
		if !found {
			out.Err = "invalid-response"
			return out
		}
	} else {
		if err := json.Unmarshal(body, &rel); err != nil {
			out.Err = "invalid-response"
			return out
		}
	}

	latest := strings.TrimPrefix(strings.TrimSpace(rel.TagName), "v")
	out.LatestVersion = latest
	out.UpdateAvailable = latest != "" && IsNewerVersion(latest, c.Current)
	out.IsPrerelease = rel.Prerelease
	if rel.HTMLURL != "" {
		out.URL = rel.HTMLURL
	}
	return out
}

func versionParts(v string) []uint64 {
	raw := strings.Split(strings.TrimPrefix(strings.TrimSpace(v), "v"), ".")
	out := make([]uint64, len(raw))
	for i, p := range raw {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			n = 0
		}
		out[i] = n
	}
	return out
}

// IsNewerVersion compares dotted numeric versions segment by segment;
// missing segments count as zero.
func IsNewerVersion(latest, current string) bool {
	lp, cp := versionParts(latest), versionParts(current)
	n := len(lp)
	if len(cp) > n {
		n = len(cp)
	}
	for i := 0; i < n; i++ {
		var l, c uint64
		if i < len(lp) {
			l = lp[i]
		}
		if i < len(cp) {
			c = cp[i]
		}
		if l > c {
			return true
		}
		if l < c {
			return false
		}
	}
	return false
}
