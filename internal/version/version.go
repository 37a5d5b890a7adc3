// Package version checks GitHub for newer Grantline releases and compares
// semantic version strings.
package version

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.github.com"
	DefaultTimeout = 30 * time.Second

	// Response bodies are capped so a misbehaving endpoint cannot balloon
	// memory: 1KB for error bodies, 64KB for the release document.
	maxErrorBodySize    = 1024
	maxResponseBodySize = 64 * 1024
)

var (
	ErrGitHubAPIFailed  = errors.New("GitHub API request failed")
	ErrInvalidOwner     = errors.New("owner cannot be empty")
	ErrInvalidRepo      = errors.New("repo cannot be empty")
	ErrInvalidOwnerRepo = errors.New("owner/repo contains invalid characters")
)

// GitHub allows alphanumerics, hyphens, underscores, and dots.
var ownerRepoPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// GitHubRelease is the subset of the release document the checker reads.
type GitHubRelease struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
	Body        string    `json:"body"`
}

// Client fetches release metadata from the GitHub API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API host (used in tests).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) { c.userAgent = userAgent }
}

// NewClient creates a client with sane defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  fmt.Sprintf("grantline/dev (%s/%s)", runtime.GOOS, runtime.GOARCH),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

//nolint:gochecknoglobals // package-level convenience client
var defaultClient = NewClient()

// GetLatestRelease fetches the latest release using the default client.
func GetLatestRelease(ctx context.Context, owner, repo string) (*GitHubRelease, error) {
	return defaultClient.GetLatestRelease(ctx, owner, repo)
}

// GetLatestRelease fetches the latest release for owner/repo.
func (c *Client) GetLatestRelease(ctx context.Context, owner, repo string) (*GitHubRelease, error) {
	switch {
	case owner == "":
		return nil, ErrInvalidOwner
	case repo == "":
		return nil, ErrInvalidRepo
	case !ownerRepoPattern.MatchString(owner) || !ownerRepoPattern.MatchString(repo):
		return nil, ErrInvalidOwnerRepo
	}

	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, fmt.Errorf("%w: status %d: %s", ErrGitHubAPIFailed, resp.StatusCode, string(body))
	}

	var release GitHubRelease
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodySize)).Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &release, nil
}

// IsNewerVersion reports whether latestVersion is newer than currentVersion.
func IsNewerVersion(currentVersion, latestVersion string) bool {
	return CompareVersions(latestVersion, currentVersion) > 0
}

// CompareVersions returns 1, 0, or -1 as v1 is newer than, equal to, or
// older than v2. Development builds ("dev", empty, or a bare commit hash)
// sort below every release.
func CompareVersions(v1, v2 string) int {
	v1 = strings.TrimPrefix(v1, "v")
	v2 = strings.TrimPrefix(v2, "v")

	dev1 := isDevBuild(v1)
	dev2 := isDevBuild(v2)
	switch {
	case dev1 && dev2:
		return 0
	case dev1:
		return -1
	case dev2:
		return 1
	}

	parts1 := splitVersion(v1)
	parts2 := splitVersion(v2)
	for i := 0; i < 3; i++ {
		a, b := 0, 0
		if i < len(parts1) {
			a = parts1[i]
		}
		if i < len(parts2) {
			b = parts2[i]
		}
		if a != b {
			if a > b {
				return 1
			}
			return -1
		}
	}
	return 0
}

// NormalizeVersion strips the v prefix, whitespace, and any pre-release or
// build metadata suffix (-rc1, -dirty, +build).
func NormalizeVersion(version string) string {
	if idx := strings.IndexAny(version, "-+"); idx != -1 {
		version = version[:idx]
	}
	for {
		trimmed := strings.TrimLeft(strings.TrimSpace(version), "v")
		if trimmed == version {
			return version
		}
		version = trimmed
	}
}

func isDevBuild(v string) bool {
	return v == "dev" || v == "" || isCommitHash(v)
}

// splitVersion parses major.minor.patch into integers, ignoring any
// suffix past the first - or +.
func splitVersion(version string) []int {
	if idx := strings.IndexAny(version, "-+"); idx != -1 {
		version = version[:idx]
	}

	parts := strings.Split(version, ".")
	nums := make([]int, 0, len(parts))
	for _, part := range parts {
		if n, err := strconv.Atoi(part); err == nil {
			nums = append(nums, n)
		}
	}
	return nums
}

// isCommitHash reports whether s looks like a short or full git SHA-1:
// 7 to 40 hex characters with at least one letter, so pure numeric
// versions like "2024010100" are not mistaken for hashes.
func isCommitHash(s string) bool {
	s = strings.TrimSuffix(s, "-dirty")
	if len(s) < 7 || len(s) > 40 {
		return false
	}

	hasLetter := false
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
			hasLetter = true
		default:
			return false
		}
	}
	return hasLetter
}
