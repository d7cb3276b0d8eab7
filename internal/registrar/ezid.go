package registrar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// EZIDConfig holds connection settings for the EZID API.
type EZIDConfig struct {
	BaseURL  string // e.g. "https://ezid.cdlib.org"
	Username string
	Password string
	Timeout  time.Duration
}

// Validate validates the EZID configuration.
func (c *EZIDConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("EZID base URL is required")
	}
	if c.Username == "" {
		return fmt.Errorf("EZID username is required")
	}
	if c.Password == "" {
		return fmt.Errorf("EZID password is required")
	}
	return nil
}

// EZIDClient registers identifiers with the EZID service. EZID speaks ANVL
// over HTTP: one "key: value" pair per line, percent-encoded line breaks.
type EZIDClient struct {
	config EZIDConfig
	http   *http.Client
}

// NewEZIDClient creates a client for the EZID API.
func NewEZIDClient(config EZIDConfig) (*EZIDClient, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid EZID config: %w", err)
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &EZIDClient{
		config: config,
		http:   &http.Client{Timeout: timeout},
	}, nil
}

// Register creates or updates identifier with the given metadata. EZID's
// PUT /id/{identifier} is an upsert, so repeated registration is safe.
func (c *EZIDClient) Register(ctx context.Context, identifier string, meta Metadata) error {
	body := encodeANVL(meta)
	url := strings.TrimSuffix(c.config.BaseURL, "/") + "/id/" + identifier

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build EZID request: %w", err)
	}
	req.SetBasicAuth(c.config.Username, c.config.Password)
	req.Header.Set("Content-Type", "text/plain; charset=UTF-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("EZID request: %w", err)
	}
	defer resp.Body.Close()

	// EZID answers 200/201 with a body starting "success:".
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("EZID status %d: %s", resp.StatusCode, firstLine(respBody))
	}
	if !strings.HasPrefix(string(respBody), "success:") {
		return fmt.Errorf("EZID error: %s", firstLine(respBody))
	}
	return nil
}

// encodeANVL renders metadata in EZID's ANVL form.
func encodeANVL(meta Metadata) string {
	var b strings.Builder
	pair := func(key, value string) {
		if value == "" {
			return
		}
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(escapeANVL(value))
		b.WriteString("\n")
	}
	pair("_target", meta.Target)
	pair("_profile", meta.Profile)
	pair("erc.who", meta.Who)
	pair("erc.what", meta.What)
	pair("erc.when", meta.When)
	return b.String()
}

// escapeANVL percent-encodes the characters ANVL reserves.
func escapeANVL(s string) string {
	r := strings.NewReplacer(
		"%", "%25",
		"\n", "%0A",
		"\r", "%0D",
		":", "%3A",
	)
	return r.Replace(s)
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
