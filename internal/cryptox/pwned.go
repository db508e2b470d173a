package cryptox

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// BreachedPasswordRecommendation is appended when a password appears in a
// known breach corpus.
const BreachedPasswordRecommendation = "avoid known breached passwords"

// DefaultPwnedRangeURL is the public k-anonymity range API.
const DefaultPwnedRangeURL = "https://api.pwnedpasswords.com"

// BreachChecker reports whether a password is known to be breached.
type BreachChecker interface {
	Breached(ctx context.Context, password string) (bool, error)
}

// PwnedRangeChecker queries a range API with the first five hex digits of
// the password's SHA-1. The password and its full hash never leave the process.
type PwnedRangeChecker struct {
	client  *http.Client
	baseURL string
}

func NewPwnedRangeChecker(client *http.Client, baseURL string) *PwnedRangeChecker {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultPwnedRangeURL
	}
	return &PwnedRangeChecker{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *PwnedRangeChecker) Breached(ctx context.Context, password string) (bool, error) {
	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/range/"+prefix, nil)
	if err != nil {
		return false, fmt.Errorf("build range request: %w", err)
	}
	req.Header.Set("Add-Padding", "true")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("range request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("range request: unexpected status %d", resp.StatusCode)
	}

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		hashSuffix, count, ok := strings.Cut(strings.TrimSpace(sc.Text()), ":")
		if !ok || !strings.EqualFold(hashSuffix, suffix) {
			continue
		}
		// padding entries carry a zero count
		n, err := strconv.Atoi(strings.TrimSpace(count))
		return err == nil && n > 0, nil
	}
	if err := sc.Err(); err != nil {
		return false, fmt.Errorf("read range response: %w", err)
	}
	return false, nil
}
