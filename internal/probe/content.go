package probe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/webguard/webguard/internal/domain"
)

// maxContentBytes caps how much of a page body the fingerprint reads.
const maxContentBytes = 4 << 20

type PageChecker struct {
	Client *http.Client
}

func NewPageChecker(timeout time.Duration) *PageChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PageChecker{
		Client: &http.Client{Timeout: timeout},
	}
}

// Check fetches the page body and computes its fingerprint. A fetch
// failure defers classification: the result is not a defacement signal,
// only a missing sample.
func (p *PageChecker) Check(ctx context.Context, target string) ContentResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return ContentResult{Reason: classify(err), Message: err.Error()}
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := p.Client.Do(req)
	if err != nil {
		return ContentResult{Reason: classify(err), Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ContentResult{
			Reason:  domain.ReasonHTTPStatus,
			Message: fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxContentBytes))
	if err != nil {
		return ContentResult{Reason: classify(err), Message: err.Error()}
	}

	return ContentResult{
		Success:     true,
		Fingerprint: Fingerprint(body),
	}
}

// Fingerprint computes a deterministic digest of the page: visible text
// only, whitespace collapsed, sha256 over the result. Markup churn that
// does not change visible text (attribute reordering, script payloads)
// does not move the fingerprint.
func Fingerprint(body []byte) string {
	text := extractText(body)
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func extractText(body []byte) string {
	root, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		// not parseable as HTML; fingerprint the raw bytes normalized
		return strings.Join(strings.Fields(string(body)), " ")
	}

	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" || n.Data == "noscript" {
				return
			}
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, strings.Join(strings.Fields(t), " "))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return strings.Join(parts, " ")
}
