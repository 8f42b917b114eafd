package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/webguard/webguard/internal/domain"
)

type HTTPChecker struct {
	Client *http.Client
}

func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPChecker{
		Client: &http.Client{Timeout: timeout},
	}
}

// Check issues a GET and records elapsed time plus the status code.
// Success is a status in the 2xx-3xx range; everything else, including
// transport failures, is a failed uptime check with a reason code.
func (h *HTTPChecker) Check(ctx context.Context, target string) UptimeResult {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return UptimeResult{Reason: classify(err), Message: err.Error()}
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := h.Client.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return UptimeResult{
			ResponseTimeMS: elapsed,
			Reason:         classify(err),
			Message:        err.Error(),
		}
	}
	defer resp.Body.Close()

	out := UptimeResult{
		StatusCode:     resp.StatusCode,
		ResponseTimeMS: elapsed,
		Message:        resp.Status,
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		out.Success = true
	} else {
		out.Reason = domain.ReasonHTTPStatus
		out.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return out
}
