package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"repo-digest/internal/infra/metrics"
)

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// postJSON отправляет payload и считает успехом только ответ 200.
func postJSON(ctx context.Context, client *http.Client, component, endpoint string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal payload: %w", component, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", component, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	var uerr *url.Error
	if errors.As(err, &uerr) {
		// url.Error содержит полный адрес вебхука вместе с токеном.
		err = fmt.Errorf("%s: do request: %w", component, uerr.Err)
	}
	if err == nil && resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err = fmt.Errorf("%s: unexpected status %d: %s", component, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if resp != nil {
		_ = resp.Body.Close()
	}
	metrics.ObserveNetworkRequest(component, "webhook_post", hostOf(endpoint), start, err)
	return err
}

// hostOf оставляет только хост, чтобы секрет вебхука не попал в метки метрик.
func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "invalid"
	}
	return u.Host
}
