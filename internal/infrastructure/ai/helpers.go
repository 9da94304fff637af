package ai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/doeshing/notegen/internal/domain"
)

// sideChannelChunk builds a normalised {"<field>": value} chunk for vendors
// whose reasoning stream is not chat-completion shaped.
func sideChannelChunk(field, value string) []byte {
	out, err := sjson.SetBytes([]byte(`{}`), field, value)
	if err != nil {
		return nil
	}
	return out
}

// providerError wraps transport failures so the orchestrator can classify them
// without importing vendor SDKs. Context errors pass through untouched.
func providerError(id domain.ProviderID, status int, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &domain.ProviderError{
		Provider:   id,
		StatusCode: status,
		Message:    err.Error(),
		Err:        err,
	}
}

// statusError reads a failed HTTP response into a ProviderError. The vendor
// message is taken from the usual error envelopes when present.
func statusError(id domain.ProviderID, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(body))
	for _, path := range []string{"error.message", "error", "message"} {
		if res := gjson.GetBytes(body, path); res.Type == gjson.String && res.Str != "" {
			msg = res.Str
			break
		}
	}
	if msg == "" {
		msg = resp.Status
	}
	return &domain.ProviderError{
		Provider:   id,
		StatusCode: resp.StatusCode,
		Message:    msg,
		Err:        errors.New(resp.Status),
	}
}

func valueOrDefault(value string, def string) string {
	if value == "" {
		return def
	}
	return value
}

func valueOrDefaultInt(value int, def int) int {
	if value <= 0 {
		return def
	}
	return value
}
