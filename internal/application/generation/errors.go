package generation

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/doeshing/notegen/internal/domain"
)

// ErrorRule maps message keywords to an error kind.
type ErrorRule struct {
	Kind     domain.ErrorKind
	Keywords []string
}

// ErrorRules is consulted in order once structured classification fails.
// The first rule with a keyword contained in the lower-cased message wins.
var ErrorRules = []ErrorRule{
	{Kind: domain.ErrorValidation, Keywords: []string{"api key", "apikey", "api_key", "unauthorized", "authentication", "invalid key", "密钥", "认证"}},
	{Kind: domain.ErrorNotFound, Keywords: []string{"not found", "does not exist", "model_not_found", "unknown model", "no such model", "不存在", "未找到"}},
	{Kind: domain.ErrorPermission, Keywords: []string{"quota", "billing", "insufficient", "permission", "forbidden", "rate limit", "余额", "额度", "权限"}},
	{Kind: domain.ErrorNetwork, Keywords: []string{"network", "timeout", "timed out", "connection", "econnrefused", "dial tcp", "no such host", "eof", "网络", "超时"}},
}

// userMessages never name a vendor.
var userMessages = map[domain.ErrorKind]string{
	domain.ErrorValidation: "The AI service is not configured correctly. Check the API key and settings.",
	domain.ErrorNotFound:   "The selected AI model is not available.",
	domain.ErrorNetwork:    "Could not reach the AI service. Check your connection and try again.",
	domain.ErrorPermission: "The AI service refused the request. Check your account quota or permissions.",
	domain.ErrorUnknown:    "Generation failed. Please try again.",
}

var recoveries = map[domain.ErrorKind][]domain.RecoveryAction{
	domain.ErrorValidation: {
		{Kind: domain.RecoveryReconfigure, Label: "Update AI settings"},
	},
	domain.ErrorNotFound: {
		{Kind: domain.RecoverySwitchModel, Label: "Choose another model"},
		{Kind: domain.RecoveryReconfigure, Label: "Update AI settings"},
	},
	domain.ErrorNetwork: {
		{Kind: domain.RecoveryRetry, Label: "Try again"},
	},
	domain.ErrorPermission: {
		{Kind: domain.RecoverySwitchModel, Label: "Choose another model"},
		{Kind: domain.RecoveryReconfigure, Label: "Update AI settings"},
	},
	domain.ErrorUnknown: {
		{Kind: domain.RecoveryRetry, Label: "Try again"},
	},
}

// Classify normalises any error into a GenerationError.
func Classify(err error) *domain.GenerationError {
	if err == nil {
		return nil
	}
	var gerr *domain.GenerationError
	if errors.As(err, &gerr) {
		return gerr
	}
	return newError(kindOf(err), err)
}

// NewError builds a GenerationError of a fixed kind around err.
func NewError(kind domain.ErrorKind, err error) *domain.GenerationError {
	return newError(kind, err)
}

func newError(kind domain.ErrorKind, err error) *domain.GenerationError {
	gerr := &domain.GenerationError{
		Kind:        kind,
		UserMessage: userMessages[kind],
		Recovery:    append([]domain.RecoveryAction(nil), recoveries[kind]...),
		Err:         err,
	}
	if err != nil {
		gerr.TechnicalMessage = err.Error()
	}
	return gerr
}

func kindOf(err error) domain.ErrorKind {
	switch {
	case errors.Is(err, domain.ErrUnknownProvider):
		return domain.ErrorNotFound
	case errors.Is(err, domain.ErrMissingAPIKey),
		errors.Is(err, domain.ErrInvalidAPIKey),
		errors.Is(err, domain.ErrEmptyPrompt),
		errors.Is(err, domain.ErrCipherUnavailable):
		return domain.ErrorValidation
	}

	var perr *domain.ProviderError
	if errors.As(err, &perr) && perr.StatusCode > 0 {
		if kind, ok := kindForStatus(perr.StatusCode); ok {
			return kind
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrorNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.ErrorNetwork
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range ErrorRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(msg, kw) {
				return rule.Kind
			}
		}
	}
	return domain.ErrorUnknown
}

func kindForStatus(code int) (domain.ErrorKind, bool) {
	switch {
	case code == http.StatusBadRequest, code == http.StatusUnauthorized, code == http.StatusUnprocessableEntity:
		return domain.ErrorValidation, true
	case code == http.StatusPaymentRequired, code == http.StatusForbidden, code == http.StatusTooManyRequests:
		return domain.ErrorPermission, true
	case code == http.StatusNotFound:
		return domain.ErrorNotFound, true
	case code == http.StatusRequestTimeout, code >= 500:
		return domain.ErrorNetwork, true
	}
	return "", false
}
