package dispatch

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Category is the failure taxonomy a dispatch can end in.
type Category string

const (
	CategoryConfigurationMissing Category = "CONFIGURATION_MISSING"
	CategoryForbidden            Category = "FORBIDDEN"
	CategoryUnauthorized         Category = "UNAUTHORIZED"
	CategoryNotFound             Category = "NOT_FOUND"
	CategoryRateLimited          Category = "RATE_LIMITED"
	CategoryUnknown              Category = "UNKNOWN"
)

const (
	MessageConfigurationMissing = "System configuration error: the assistant's API key is not configured. Please contact the site administrator."
	MessageForbidden            = "Access denied: the configured API key does not have permission to use this model."
	MessageUnauthorized         = "Authentication failed: the configured API key is invalid."
	MessageNotFound             = "The requested model could not be found. Please verify the model configuration."
	MessageRateLimited          = "Rate limit reached. Please wait a moment before sending another message."
	MessageEmptyResponse        = "Communication error. Please try again."

	unknownPrefix = "The system is currently experiencing a connection delay. Please try again."
	maxExcerpt    = 150
)

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Classify maps a completion failure to a Category. A structured status code
// wins; the error text is only inspected when no known code is available.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}
	if status, ok := upstreamStatusCode(err); ok {
		if c, known := categoryForStatus(status); known {
			return c
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "403") || strings.Contains(msg, "permission_denied") || strings.Contains(msg, "permission denied"):
		return CategoryForbidden
	case strings.Contains(msg, "401") || strings.Contains(msg, "api key not valid") ||
		strings.Contains(msg, "api_key_invalid") || strings.Contains(msg, "invalid api key"):
		return CategoryUnauthorized
	case strings.Contains(msg, "404") || strings.Contains(msg, "not_found"):
		return CategoryNotFound
	case strings.Contains(msg, "429") || strings.Contains(msg, "resource_exhausted"):
		return CategoryRateLimited
	}
	return CategoryUnknown
}

func categoryForStatus(status int) (Category, bool) {
	switch status {
	case http.StatusForbidden:
		return CategoryForbidden, true
	case http.StatusUnauthorized:
		return CategoryUnauthorized, true
	case http.StatusNotFound:
		return CategoryNotFound, true
	case http.StatusTooManyRequests:
		return CategoryRateLimited, true
	}
	return "", false
}

// Message returns the text shown to the visitor for c. err only feeds the
// diagnostic excerpt of CategoryUnknown.
func (c Category) Message(err error) string {
	switch c {
	case CategoryConfigurationMissing:
		return MessageConfigurationMissing
	case CategoryForbidden:
		return MessageForbidden
	case CategoryUnauthorized:
		return MessageUnauthorized
	case CategoryNotFound:
		return MessageNotFound
	case CategoryRateLimited:
		return MessageRateLimited
	}
	if err == nil {
		return unknownPrefix
	}
	return fmt.Sprintf("%s (%s)", unknownPrefix, excerpt(err.Error(), maxExcerpt))
}

// excerpt collapses whitespace and cuts s to at most limit runes.
func excerpt(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-3]) + "..."
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
