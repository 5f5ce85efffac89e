package classify

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strings"
	"syscall"
)

// Kind is the closed failure taxonomy exposed to callers.
type Kind string

const (
	ConfigurationError Kind = "ConfigurationError"
	LaunchFailure      Kind = "LaunchFailure"
	InvalidRequest     Kind = "InvalidRequest"
	HostNotFound       Kind = "HostNotFound"
	ConnectionRefused  Kind = "ConnectionRefused"
	Timeout            Kind = "Timeout"
	NetworkError       Kind = "NetworkError"
	UploadFailure      Kind = "UploadFailure"
	Unknown            Kind = "Unknown"
)

var messages = map[Kind]string{
	ConfigurationError: "Browser not available. Install Google Chrome (or Chromium, Microsoft Edge, Brave) or configure a managed browser.",
	LaunchFailure:      "Browser failed to start. Please try again later.",
	InvalidRequest:     "Invalid request. Please provide a valid HTTP or HTTPS URL and supported capture options.",
	HostNotFound:       "Website not found. Please check the URL and try again.",
	ConnectionRefused:  "Connection refused. The website may be down or blocking requests.",
	Timeout:            "Request timeout. The website took too long to respond.",
	NetworkError:       "Unable to reach the website. Please check the URL and try again.",
	UploadFailure:      "Screenshot upload failed.",
	Unknown:            "Failed to generate screenshot",
}

var statuses = map[Kind]int{
	ConfigurationError: http.StatusServiceUnavailable,
	LaunchFailure:      http.StatusServiceUnavailable,
	InvalidRequest:     http.StatusBadRequest,
	HostNotFound:       http.StatusNotFound,
	ConnectionRefused:  http.StatusServiceUnavailable,
	Timeout:            http.StatusRequestTimeout,
	NetworkError:       http.StatusBadGateway,
	UploadFailure:      http.StatusBadGateway,
	Unknown:            http.StatusInternalServerError,
}

// Message returns the stable user-facing message of k.
func (k Kind) Message() string {
	if m, ok := messages[k]; ok {
		return m
	}
	return messages[Unknown]
}

// Status returns the transport status code hint of k.
func (k Kind) Status() int {
	if s, ok := statuses[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Result is the classification of a raw failure.
type Result struct {
	Kind    Kind
	Message string
	Status  int
	// Detail is the raw error text, for non-production diagnostics only.
	Detail string
}

// Error marks an error with a kind known at the point it was produced.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Wrap(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

type rule struct {
	kind    Kind
	signals []string
}

// Order matters: the first rule with a matching signal wins.
var rules = []rule{
	{ConfigurationError, []string{
		"chrome browser not found",
		"browser not available",
		"binding not available",
		"executable doesn't exist",
		"executable not found",
		"no supported browser",
	}},
	{HostNotFound, []string{
		"net::err_name_not_resolved",
		"no such host",
	}},
	{ConnectionRefused, []string{
		"net::err_connection_refused",
		"connection refused",
	}},
	{Timeout, []string{
		"timeouterror",
		"net::err_timed_out",
		"deadline exceeded",
		"ms exceeded",
		"i/o timeout",
	}},
	{NetworkError, []string{
		"net::err_",
		"connection reset",
		"network is unreachable",
		"no route to host",
		"tls:",
		"x509:",
	}},
}

// urls matches absolute URLs embedded in error text. Target URLs are
// caller input and must not match a signal.
var urls = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[^\s]*`)

// Classify maps err into the taxonomy. It has no side effects.
func Classify(err error) Result {
	if err == nil {
		return Result{}
	}
	kind := kindOf(err)
	return Result{
		Kind:    kind,
		Message: kind.Message(),
		Status:  kind.Status(),
		Detail:  err.Error(),
	}
}

func kindOf(err error) Kind {
	var marked *Error
	if errors.As(err, &marked) {
		return marked.Kind
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return HostNotFound
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ConnectionRefused
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}

	text := strings.ToLower(urls.ReplaceAllString(err.Error(), ""))
	for _, r := range rules {
		for _, s := range r.signals {
			if strings.Contains(text, s) {
				return r.kind
			}
		}
	}

	if errors.As(err, &netErr) {
		return NetworkError
	}
	return Unknown
}
