package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/xerrors"
)

// On selects which outcomes of an attempt are retried.
type On struct {
	connectFailure bool
	gatewayError   bool
	throttled      bool
	_5xx           bool
	statusCodes    []int
}

// DefaultOn retries only failures where the request provably never reached
// the server, so a retried upload cannot be stored twice.
func DefaultOn() *On {
	return &On{
		connectFailure: true,
	}
}

// ParseOn reads a comma separated list of connect-failure, gateway-error,
// throttled, 5xx and literal status codes.
func ParseOn(s string) (*On, error) {
	o := &On{}
	for _, field := range strings.Split(s, ",") {
		switch field = strings.TrimSpace(field); field {
		case "":
		case "connect-failure":
			o.connectFailure = true
		case "gateway-error":
			o.gatewayError = true
		case "throttled":
			o.throttled = true
		case "5xx":
			o._5xx = true
		default:
			code, err := strconv.Atoi(field)
			if err != nil || code < 100 || code > 599 {
				return nil, xerrors.Errorf("invalid retry condition %q", field)
			}
			o.statusCodes = append(o.statusCodes, code)
		}
	}
	return o, nil
}

func (o *On) CheckResponse(response *http.Response) bool {
	code := response.StatusCode
	if (o._5xx && code >= 500 && code < 600) ||
		(o.gatewayError && code >= 502 && code <= 504) ||
		(o.throttled && code == http.StatusTooManyRequests) {
		return true
	}
	for _, c := range o.statusCodes {
		if c == code {
			return true
		}
	}
	return false
}

func (o *On) CheckError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if !o.connectFailure {
		return false
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	// Only meaningful with 5xx: the server may have seen the request.
	if o._5xx && (errors.Is(err, io.EOF) || errors.Is(err, syscall.ECONNRESET)) {
		return true
	}
	return false
}
