package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"strings"
)

// ErrorCategory is a stable label for remote failures, used in error results
// and as a metric label.
type ErrorCategory string

const (
	ErrorCategoryConfiguration  ErrorCategory = "configuration"
	ErrorCategoryNameResolution ErrorCategory = "name_resolution"
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryNotFound       ErrorCategory = "not_found"
	ErrorCategoryTimeout        ErrorCategory = "timeout"
	ErrorCategoryTLS            ErrorCategory = "tls"
	ErrorCategoryUnknown        ErrorCategory = "unknown"
)

// Classify maps an error returned by a WeatherSource to an ErrorCategory.
// Typed errors are checked first; message matching is the last resort for
// errors that lost their type on the way up.
func Classify(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrAPIKeyNotConfigured) {
		return ErrorCategoryConfiguration
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTimeout {
		return ErrorCategoryNameResolution
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorCategoryTimeout
	}

	if isTLSError(err) {
		return ErrorCategoryTLS
	}

	if errors.Is(err, ErrUnauthorized) {
		return ErrorCategoryAuthentication
	}
	if errors.Is(err, ErrNotFound) {
		return ErrorCategoryNotFound
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such host"),
		strings.Contains(msg, "unable to resolve host"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "network is unreachable"):
		return ErrorCategoryNameResolution
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return ErrorCategoryTimeout
	case strings.Contains(msg, "certificate"), strings.Contains(msg, "handshake"), strings.Contains(msg, "x509"):
		return ErrorCategoryTLS
	}

	return ErrorCategoryUnknown
}

func isTLSError(err error) bool {
	var (
		unknownAuthority x509.UnknownAuthorityError
		invalidCert      x509.CertificateInvalidError
		hostnameErr      x509.HostnameError
		verifyErr        *tls.CertificateVerificationError
		recordErr        tls.RecordHeaderError
	)
	return errors.As(err, &unknownAuthority) ||
		errors.As(err, &invalidCert) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr)
}
