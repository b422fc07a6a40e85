package gdrive

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"

	"google.golang.org/api/googleapi"

	"folio/internal/services"
)

var rateLimitReasons = map[string]struct{}{
	"rateLimitExceeded":     {},
	"userRateLimitExceeded": {},
	"backendError":          {},
}

// classify tags err as transient or permanent. Caller cancellation and
// errors that already carry a marker (such as a rejected token refresh
// surfacing through the HTTP transport) are returned untouched.
func classify(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if services.IsTransient(err) || services.IsPermanent(err) {
		return err
	}
	marker := services.ErrPermanent
	if isTransient(err) {
		marker = services.ErrTransient
	}
	return services.Wrap(marker, "gdrive", operation, "", err)
}

func isTransient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests,
			apiErr.Code == http.StatusRequestTimeout,
			apiErr.Code >= http.StatusInternalServerError:
			return true
		case apiErr.Code == http.StatusForbidden:
			for _, item := range apiErr.Errors {
				if _, ok := rateLimitReasons[item.Reason]; ok {
					return true
				}
			}
		}
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
