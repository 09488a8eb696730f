package upstream

import (
	"errors"
	"fmt"

	errs "github.com/mikeyhost/homedash/internal/errors"
)

// Describe renders err as the text shown on a dashboard widget.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var upErr *errs.UpstreamError
	if !errors.As(err, &upErr) {
		return err.Error()
	}
	if upErr.Message != "" {
		return upErr.Message
	}

	switch upErr.Kind {
	case errs.KindTimeout:
		return fmt.Sprintf("Timeout connecting to %s. Check if %s is running.", upErr.URL, upErr.Service)
	case errs.KindUnreachable:
		return fmt.Sprintf("Cannot reach %s. Check URL and ensure %s is accessible.", upErr.URL, upErr.Service)
	case errs.KindBadStatus:
		return fmt.Sprintf("%s API returned %d", upErr.Service, upErr.StatusCode)
	case errs.KindParse:
		return fmt.Sprintf("Invalid response from %s", upErr.Service)
	case errs.KindConfigMissing:
		return fmt.Sprintf("%s credentials not configured", upErr.Service)
	}
	return upErr.Error()
}
