// Package cloud provides narrow clients over the Google Cloud services the
// deployment workflows touch. Every client is constructed from
// option.ClientOption values, falling back to application default
// credentials when none are given.
package cloud

import (
	"errors"

	"google.golang.org/api/googleapi"
)

// isStatusError reports whether err is an API error with one of the given
// HTTP status codes.
func isStatusError(err error, statuses ...int) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}

	for _, status := range statuses {
		if apiErr.Code == status {
			return true
		}
	}

	return false
}
