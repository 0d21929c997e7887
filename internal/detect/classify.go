package detect

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// NoDataMessage replaces a successful probe that returned neither models nor
// a balance. It deliberately classifies as an authentication failure.
const NoDataMessage = "probe succeeded but returned no data; the session may have expired, log in again"

var statusCodeRe = regexp.MustCompile(`(?i)status code (\d{3})`)

var authMarkers = []string{
	"unauthorized",
	"forbidden",
	"invalid token",
	"token expired",
	"invalid access token",
	"session expired",
	"login expired",
	"not logged in",
	"please log in",
	"authentication failed",
	"missing credential",
	"invalid credential",
	"returned no data",
}

// IsAuthFailure reports whether a failed result looks like an expired login
// or a rejected credential. An explicit HTTP status wins over message text.
func IsAuthFailure(r domain.Result) bool {
	if r.Succeeded() {
		return false
	}
	if r.StatusCode != 0 {
		return isAuthStatus(r.StatusCode)
	}
	if m := statusCodeRe.FindStringSubmatch(r.Error); m != nil {
		code, _ := strconv.Atoi(m[1])
		return isAuthStatus(code)
	}
	msg := strings.ToLower(r.Error)
	for _, marker := range authMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	// a bare permission error is only auth related when it names the login
	return strings.Contains(msg, "permission denied") &&
		(strings.Contains(msg, "login") || strings.Contains(msg, "credential"))
}

func isAuthStatus(code int) bool {
	return code == 401 || code == 403
}

var cancelMarkers = []string{
	"browser closed",
	"browser has been closed",
	"target closed",
	"operation cancelled",
	"operation canceled",
}

// IsCancellation reports whether a probe error means the user or the
// process aborted the probe rather than the site failing.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range cancelMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// emptyResult is the "succeeded but returned no data" heuristic. It may
// misfire on a genuinely empty account, hence ForceAcceptEmpty.
func emptyResult(r domain.Result) bool {
	return r.Succeeded() && len(r.Models) == 0 && r.Balance == nil
}
