package aws

import (
	"errors"
	"fmt"

	"github.com/DrSkyle/tagguard/pkg/engine/remediation"
	"github.com/DrSkyle/tagguard/pkg/engine/scanner"
	"github.com/DrSkyle/tagguard/pkg/resource"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
)

var authCodes = map[string]bool{
	"AccessDenied":                true,
	"AccessDeniedException":       true,
	"UnauthorizedOperation":       true,
	"AuthFailure":                 true,
	"InvalidClientTokenId":        true,
	"ExpiredToken":                true,
	"ExpiredTokenException":       true,
	"UnrecognizedClientException": true,
	"SignatureDoesNotMatch":       true,
	"AllAccessDisabled":           true,
}

var throttleCodes = map[string]bool{
	"Throttling":                             true,
	"ThrottlingException":                    true,
	"ThrottledException":                     true,
	"RequestLimitExceeded":                   true,
	"RequestThrottled":                       true,
	"RequestThrottledException":              true,
	"SlowDown":                               true,
	"TooManyRequestsException":               true,
	"ProvisionedThroughputExceededException": true,
}

var notFoundCodes = map[string]bool{
	"NoSuchBucket":                true,
	"InvalidInstanceID.NotFound":  true,
	"InvalidInstanceID.Malformed": true,
	"DBInstanceNotFound":          true,
	"DBInstanceNotFoundFault":     true,
	"DBClusterNotFoundFault":      true,
	"FileSystemNotFound":          true,
}

// errorCode returns the API error code of err, or "".
func errorCode(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode()
	}
	return ""
}

func httpStatus(err error) int {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return 0
}

func isAuthError(err error) bool {
	if authCodes[errorCode(err)] {
		return true
	}
	s := httpStatus(err)
	return s == 401 || s == 403
}

func isNotFoundError(err error) bool {
	return notFoundCodes[errorCode(err)]
}

// IsThrottled reports whether err is a provider throttling response. It
// understands both raw SDK errors and classified collector errors.
func IsThrottled(err error) bool {
	var cerr *scanner.CollectorError
	if errors.As(err, &cerr) && cerr.Kind == scanner.RateLimited {
		return true
	}
	if throttleCodes[errorCode(err)] {
		return true
	}
	return httpStatus(err) == 429
}

// collectorError classifies an enumeration failure for kind.
func collectorError(kind resource.Kind, op string, err error) error {
	var cerr *scanner.CollectorError
	if errors.As(err, &cerr) {
		return cerr
	}
	category := scanner.Unavailable
	switch {
	case isAuthError(err):
		category = scanner.AuthFailure
	case IsThrottled(err):
		category = scanner.RateLimited
	}
	return &scanner.CollectorError{Kind: category, Resource: kind, Err: fmt.Errorf("%s: %w", op, err)}
}

// remediationError classifies a tag write failure.
func remediationError(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := remediation.Transient
	switch {
	case isAuthError(err):
		kind = remediation.PermissionDenied
	case isNotFoundError(err):
		kind = remediation.NotFound
	}
	return remediation.NewError(kind, fmt.Errorf("%s: %w", op, err))
}
