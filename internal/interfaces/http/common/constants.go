package common

import "time"

const (
	// MaxSubmitRequestBody limits the JSON body accepted by the submit endpoint.
	MaxSubmitRequestBody = 1 << 20
	// DefaultMaxUploadBytes is used when no upload limit is configured.
	DefaultMaxUploadBytes = 50 << 20
	// RequestTimeout bounds sink and store calls made on behalf of one request.
	RequestTimeout = 15 * time.Second
	// AdminPageLimit caps the page size of admin list endpoints.
	AdminPageLimit = 200
)
