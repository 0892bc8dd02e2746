package constants

// Context keys
const (
	ContextKeyUser  = "user"
	ContextKeyToken = "token"
)

// HTTP headers
const (
	HeaderContentType     = "Content-Type"
	HeaderAuthorization   = "Authorization"
	HeaderHubSignature256 = "X-Hub-Signature-256"
	HeaderForwardedFor    = "X-Forwarded-For"
	HeaderRealIP          = "X-Real-IP"

	BearerPrefix = "Bearer "
)

// Response keys
const (
	ResponseError   = "error"
	ResponseMessage = "message"
	ResponseSuccess = "success"
	ResponseCode    = "code"
	ResponseData    = "data"
)

// Pagination defaults
const (
	DefaultPage       = 1
	DefaultPageLimit  = 20
	DefaultAuditLimit = 50
	DefaultFormLimit  = 10
	MaxPageLimit      = 500
)
