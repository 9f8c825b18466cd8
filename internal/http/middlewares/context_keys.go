package middlewares

// gin context keys set by the middlewares in this package.
const (
	CtxRequestID          = "request_id"
	CtxUsername           = "auth.username"
	CtxRole               = "auth.role"
	CtxSessionID          = "auth.sessionID"
	CtxMustChangePassword = "auth.mustChangePassword"
)
