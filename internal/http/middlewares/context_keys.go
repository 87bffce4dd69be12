package middlewares

const (
	CtxRequestID = "request_id"
	ctxCallerKey = "auth.caller"
)
