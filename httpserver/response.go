package httpserver

// Envelope codes. Zero covers every completed execution, success or not;
// failures of completed executions travel in data.error. Negative codes
// mark requests that never reached a runner.
const (
	CodeOK                  = 0
	CodeUnsupportedLanguage = -400
	CodeUnauthorized        = -401
	CodeInternal            = -500
	CodeOverloaded          = -503
)

// Response is the wire envelope for every endpoint under /v1/sandbox.
// Data is deliberately not omitempty: rejections carry an explicit null.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// RunData is the payload of a completed execution.
type RunData struct {
	Stdout string `json:"stdout"`
	Error  string `json:"error"`
}
