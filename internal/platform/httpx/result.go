package httpx

import "net/http"

// ResultStatus tags a checkout or payment outcome for the storefront UI.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultWarning ResultStatus = "warning"
	ResultError   ResultStatus = "error"
	ResultInfo    ResultStatus = "info"
)

// Result is the envelope returned by checkout, coupon and payment confirmation endpoints.
type Result struct {
	Status  ResultStatus   `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// WriteResult writes a Result. Outcomes that are part of the normal flow use 200.
func WriteResult(w http.ResponseWriter, status int, result Result) {
	if status == 0 {
		status = http.StatusOK
	}
	WriteJSON(w, status, result)
}
