// Package respond writes JSON responses with the API's error envelope.
package respond

import (
	"encoding/json"
	"log"
	"net/http"
)

// errorBody is the wire shape of every error response: {"error":{"code","message"}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes returned by the API. Clients switch on these, never on messages.
const (
	CodeInvalidCredentials       = "InvalidCredentials"
	CodeEmailNotVerified         = "EmailNotVerified"
	CodeEmailAlreadyExists       = "EmailAlreadyExists"
	CodeIncorrectCurrentPassword = "IncorrectCurrentPassword"
	CodeSessionInvalid           = "SessionInvalid"
	CodeSessionExpired           = "SessionExpired"
	CodeMalformedToken           = "MalformedToken"
	CodeInvalidTwoFactorCode     = "InvalidTwoFactorCode"
	CodeTwoFactorRequired        = "TwoFactorRequired"
	CodePreAuthInvalid           = "PreAuthInvalid"
	CodeValidationFailed         = "ValidationFailed"
	CodeNotFound                 = "NotFound"
	CodeRateLimited              = "RateLimited"
	CodeUnauthorized             = "Unauthorized"
	CodeInternal                 = "InternalError"
)

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("respond: encode response: %v", err)
	}
}

// Error writes the error envelope with the given status, code, and message.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// Internal writes a generic 500. Details stay in the server log, never on the wire.
func Internal(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, CodeInternal, "internal server error")
}
