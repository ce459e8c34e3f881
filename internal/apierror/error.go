package apierror

import "net/http"

type HTTPPart struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error is the JSON body of every failed API call. The dashboard reads "error".
type Error struct {
	Message string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
	HTTP    HTTPPart               `json:"http"`
}

func (e Error) Error() string {
	return e.Message
}

func (e Error) StatusCode() int {
	return e.HTTP.Code
}

func (e Error) WithDetails(details map[string]interface{}) Error {
	e.Details = details
	return e
}

func NewAPIError(msg string, status int) Error {
	return Error{
		Message: msg,
		HTTP: HTTPPart{
			Code:    status,
			Message: http.StatusText(status),
		},
	}
}

func BadRequest(msg string) Error {
	return NewAPIError(msg, http.StatusBadRequest)
}

func Internal(msg string) Error {
	return NewAPIError(msg, http.StatusInternalServerError)
}
