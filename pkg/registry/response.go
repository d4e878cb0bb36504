package registry

import (
	"encoding/json"
	"errors"
	"net/http"

	apierr "kubegems.io/hubx/pkg/errors"
)

// ResponseError writes err as {"error": ..., "code": ...}, the hub error
// body with the error code alongside.
func ResponseError(w http.ResponseWriter, err error) {
	info := apierr.ErrorInfo{}
	if !errors.As(err, &info) {
		info = apierr.ErrorInfo{
			HttpStatus: http.StatusBadRequest,
			Code:       apierr.ErrCodeRequest,
			Message:    err.Error(),
		}
	}
	if info.HttpStatus == 0 {
		info.HttpStatus = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(info.HttpStatus)
	json.NewEncoder(w).Encode(errorBody{Error: info.Message, Code: info.Code, Detail: info.Detail})
}

type errorBody struct {
	Error  string         `json:"error"`
	Code   apierr.ErrCode `json:"code,omitempty"`
	Detail string         `json:"detail,omitempty"`
}

func ResponseOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(data)
}
