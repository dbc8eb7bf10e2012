package util

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type errorResponse struct {
	Success bool   `json:"success"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func WriteJson(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func ErrorJson(w http.ResponseWriter, err error) {
	var apiErr *ApiError
	if !errors.As(err, &apiErr) {
		apiErr = WrapInternal(err)
	}
	WriteJson(w, StatusForKind(apiErr.Kind), errorResponse{
		Success: false,
		Kind:    apiErr.Kind,
		Message: apiErr.Message,
	})
}

func ReadJsonAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return NewApiError(KindInvalidRequest, "not able to parse request body")
	}
	r.Body.Close()

	if err := validate.Struct(v); err != nil {
		return NewApiError(KindInvalidRequest, err.Error())
	}
	return nil
}
