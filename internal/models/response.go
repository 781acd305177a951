package models

import "encoding/json"

type UpsertResult struct {
	Updated bool            `json:"-"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type SuccessResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
	Message string      `json:"message,omitempty"`
}
