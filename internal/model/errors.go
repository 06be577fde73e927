package model

import "encoding/json"

// ErrorInfo holds structured failure information for a Source.
type ErrorInfo struct {
	FailedStrategy string `json:"failed_strategy"`
	Message        string `json:"message"`
	FailedAt       string `json:"failed_at"`
}

// ToJSON serializes ErrorInfo to a JSON string.
func (e ErrorInfo) ToJSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}
