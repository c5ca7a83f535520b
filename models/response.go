package models

import (
	"encoding/json"
	"time"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewErrorResponse wraps message for the client
func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Error: message}
}

// ObjectSummary describes one stored object in a listing
type ObjectSummary struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"lastModified"`
	URL          string    `json:"url"`
}

// MarshalJSON custom JSON marshaler for ObjectSummary to format dates
func (o ObjectSummary) MarshalJSON() ([]byte, error) {
	type Alias ObjectSummary
	return json.Marshal(&struct {
		LastModified string `json:"lastModified"`
		*Alias
	}{
		LastModified: o.LastModified.Format(time.RFC3339),
		Alias:        (*Alias)(&o),
	})
}

// ObjectListing is the structured form of GET /objects
type ObjectListing struct {
	Bucket  string          `json:"bucket"`
	Count   int             `json:"count"`
	Objects []ObjectSummary `json:"objects"`
}
