package events

import (
	"encoding/json"
)

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// BatchSubmittedData contains data for BatchSubmitted events
type BatchSubmittedData struct {
	BatchID    string `json:"batch_id"`
	Securities int    `json:"securities"`
}

// EventType returns the event type for BatchSubmittedData
func (d *BatchSubmittedData) EventType() EventType {
	return BatchSubmitted
}

// BatchCompletedData contains data for BatchCompleted events
type BatchCompletedData struct {
	BatchID   string  `json:"batch_id"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Failed    int     `json:"failed"`
	MeanScore float64 `json:"mean_score"`
}

// EventType returns the event type for BatchCompletedData
func (d *BatchCompletedData) EventType() EventType {
	return BatchCompleted
}

// BatchCancelledData contains data for BatchCancelled events
type BatchCancelledData struct {
	BatchID string `json:"batch_id"`
}

// EventType returns the event type for BatchCancelledData
func (d *BatchCancelledData) EventType() EventType {
	return BatchCancelled
}

// SecurityCompletedData contains data for SecurityCompleted events
type SecurityCompletedData struct {
	BatchID  string   `json:"batch_id"`
	Security string   `json:"security"`
	Status   string   `json:"status"`
	Score    *float64 `json:"score,omitempty"`
}

// EventType returns the event type for SecurityCompletedData
func (d *SecurityCompletedData) EventType() EventType {
	return SecurityCompleted
}

// SecurityAddedData contains data for SecurityAdded events
type SecurityAddedData struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// EventType returns the event type for SecurityAddedData
func (d *SecurityAddedData) EventType() EventType {
	return SecurityAdded
}

// ResearchProgressData contains data for ResearchProgress events
type ResearchProgressData struct {
	BatchID   string `json:"batch_id"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Message   string `json:"message,omitempty"`
}

// EventType returns the event type for ResearchProgressData
func (d *ResearchProgressData) EventType() EventType {
	return ResearchProgress
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// GetTypedData attempts to convert the event's Data map to typed EventData.
// Returns the typed data if conversion is successful, nil otherwise.
func (e *Event) GetTypedData() EventData {
	if e.Data == nil {
		return nil
	}

	switch e.Type {
	case BatchSubmitted:
		var data BatchSubmittedData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case BatchCompleted:
		var data BatchCompletedData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case BatchCancelled:
		var data BatchCancelledData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case SecurityCompleted:
		var data SecurityCompletedData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case SecurityAdded:
		var data SecurityAddedData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case ResearchProgress:
		var data ResearchProgressData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	case ErrorOccurred:
		var data ErrorEventData
		if err := convertMapToStruct(e.Data, &data); err == nil {
			return &data
		}
	}

	return nil
}

// convertMapToStruct converts a map[string]interface{} to a struct
func convertMapToStruct(m map[string]interface{}, v interface{}) error {
	jsonBytes, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonBytes, v)
}
