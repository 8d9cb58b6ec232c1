package models

// RemoteTimeSample is the body answered by the collector's /now endpoint.
type RemoteTimeSample struct {
	Now     string `json:"now"`     // "YYYY-MM-DDTHH:MM:SS..." fixed field offsets
	Weekday uint8  `json:"weekday"` // 0=Sunday
}
