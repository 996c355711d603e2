package core

import "time"

// DecodedMessage is one fully framed and decoded protocol message.
type DecodedMessage struct {
	Source    Source    `json:"source"`
	Timestamp string    `json:"timestamp"` // wall clock at completion, HH:MM:SS
	Time      time.Time `json:"time"`
	ID        uint16    `json:"id"`
	Name      string    `json:"name"`
	Raw       []byte    `json:"-"` // body bytes as received
	Body      any       `json:"body,omitempty"`
	Stream    string    `json:"stream,omitempty"`
}
