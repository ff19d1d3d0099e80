package queue

import (
	"encoding/json"
	"time"
)

// MessageVersion is the current payload version.
const MessageVersion = 1

// TypeStatusChanged marks an applied workflow transition.
const TypeStatusChanged = "status_changed"

// Message is the payload sent to downstream queue consumers.
type Message struct {
	Type          string `json:"type"`
	ApplicationID string `json:"applicationId"`
	ApplicantID   string `json:"applicantId"`
	Title         string `json:"title,omitempty"`
	From          string `json:"from"`
	To            string `json:"to"`
	ActorID       string `json:"actorId"`
	ActorRole     string `json:"actorRole"`
	At            string `json:"at"`
	RequestID     string `json:"requestId"`
	Version       int    `json:"version"`
}

// StatusChanged builds a status change message stamped at at.
func StatusChanged(applicationID, applicantID, from, to string, at time.Time) Message {
	return Message{
		Type:          TypeStatusChanged,
		ApplicationID: applicationID,
		ApplicantID:   applicantID,
		From:          from,
		To:            to,
		At:            at.UTC().Format(time.RFC3339Nano),
		Version:       MessageVersion,
	}
}

// OccurredAt parses At, falling back to the zero time.
func (m Message) OccurredAt() time.Time {
	t, err := time.Parse(time.RFC3339Nano, m.At)
	if err != nil {
		return time.Time{}
	}
	return t
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
