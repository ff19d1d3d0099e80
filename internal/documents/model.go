package documents

import (
	"strings"
	"time"
)

// Kind is the role an attachment plays in an application.
type Kind string

const (
	KindProofOfConcept  Kind = "poc"
	KindMOU             Kind = "mou"
	KindSourceAgreement Kind = "source_agreement"
	KindFormIII         Kind = "form_iii"
)

// ParseKind normalizes a kind string.
func ParseKind(raw string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	switch k {
	case KindProofOfConcept, KindMOU, KindSourceAgreement, KindFormIII:
		return k, true
	}
	return "", false
}

// Document is a file attached to an application.
type Document struct {
	ID            string    `json:"documentId"`
	ApplicationID string    `json:"applicationId"`
	Kind          Kind      `json:"kind"`
	FileName      string    `json:"fileName"`
	MimeType      string    `json:"mimeType"`
	SizeBytes     int64     `json:"sizeBytes"`
	PageCount     *int      `json:"pageCount,omitempty"`
	StorageKey    string    `json:"-"`
	UploadedBy    string    `json:"uploadedBy"`
	CreatedAt     time.Time `json:"uploadedAt"`
}
