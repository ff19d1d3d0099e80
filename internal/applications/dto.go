package applications

import (
	"encoding/json"
	"time"

	"patent-backend/internal/workflow"
)

// ApplicationResponse is the outward-facing representation of an application.
type ApplicationResponse struct {
	ApplicationID  string               `json:"applicationId"`
	TokenNo        string               `json:"tokenNo"`
	Title          string               `json:"title"`
	ApplicantID    string               `json:"applicantId"`
	ApplicantName  string               `json:"applicantName,omitempty"`
	AttorneyID     string               `json:"attorneyId,omitempty"`
	Status         workflow.Status      `json:"status"`
	DecisionStatus string               `json:"decisionStatus"`
	Dates          map[string]time.Time `json:"dates"`
	Sections       json.RawMessage      `json:"sections,omitempty"`
	Comments       string               `json:"comments,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

// SummaryResponse is the list-view representation of an application.
type SummaryResponse struct {
	ApplicationID string          `json:"applicationId"`
	TokenNo       string          `json:"tokenNo"`
	Title         string          `json:"title"`
	ApplicantName string          `json:"applicantName,omitempty"`
	Status        workflow.Status `json:"status"`
	SubmittedAt   time.Time       `json:"submittedAt"`
}

// HistoryResponse is one status change.
type HistoryResponse struct {
	From    workflow.Status `json:"from"`
	To      workflow.Status `json:"to"`
	ActorID string          `json:"actorId"`
	Role    workflow.Role   `json:"role"`
	At      time.Time       `json:"at"`
}

func toResponse(app Application) ApplicationResponse {
	dates := app.Dates
	if dates == nil {
		dates = map[string]time.Time{}
	}
	return ApplicationResponse{
		ApplicationID:  app.ID,
		TokenNo:        app.TokenNo,
		Title:          app.Title,
		ApplicantID:    app.ApplicantID,
		ApplicantName:  app.ApplicantName,
		AttorneyID:     app.AttorneyID,
		Status:         app.Status,
		DecisionStatus: app.DecisionStatus,
		Dates:          dates,
		Sections:       app.Sections,
		Comments:       app.Comments,
		CreatedAt:      app.CreatedAt,
		UpdatedAt:      app.UpdatedAt,
	}
}

func toSummaries(apps []Application) []SummaryResponse {
	out := make([]SummaryResponse, 0, len(apps))
	for _, app := range apps {
		out = append(out, SummaryResponse{
			ApplicationID: app.ID,
			TokenNo:       app.TokenNo,
			Title:         app.Title,
			ApplicantName: app.ApplicantName,
			Status:        app.Status,
			SubmittedAt:   app.CreatedAt,
		})
	}
	return out
}

func toHistory(entries []HistoryEntry) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryResponse{From: e.From, To: e.To, ActorID: e.ActorID, Role: e.Role, At: e.At})
	}
	return out
}
