package applications

import (
	"encoding/json"
	"time"

	"patent-backend/internal/workflow"
)

// Application is a patent application and its workflow state.
type Application struct {
	ID             string
	TokenNo        string
	Title          string
	ApplicantID    string
	ApplicantName  string
	AttorneyID     string
	Status         workflow.Status
	DecisionStatus string
	Dates          map[string]time.Time
	Sections       json.RawMessage
	Comments       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HistoryEntry records one applied status change.
type HistoryEntry struct {
	ApplicationID string
	From          workflow.Status
	To            workflow.Status
	ActorID       string
	Role          workflow.Role
	At            time.Time
}

// View names the admin dashboard buckets.
type View string

const (
	ViewAll     View = ""
	ViewNew     View = "new"
	ViewOngoing View = "ongoing"
	ViewPast    View = "past"
)

// Filter narrows List results. Status, when set, wins over View.
type Filter struct {
	View   View
	Status workflow.Status
	Limit  int
	Offset int
}

// Matches reports whether status belongs to the filter.
func (f Filter) Matches(status workflow.Status) bool {
	if f.Status != "" {
		return status == f.Status
	}
	switch f.View {
	case ViewNew:
		return status == workflow.StatusSubmitted
	case ViewOngoing:
		return status != workflow.StatusSubmitted && !workflow.IsTerminal(status)
	case ViewPast:
		return workflow.IsTerminal(status)
	}
	return true
}

// Statuses lists the catalog statuses the filter selects, for SQL IN clauses.
func (f Filter) Statuses() []string {
	var out []string
	for _, e := range workflow.All() {
		if f.Matches(e.Name) {
			out = append(out, string(e.Name))
		}
	}
	return out
}

func (a Application) snapshot() workflow.Snapshot {
	dates := make(map[string]time.Time, len(a.Dates))
	for k, v := range a.Dates {
		dates[k] = v
	}
	return workflow.Snapshot{
		Status:         a.Status,
		Dates:          dates,
		DecisionStatus: a.DecisionStatus,
	}
}
