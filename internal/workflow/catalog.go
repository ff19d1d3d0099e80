package workflow

import "strings"

// Status is the name of a workflow position as stored on an application.
type Status string

const (
	StatusSubmitted            Status = "Submitted"
	StatusReviewedByPCCAdmin   Status = "Reviewed by PCC Admin"
	StatusAttorneyAssigned     Status = "Attorney Assigned"
	StatusForwardedToDirector  Status = "Forwarded for Director's Review"
	StatusDirectorApproval     Status = "Director's Approval Received"
	StatusPatentabilityStarted Status = "Patentability Check Started"
	StatusPatentabilityDone    Status = "Patentability Check Completed"
	StatusSearchReport         Status = "Patentability Search Report Generated"
	StatusPatentFiled          Status = "Patent Filed"
	StatusPatentPublished      Status = "Patent Published"
	StatusPatentGranted        Status = "Patent Granted"
	StatusPatentRefused        Status = "Patent Refused"
	StatusRejected             Status = "Rejected"
)

// Kind classifies catalog entries.
type Kind string

const (
	KindStage     Kind = "stage"
	KindOutcome   Kind = "outcome"
	KindException Kind = "exception"
)

// NoStep marks entries that sit outside the linear pipeline.
const NoStep = -1

// Entry is one status in the catalog.
type Entry struct {
	Name     Status `json:"name"`
	Order    int    `json:"order"`
	Step     int    `json:"step"`
	Kind     Kind   `json:"kind"`
	Terminal bool   `json:"terminal"`
}

// Milestone date fields stamped the first time an application reaches a status.
const (
	DateSubmitted            = "submitted_date"
	DateReviewedByPCC        = "reviewed_by_pcc_date"
	DateAttorneyAssigned     = "assigned_date"
	DateForwardedToDirector  = "forwarded_to_director_date"
	DateDirectorApproval     = "director_approval_date"
	DatePatentabilityStarted = "patentability_check_start_date"
	DatePatentabilityDone    = "patentability_check_completed_date"
	DateSearchReport         = "search_report_generated_date"
	DatePatentFiled          = "patent_filed_date"
	DatePatentPublished      = "patent_published_date"
	DateFinalDecision        = "final_decision_date"
	DateDecision             = "decision_date"
)

// outcomeStep is shared by both final outcomes.
const outcomeStep = 10

var catalog = []Entry{
	{Name: StatusSubmitted, Order: 0, Step: 0, Kind: KindStage},
	{Name: StatusReviewedByPCCAdmin, Order: 1, Step: 1, Kind: KindStage},
	{Name: StatusAttorneyAssigned, Order: 2, Step: 2, Kind: KindStage},
	{Name: StatusForwardedToDirector, Order: 3, Step: 3, Kind: KindStage},
	{Name: StatusDirectorApproval, Order: 4, Step: 4, Kind: KindStage},
	{Name: StatusPatentabilityStarted, Order: 5, Step: 5, Kind: KindStage},
	{Name: StatusPatentabilityDone, Order: 6, Step: 6, Kind: KindStage},
	{Name: StatusSearchReport, Order: 7, Step: 7, Kind: KindStage},
	{Name: StatusPatentFiled, Order: 8, Step: 8, Kind: KindStage},
	{Name: StatusPatentPublished, Order: 9, Step: 9, Kind: KindStage},
	{Name: StatusPatentGranted, Order: 10, Step: outcomeStep, Kind: KindOutcome, Terminal: true},
	{Name: StatusPatentRefused, Order: 11, Step: outcomeStep, Kind: KindOutcome, Terminal: true},
	{Name: StatusRejected, Order: 12, Step: NoStep, Kind: KindException, Terminal: true},
}

var milestoneFields = map[Status]string{
	StatusSubmitted:            DateSubmitted,
	StatusReviewedByPCCAdmin:   DateReviewedByPCC,
	StatusAttorneyAssigned:     DateAttorneyAssigned,
	StatusForwardedToDirector:  DateForwardedToDirector,
	StatusDirectorApproval:     DateDirectorApproval,
	StatusPatentabilityStarted: DatePatentabilityStarted,
	StatusPatentabilityDone:    DatePatentabilityDone,
	StatusSearchReport:         DateSearchReport,
	StatusPatentFiled:          DatePatentFiled,
	StatusPatentPublished:      DatePatentPublished,
	StatusPatentGranted:        DateFinalDecision,
	StatusPatentRefused:        DateFinalDecision,
	StatusRejected:             DateDecision,
}

var (
	byName  = buildNameIndex()
	byLower = buildLowerIndex()
)

func buildNameIndex() map[Status]Entry {
	out := make(map[Status]Entry, len(catalog))
	for _, e := range catalog {
		out[e.Name] = e
	}
	return out
}

func buildLowerIndex() map[string]Status {
	out := make(map[string]Status, len(catalog))
	for _, e := range catalog {
		out[strings.ToLower(string(e.Name))] = e.Name
	}
	return out
}

// All returns the catalog in canonical order. The slice is a copy.
func All() []Entry {
	out := make([]Entry, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the catalog entry for status.
func Lookup(status Status) (Entry, bool) {
	e, ok := byName[status]
	return e, ok
}

// IndexOf returns the catalog order of status. ok is false for statuses the
// catalog does not know; callers must not substitute a default.
func IndexOf(status Status) (int, bool) {
	e, ok := byName[status]
	if !ok {
		return 0, false
	}
	return e.Order, true
}

// IsTerminal reports whether status has no outgoing transitions.
// Unknown statuses are not terminal.
func IsTerminal(status Status) bool {
	e, ok := byName[status]
	return ok && e.Terminal
}

// IsKnown reports whether status is part of the catalog.
func IsKnown(status Status) bool {
	_, ok := byName[status]
	return ok
}

// ParseStatus maps user input onto the canonical spelling.
func ParseStatus(raw string) (Status, bool) {
	s, ok := byLower[strings.ToLower(strings.TrimSpace(raw))]
	return s, ok
}

// MilestoneField returns the date field stamped when status is first reached.
func MilestoneField(status Status) (string, bool) {
	f, ok := milestoneFields[status]
	return f, ok
}

// MilestoneFields lists every milestone date field in catalog order, without duplicates.
func MilestoneFields() []string {
	seen := make(map[string]struct{}, len(milestoneFields))
	out := make([]string, 0, len(milestoneFields))
	for _, e := range catalog {
		f := milestoneFields[e.Name]
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// NextStages returns the statuses one pipeline step after status.
// Rejected is not included; it is reachable from every non-terminal status.
func NextStages(status Status) []Status {
	e, ok := byName[status]
	if !ok || e.Terminal || e.Step == NoStep {
		return nil
	}
	return atStep(e.Step + 1)
}

// PreviousStage returns the status one pipeline step before status.
func PreviousStage(status Status) (Status, bool) {
	e, ok := byName[status]
	if !ok || e.Terminal || e.Step <= 0 {
		return "", false
	}
	prev := atStep(e.Step - 1)
	if len(prev) != 1 {
		return "", false
	}
	return prev[0], true
}

// Stages lists the pipeline stages followed by the outcomes, in order.
// Rejected is excluded; it is shown out of band.
func Stages() []Status {
	out := make([]Status, 0, len(catalog))
	for _, e := range catalog {
		if e.Kind != KindException {
			out = append(out, e.Name)
		}
	}
	return out
}

// Outcomes lists the final outcome statuses.
func Outcomes() []Status {
	return atStep(outcomeStep)
}

func atStep(step int) []Status {
	var out []Status
	for _, e := range catalog {
		if e.Step == step {
			out = append(out, e.Name)
		}
	}
	return out
}

// DecisionFor returns the decision status recorded when an application
// enters status, or "" when entering status leaves the decision untouched.
func DecisionFor(status Status) string {
	switch status {
	case StatusPatentGranted:
		return DecisionGranted
	case StatusPatentRefused:
		return DecisionRefused
	case StatusRejected:
		return DecisionRejected
	default:
		return ""
	}
}

// Decision status values.
const (
	DecisionPending  = "PENDING"
	DecisionGranted  = "GRANTED"
	DecisionRefused  = "REFUSED"
	DecisionRejected = "REJECTED"
)
