package workflow

import (
	"fmt"
	"time"
)

// StepState is the display state of one progress step.
type StepState string

const (
	StepCompleted StepState = "completed"
	StepCurrent   StepState = "current"
	StepPending   StepState = "pending"
)

// ProgressStep is one position of a progress stepper.
type ProgressStep struct {
	Label string     `json:"label"`
	State StepState  `json:"state"`
	Step  int        `json:"step"`
	Date  *time.Time `json:"date,omitempty"`
}

// Progress is the view model for rendering an application's progress.
type Progress struct {
	Status   Status         `json:"status"`
	Steps    []ProgressStep `json:"steps"`
	Rejected bool           `json:"rejected"`
	Outcome  Status         `json:"outcome,omitempty"`
}

const pendingOutcomeLabel = "Patent Granted / Patent Refused"

// Project maps the current status onto the pipeline steps. Output depends
// only on current and the catalog.
func Project(current Status) (Progress, error) {
	entry, ok := byName[current]
	if !ok {
		return Progress{}, fmt.Errorf("%w: %q", ErrUnknownStatus, current)
	}

	steps := displaySteps(entry)
	out := Progress{Status: current, Steps: steps}

	switch entry.Kind {
	case KindException:
		out.Rejected = true
		return out, nil
	case KindOutcome:
		out.Outcome = current
	}

	for i := range out.Steps {
		switch {
		case out.Steps[i].Step < entry.Step:
			out.Steps[i].State = StepCompleted
		case out.Steps[i].Step == entry.Step:
			out.Steps[i].State = StepCurrent
		}
	}
	return out, nil
}

// ProjectWithDates is Project with each step's milestone date attached.
func ProjectWithDates(current Status, dates map[string]time.Time) (Progress, error) {
	out, err := Project(current)
	if err != nil {
		return Progress{}, err
	}
	for i := range out.Steps {
		field, ok := MilestoneField(Status(out.Steps[i].Label))
		if !ok {
			field = DateFinalDecision
		}
		if ts, ok := dates[field]; ok && !ts.IsZero() {
			t := ts
			out.Steps[i].Date = &t
		}
	}
	return out, nil
}

func displaySteps(current Entry) []ProgressStep {
	steps := make([]ProgressStep, 0, outcomeStep+1)
	for _, e := range catalog {
		if e.Kind != KindStage {
			continue
		}
		steps = append(steps, ProgressStep{Label: string(e.Name), State: StepPending, Step: e.Step})
	}
	label := pendingOutcomeLabel
	if current.Kind == KindOutcome {
		label = string(current.Name)
	}
	return append(steps, ProgressStep{Label: label, State: StepPending, Step: outcomeStep})
}
