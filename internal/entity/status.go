package entity

import "fmt"

// Status is a lead's pipeline stage.
type Status string

const (
	StatusNewResearching   Status = "new_researching"
	StatusColdOutreach     Status = "cold_outreach"
	StatusEngaged          Status = "engaged"
	StatusQualifying       Status = "qualifying"
	StatusQuoting          Status = "quoting"
	StatusOnboarding       Status = "onboarding"
	StatusActiveCustomer   Status = "active_customer"
	StatusInactiveCustomer Status = "inactive_customer"

	// StatusReleased marks a lead that went back to the shared pool.
	StatusReleased Status = "released"
)

// StatusOnClaim is the stage a lead enters when a rep claims it.
const StatusOnClaim = StatusNewResearching

var pipeline = []Status{
	StatusNewResearching,
	StatusColdOutreach,
	StatusEngaged,
	StatusQualifying,
	StatusQuoting,
	StatusOnboarding,
	StatusActiveCustomer,
	StatusInactiveCustomer,
}

// ActiveStages returns the stages that count toward a rep's lead cap.
func ActiveStages() []Status {
	var out []Status
	for _, s := range pipeline {
		if s.IsActiveStage() {
			out = append(out, s)
		}
	}
	return out
}

// TerminalStages returns the customer stages.
func TerminalStages() []Status {
	return []Status{StatusActiveCustomer, StatusInactiveCustomer}
}

// StaleProspectStages are the mid-pipeline stages the sweep nudges after a week of silence.
func StaleProspectStages() []Status {
	return []Status{StatusEngaged, StatusQualifying, StatusQuoting}
}

// IsActiveStage reports whether an owned lead in this stage uses up capacity.
func (s Status) IsActiveStage() bool {
	switch s {
	case StatusNewResearching, StatusColdOutreach, StatusEngaged,
		StatusQualifying, StatusQuoting, StatusOnboarding:
		return true
	}
	return false
}

// IsTerminalStage reports whether the lead has become a customer (current or lapsed).
func (s Status) IsTerminalStage() bool {
	return s == StatusActiveCustomer || s == StatusInactiveCustomer
}

func (s Status) Valid() bool {
	return s == StatusReleased || s.IsActiveStage() || s.IsTerminalStage()
}

// ParseStatus validates a raw stage key.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown pipeline status %q", raw)
	}
	return s, nil
}
