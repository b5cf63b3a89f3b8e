package workflow

import (
	"fmt"

	"github.com/construtiva/obratrack/internal/measurement/entity"
)

// ErrInvalidTransition is returned when no transition exists for the
// requested (status, stage, action) triple.
type ErrInvalidTransition struct {
	Status string
	Stage  string
	Action string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("no %s transition from status %q at stage %q", e.Action, e.Status, e.Stage)
}

// stageForStatus maps each approvable status to the single stage allowed to
// act on it. Statuses outside this map accept no approval at all.
var stageForStatus = map[string]string{
	entity.BulletinStatusSubmitted:          entity.StagePlanning,
	entity.BulletinStatusPlanningApproved:   entity.StageManagement,
	entity.BulletinStatusManagementApproved: entity.StageContractor,
}

// approvedNext is the forward edge of the chain. A rejection at any stage
// lands on rejected.
var approvedNext = map[string]string{
	entity.BulletinStatusSubmitted:          entity.BulletinStatusPlanningApproved,
	entity.BulletinStatusPlanningApproved:   entity.BulletinStatusManagementApproved,
	entity.BulletinStatusManagementApproved: entity.BulletinStatusContractorAgreed,
}

// Next resolves the status that results from applying (stage, action) to a
// bulletin currently in status. There is no fallback transition: any triple
// outside the table fails. Re-entering draft from rejected is an edit
// concern, not an approval transition, and is owned by the lifecycle
// manager.
func Next(status, stage, action string) (string, error) {
	want, ok := stageForStatus[status]
	if !ok || want != stage {
		return "", &ErrInvalidTransition{Status: status, Stage: stage, Action: action}
	}
	switch action {
	case entity.ActionApproved:
		return approvedNext[status], nil
	case entity.ActionRejected:
		return entity.BulletinStatusRejected, nil
	default:
		return "", &ErrInvalidTransition{Status: status, Stage: stage, Action: action}
	}
}

// StageFor returns the stage currently allowed to act on status, or "" when
// the status accepts no approval.
func StageFor(status string) string {
	return stageForStatus[status]
}

// ValidStage reports whether s names a known approval stage.
func ValidStage(s string) bool {
	switch s {
	case entity.StagePlanning, entity.StageManagement, entity.StageContractor:
		return true
	}
	return false
}

// ValidAction reports whether a names a known approval action.
func ValidAction(a string) bool {
	return a == entity.ActionApproved || a == entity.ActionRejected
}
