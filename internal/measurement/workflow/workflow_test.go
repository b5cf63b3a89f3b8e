package workflow

import (
	"errors"
	"testing"

	"github.com/construtiva/obratrack/internal/measurement/entity"
)

func TestNextApprovalChain(t *testing.T) {
	status := entity.BulletinStatusSubmitted

	next, err := Next(status, entity.StagePlanning, entity.ActionApproved)
	if err != nil {
		t.Fatalf("planning approval failed: %v", err)
	}
	if next != entity.BulletinStatusPlanningApproved {
		t.Errorf("Expected planning_approved, got %s", next)
	}

	next, err = Next(next, entity.StageManagement, entity.ActionApproved)
	if err != nil {
		t.Fatalf("management approval failed: %v", err)
	}
	if next != entity.BulletinStatusManagementApproved {
		t.Errorf("Expected management_approved, got %s", next)
	}

	next, err = Next(next, entity.StageContractor, entity.ActionApproved)
	if err != nil {
		t.Fatalf("contractor approval failed: %v", err)
	}
	if next != entity.BulletinStatusContractorAgreed {
		t.Errorf("Expected contractor_agreed, got %s", next)
	}
}

func TestNextRejectionAtEveryStage(t *testing.T) {
	cases := []struct {
		status string
		stage  string
	}{
		{entity.BulletinStatusSubmitted, entity.StagePlanning},
		{entity.BulletinStatusPlanningApproved, entity.StageManagement},
		{entity.BulletinStatusManagementApproved, entity.StageContractor},
	}
	for _, c := range cases {
		next, err := Next(c.status, c.stage, entity.ActionRejected)
		if err != nil {
			t.Errorf("rejection from %s at %s failed: %v", c.status, c.stage, err)
			continue
		}
		if next != entity.BulletinStatusRejected {
			t.Errorf("rejection from %s: expected rejected, got %s", c.status, next)
		}
	}
}

// Every (status, stage, action) triple outside the transition table must
// fail with ErrInvalidTransition. This pins the table shut: adding a status
// or stage without wiring it here breaks the test.
func TestNextRejectsEverythingOffTable(t *testing.T) {
	statuses := []string{
		entity.BulletinStatusDraft,
		entity.BulletinStatusSubmitted,
		entity.BulletinStatusPlanningApproved,
		entity.BulletinStatusManagementApproved,
		entity.BulletinStatusContractorAgreed,
		entity.BulletinStatusRejected,
	}
	stages := []string{entity.StagePlanning, entity.StageManagement, entity.StageContractor, "auditor", ""}
	actions := []string{entity.ActionApproved, entity.ActionRejected, "deferred", ""}

	valid := map[[3]string]bool{
		{entity.BulletinStatusSubmitted, entity.StagePlanning, entity.ActionApproved}:            true,
		{entity.BulletinStatusSubmitted, entity.StagePlanning, entity.ActionRejected}:            true,
		{entity.BulletinStatusPlanningApproved, entity.StageManagement, entity.ActionApproved}:   true,
		{entity.BulletinStatusPlanningApproved, entity.StageManagement, entity.ActionRejected}:   true,
		{entity.BulletinStatusManagementApproved, entity.StageContractor, entity.ActionApproved}: true,
		{entity.BulletinStatusManagementApproved, entity.StageContractor, entity.ActionRejected}: true,
	}

	for _, status := range statuses {
		for _, stage := range stages {
			for _, action := range actions {
				_, err := Next(status, stage, action)
				if valid[[3]string{status, stage, action}] {
					if err != nil {
						t.Errorf("expected (%s, %s, %s) to succeed, got %v", status, stage, action, err)
					}
					continue
				}
				if err == nil {
					t.Errorf("expected (%s, %s, %s) to fail", status, stage, action)
					continue
				}
				var inv *ErrInvalidTransition
				if !errors.As(err, &inv) {
					t.Errorf("(%s, %s, %s): expected ErrInvalidTransition, got %T", status, stage, action, err)
				}
			}
		}
	}
}

func TestStageFor(t *testing.T) {
	if got := StageFor(entity.BulletinStatusSubmitted); got != entity.StagePlanning {
		t.Errorf("Expected planning for submitted, got %q", got)
	}
	if got := StageFor(entity.BulletinStatusDraft); got != "" {
		t.Errorf("Expected no stage for draft, got %q", got)
	}
	if got := StageFor(entity.BulletinStatusContractorAgreed); got != "" {
		t.Errorf("Expected no stage for contractor_agreed, got %q", got)
	}
}

func TestValidStageAndAction(t *testing.T) {
	for _, s := range []string{entity.StagePlanning, entity.StageManagement, entity.StageContractor} {
		if !ValidStage(s) {
			t.Errorf("Expected %q to be a valid stage", s)
		}
	}
	if ValidStage("auditor") || ValidStage("") {
		t.Error("Unknown stage accepted")
	}
	if !ValidAction(entity.ActionApproved) || !ValidAction(entity.ActionRejected) {
		t.Error("Known action rejected")
	}
	if ValidAction("deferred") || ValidAction("") {
		t.Error("Unknown action accepted")
	}
}
