package syncer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"coursesync/internal/crm"
)

type Step string

const (
	StepReconcile        Step = "reconcile"
	StepCacheUpdate      Step = "cache_update"
	StepGrantAccess      Step = "grant_access"
	StepRevokeAccess     Step = "revoke_access"
	StepPipelineMove     Step = "pipeline_move"
	StepAutomation       Step = "automation"
	StepSpendUpdate      Step = "spend_update"
	StepMembershipUpdate Step = "membership_update"
	StepMarkSynced       Step = "mark_synced"
)

// stepPolicy — таблица изоляции отказов: true — шаг фатален и прерывает синхронизацию.
var stepPolicy = map[Step]bool{
	StepReconcile:        true,
	StepCacheUpdate:      true,
	StepGrantAccess:      true,
	StepRevokeAccess:     true,
	StepPipelineMove:     false,
	StepAutomation:       false,
	StepSpendUpdate:      true,
	StepMembershipUpdate: true,
	StepMarkSynced:       true,
}

// IsFatal; шаг вне таблицы считается фатальным.
func IsFatal(s Step) bool {
	fatal, ok := stepPolicy[s]
	return !ok || fatal
}

// StepOutcome — Ok (Err == nil) или Failed{Err, Fatal}.
type StepOutcome struct {
	Step  Step
	Err   error
	Fatal bool
}

func (o StepOutcome) OK() bool { return o.Err == nil }

func (o StepOutcome) MarshalJSON() ([]byte, error) {
	out := struct {
		Step       Step   `json:"step"`
		OK         bool   `json:"ok"`
		Fatal      bool   `json:"fatal,omitempty"`
		Error      string `json:"error,omitempty"`
		StatusCode int    `json:"status_code,omitempty"`
		Body       string `json:"body,omitempty"`
	}{Step: o.Step, OK: o.OK()}
	if o.Err != nil {
		out.Fatal = o.Fatal
		out.Error = o.Err.Error()
		var apiErr *crm.APIError
		if errors.As(o.Err, &apiErr) {
			out.StatusCode = apiErr.StatusCode
			out.Body = apiErr.Body
		}
	}
	return json.Marshal(out)
}

// SyncReport — что произошло за одну попытку. Снимок уходит в аудит.
type SyncReport struct {
	Action       string
	UserID       string
	EnrollmentID string
	PurchaseID   string
	CourseID     string
	LocationID   string
	ContactID    string
	Outcomes     []StepOutcome

	warnings *multierror.Error
	log      *logrus.Entry
}

// record применяет таблицу: фатальная ошибка возвращается,
// нефатальная логируется, копится в warnings и поглощается.
func (r *SyncReport) record(step Step, err error) error {
	fatal := IsFatal(step)
	r.Outcomes = append(r.Outcomes, StepOutcome{Step: step, Err: err, Fatal: fatal})
	if err == nil {
		return nil
	}
	if fatal {
		return err
	}
	r.warnings = multierror.Append(r.warnings, fmt.Errorf("%w: %s: %w", ErrOptionalStep, step, err))
	if r.log != nil {
		r.log.WithField("step", string(step)).Warnf("best-effort step failed: %v", err)
	}
	return nil
}

// Outcome — последний исход шага, если шаг выполнялся.
func (r *SyncReport) Outcome(step Step) (StepOutcome, bool) {
	for i := len(r.Outcomes) - 1; i >= 0; i-- {
		if r.Outcomes[i].Step == step {
			return r.Outcomes[i], true
		}
	}
	return StepOutcome{}, false
}

// Warnings — все поглощённые ошибки необязательных шагов, либо nil.
func (r *SyncReport) Warnings() error {
	return r.warnings.ErrorOrNil()
}

func (r *SyncReport) MarshalJSON() ([]byte, error) {
	var warnings []string
	if r.warnings != nil {
		for _, e := range r.warnings.Errors {
			warnings = append(warnings, e.Error())
		}
	}
	return json.Marshal(struct {
		Action       string        `json:"action"`
		UserID       string        `json:"user_id,omitempty"`
		EnrollmentID string        `json:"enrollment_id,omitempty"`
		PurchaseID   string        `json:"purchase_id,omitempty"`
		CourseID     string        `json:"course_id,omitempty"`
		LocationID   string        `json:"location_id,omitempty"`
		ContactID    string        `json:"contact_id,omitempty"`
		Steps        []StepOutcome `json:"steps"`
		Warnings     []string      `json:"warnings,omitempty"`
	}{r.Action, r.UserID, r.EnrollmentID, r.PurchaseID, r.CourseID, r.LocationID, r.ContactID, r.Outcomes, warnings})
}
