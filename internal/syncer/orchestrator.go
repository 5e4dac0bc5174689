// Package syncer — движок синхронизации записей и покупок курсов в CRM.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"coursesync/internal/crm"
	"coursesync/internal/locks"
	"coursesync/internal/logs"
	"coursesync/internal/models"
	"coursesync/internal/repo"
	"coursesync/internal/tenancy"
)

type UserRepo interface {
	Get(ctx context.Context, id string) (*models.User, error)
	UpdateCRMRef(ctx context.Context, userID, contactID, locationID string, verifiedAt time.Time) error
}

type CourseRepo interface {
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	GetEnrollment(ctx context.Context, id string) (*models.Enrollment, error)
	GetPurchase(ctx context.Context, id string) (*models.Purchase, error)
	MarkEnrollmentSynced(ctx context.Context, id string, at time.Time) error
}

type AuditRepo interface {
	Append(ctx context.Context, rec *models.SyncAuditRecord) error
}

type LocationResolver interface {
	ResolveForUser(ctx context.Context, u *models.User) (tenancy.Location, error)
}

type ClientSource interface {
	Client(loc tenancy.Location) (crm.API, error)
}

type Config struct {
	DefaultAutomationID string
	// MembershipThreshold — в минорных единицах, сравнивается с новым total_spent.
	MembershipThreshold int64
	ContactCacheTTL     time.Duration
}

type Deps struct {
	Users    UserRepo
	Courses  CourseRepo
	Audit    AuditRepo
	Resolver LocationResolver
	Clients  ClientSource
	Locker   locks.Locker
}

// Options — необязательные параметры синхронизации записи.
type Options struct {
	PipelineID   string `json:"pipelineId,omitempty"`
	StageID      string `json:"stageId,omitempty"`
	AutomationID string `json:"automationId,omitempty"`
}

type Orchestrator struct {
	users    UserRepo
	courses  CourseRepo
	audit    AuditRepo
	resolver LocationResolver
	clients  ClientSource
	locker   locks.Locker
	cfg      Config

	reconciler *ContactReconciler
	access     *AccessGrantManager
	now        func() time.Time
}

func NewOrchestrator(d Deps, cfg Config) *Orchestrator {
	locker := d.Locker
	if locker == nil {
		locker = locks.NewMemory(0)
	}
	return &Orchestrator{
		users:      d.Users,
		courses:    d.Courses,
		audit:      d.Audit,
		resolver:   d.Resolver,
		clients:    d.Clients,
		locker:     locker,
		cfg:        cfg,
		reconciler: NewContactReconciler(cfg.ContactCacheTTL),
		access:     NewAccessGrantManager(),
		now:        time.Now,
	}
}

// session — пользователь, его клиент CRM и удерживаемая блокировка контакта.
type session struct {
	user   *models.User
	api    crm.API
	loc    tenancy.Location
	unlock func()
}

func (o *Orchestrator) open(ctx context.Context, u *models.User, rep *SyncReport) (*session, error) {
	loc, err := o.resolver.ResolveForUser(ctx, u)
	if err != nil {
		return nil, err
	}
	api, err := o.clients.Client(loc)
	if err != nil {
		return nil, err
	}
	rep.LocationID = loc.LocationID
	rep.log = rep.log.WithField("location_id", loc.LocationID)

	unlock, err := o.locker.Lock(ctx, locks.ContactKey(loc.LocationID, u.Email))
	if err != nil {
		return nil, fmt.Errorf("lock contact %s: %w", u.Email, err)
	}
	return &session{user: u, api: api, loc: loc, unlock: unlock}, nil
}

// reconcile + cache_update — общие первые шаги всех входов.
func (o *Orchestrator) reconcile(ctx context.Context, s *session, rep *SyncReport) (*crm.Contact, error) {
	c, err := o.reconciler.Reconcile(ctx, s.api, s.user.Email, s.user.Name, s.user.ContactHint())
	if err := rep.record(StepReconcile, err); err != nil {
		return nil, err
	}
	rep.ContactID = c.ID
	rep.log = rep.log.WithField("contact_id", c.ID)

	err = o.users.UpdateCRMRef(ctx, s.user.ID, c.ID, s.loc.LocationID, o.now().UTC())
	if err := rep.record(StepCacheUpdate, err); err != nil {
		return nil, fmt.Errorf("cache contact ref: %w", err)
	}
	return c, nil
}

// SyncEnrollment — запись на курс: контакт, доступ, воронка, автоматизация.
// Ошибка возвращается только при фатальном отказе; тогда запись остаётся несинхронизированной.
//
// Отмена ctx вызывающего синхронизацию не прерывает: начатая попытка доходит
// до конца и всегда оставляет запись аудита. Значения ctx (reqid) сохраняются.
func (o *Orchestrator) SyncEnrollment(ctx context.Context, enrollmentID string, opts Options) (*SyncReport, error) {
	ctx = context.WithoutCancel(ctx)
	rep := o.newReport(ctx, models.SyncActionEnroll)
	rep.EnrollmentID = enrollmentID
	rep.log = rep.log.WithField("enrollment_id", enrollmentID)

	e, err := o.courses.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return rep, notFound("enrollment", enrollmentID, err)
	}
	u, course, err := o.load(ctx, e.UserID, e.CourseID, rep)
	if err != nil {
		return rep, err
	}

	err = o.withSession(ctx, u, rep, func(s *session) error {
		c, err := o.reconcile(ctx, s, rep)
		if err != nil {
			return err
		}
		err = o.access.GrantAccess(ctx, s.api, c.ID, course.ID, course.Title)
		if err := rep.record(StepGrantAccess, err); err != nil {
			return err
		}

		_ = rep.record(StepPipelineMove, routeEnrollment(ctx, s.api, c.ID, opts.PipelineID, opts.StageID))

		automationID := opts.AutomationID
		if automationID == "" {
			automationID = o.cfg.DefaultAutomationID
		}
		if automationID != "" {
			_ = rep.record(StepAutomation, TriggerAutomation(ctx, s.api, c.ID, automationID))
		}

		err = o.courses.MarkEnrollmentSynced(ctx, enrollmentID, o.now().UTC())
		if err := rep.record(StepMarkSynced, err); err != nil {
			return fmt.Errorf("mark enrollment synced: %w", err)
		}
		return nil
	})
	return rep, o.finish(ctx, rep, err)
}

// SyncPurchase — контакт и накопленные траты; членство — только при пересечении порога.
func (o *Orchestrator) SyncPurchase(ctx context.Context, purchaseID string) (*SyncReport, error) {
	ctx = context.WithoutCancel(ctx)
	rep := o.newReport(ctx, models.SyncActionPurchase)
	rep.PurchaseID = purchaseID
	rep.log = rep.log.WithField("purchase_id", purchaseID)

	p, err := o.courses.GetPurchase(ctx, purchaseID)
	if err != nil {
		return rep, notFound("purchase", purchaseID, err)
	}
	if p.Status != models.PurchaseStatusCompleted {
		return rep, fmt.Errorf("%w: %w: purchase %s is %q", ErrNotFound, ErrPurchaseNotCompleted, purchaseID, p.Status)
	}
	u, _, err := o.load(ctx, p.UserID, p.CourseID, rep)
	if err != nil {
		return rep, err
	}

	err = o.withSession(ctx, u, rep, func(s *session) error {
		c, err := o.reconcile(ctx, s, rep)
		if err != nil {
			return err
		}

		written, total, err := o.addSpend(ctx, s.api, c.ID, p)
		if err := rep.record(StepSpendUpdate, err); err != nil {
			return err
		}
		if o.cfg.MembershipThreshold <= 0 || total < o.cfg.MembershipThreshold {
			return nil
		}
		fields := crm.CourseFields{
			MembershipStatus: crm.MembershipActive,
			MembershipTier:   crm.TierFor(total, o.cfg.MembershipThreshold),
		}
		_, err = s.api.UpdateCustomFields(ctx, c.ID, crm.Merge(written, fields.MembershipPatch()))
		if err != nil {
			err = fmt.Errorf("%w: membership: %w", ErrSpendUpdate, err)
		}
		return rep.record(StepMembershipUpdate, err)
	})
	return rep, o.finish(ctx, rep, err)
}

// addSpend — прочитать total_spent, прибавить, записать всю карту. Не атомарно
// относительно внешних правок, поэтому выполняется под блокировкой контакта.
func (o *Orchestrator) addSpend(ctx context.Context, api crm.API, contactID string, p *models.Purchase) (map[string]any, int64, error) {
	c, err := api.GetContactByID(ctx, contactID)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: get contact %s: %w", ErrSpendUpdate, contactID, err)
	}
	spent, err := crm.TotalSpent(c.CustomFields)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: contact %s: %w", ErrSpendUpdate, contactID, err)
	}
	total := spent + p.Amount
	at := p.CreatedAt
	if at.IsZero() {
		at = o.now()
	}
	written := crm.Merge(c.CustomFields, crm.CourseFields{TotalSpent: total}.SpendPatch(p.Amount, at))
	if _, err := api.UpdateCustomFields(ctx, contactID, written); err != nil {
		return nil, 0, fmt.Errorf("%w: update fields: %w", ErrSpendUpdate, err)
	}
	return written, total, nil
}

// RevokeEnrollment снимает доступ к курсу. Контакт не создаётся:
// если его нет, это ErrContactNotFound.
func (o *Orchestrator) RevokeEnrollment(ctx context.Context, userID, courseID string) (*SyncReport, error) {
	ctx = context.WithoutCancel(ctx)
	rep := o.newReport(ctx, models.SyncActionRevoke)
	u, course, err := o.load(ctx, userID, courseID, rep)
	if err != nil {
		return rep, err
	}

	err = o.withSession(ctx, u, rep, func(s *session) error {
		c, err := o.reconciler.Find(ctx, s.api, u.Email, u.ContactHint())
		if err := rep.record(StepReconcile, err); err != nil {
			return err
		}
		rep.ContactID = c.ID
		rep.log = rep.log.WithField("contact_id", c.ID)

		changed, err := o.access.RevokeAccess(ctx, s.api, c.ID, course.ID, course.Title)
		if err := rep.record(StepRevokeAccess, err); err != nil {
			return err
		}
		if !changed {
			rep.log.Debug("course not granted, nothing to revoke")
		}
		return nil
	})
	return rep, o.finish(ctx, rep, err)
}

func (o *Orchestrator) newReport(ctx context.Context, action string) *SyncReport {
	return &SyncReport{
		Action: action,
		log:    logs.FromContext(ctx).WithField("action", action),
	}
}

func (o *Orchestrator) load(ctx context.Context, userID, courseID string, rep *SyncReport) (*models.User, *models.Course, error) {
	u, err := o.users.Get(ctx, userID)
	if err != nil {
		return nil, nil, notFound("user", userID, err)
	}
	course, err := o.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, nil, notFound("course", courseID, err)
	}
	rep.UserID = u.ID
	rep.CourseID = course.ID
	rep.log = rep.log.WithFields(logrus.Fields{"user_id": u.ID, "course_id": course.ID})
	return u, course, nil
}

func (o *Orchestrator) withSession(ctx context.Context, u *models.User, rep *SyncReport, fn func(*session) error) error {
	s, err := o.open(ctx, u, rep)
	if err != nil {
		return err
	}
	defer s.unlock()
	return fn(s)
}

// finish пишет аудит: success при успехе, failed при фатальном отказе.
// Ошибка записи аудита не глотается.
func (o *Orchestrator) finish(ctx context.Context, rep *SyncReport, syncErr error) error {
	rec := &models.SyncAuditRecord{
		UserID: rep.UserID,
		Action: rep.Action,
		Status: models.SyncStatusSuccess,
	}
	if rep.EnrollmentID != "" {
		id := rep.EnrollmentID
		rec.EnrollmentID = &id
	}
	if syncErr != nil {
		rec.Status = models.SyncStatusFailed
		rec.ErrorMessage = syncErr.Error()
		rep.log.WithError(syncErr).Error("sync failed")
	} else {
		rep.log.WithField("warnings", len(rep.Outcomes)-countOK(rep.Outcomes)).Info("sync completed")
	}
	if raw, err := json.Marshal(rep); err == nil {
		rec.Response = datatypes.JSON(raw)
	}

	if err := o.audit.Append(ctx, rec); err != nil {
		auditErr := fmt.Errorf("%w: %w", ErrAuditWrite, err)
		rep.log.WithError(err).Error("audit write failed")
		if syncErr != nil {
			return errors.Join(syncErr, auditErr)
		}
		return auditErr
	}
	return syncErr
}

func countOK(outcomes []StepOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return fmt.Errorf("load %s %s: %w", kind, id, err)
}
