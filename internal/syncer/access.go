package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coursesync/internal/crm"
)

const (
	AccessTag       = "Course Access"
	CourseTagPrefix = "Course: "
)

func CourseTag(courseName string) string { return CourseTagPrefix + courseName }

// AccessGrantManager держит согласованными теги курсов и enrolled_courses.
// Согласованность только по соглашению, атомарности нет.
type AccessGrantManager struct {
	now func() time.Time
}

func NewAccessGrantManager() *AccessGrantManager {
	return &AccessGrantManager{now: time.Now}
}

// GrantAccess идемпотентен: курс попадает в список один раз, счётчик пересчитывается.
// При первой выдаче запоминается, был ли "Course Access" на контакте раньше.
func (m *AccessGrantManager) GrantAccess(ctx context.Context, api crm.API, contactID, courseID, courseName string) error {
	before, err := m.contact(ctx, api, contactID)
	if err != nil {
		return err
	}
	var external *bool
	if len(crm.ParseCourseFields(before.CustomFields).EnrolledCourses) == 0 {
		had, err := hasAccessTag(ctx, api, before)
		if err != nil {
			return err
		}
		external = &had
	}
	if err := api.AddTagsToContact(ctx, contactID, []string{CourseTag(courseName), AccessTag}); err != nil {
		return fmt.Errorf("%w: add tags: %w", ErrAccessGrant, err)
	}
	c, err := m.contact(ctx, api, contactID)
	if err != nil {
		return err
	}

	fields := crm.ParseCourseFields(c.CustomFields)
	fields.AddCourse(courseID)
	at := m.now().UTC()
	fields.LastCoursePurchase = &at

	patch := fields.EnrollmentPatch()
	if external != nil {
		patch[crm.FieldCourseAccessExternal] = *external
	}
	if _, err := api.UpdateCustomFields(ctx, contactID, crm.Merge(c.CustomFields, patch)); err != nil {
		return fmt.Errorf("%w: update fields: %w", ErrAccessGrant, err)
	}
	return nil
}

// RevokeAccess снимает тег курса и убирает курс из списка. Курса в списке нет —
// ничего не делает. "Course Access" снимается, только когда список опустел
// и тег поставили мы.
func (m *AccessGrantManager) RevokeAccess(ctx context.Context, api crm.API, contactID, courseID, courseName string) (changed bool, err error) {
	c, err := m.contact(ctx, api, contactID)
	if err != nil {
		return false, err
	}
	fields := crm.ParseCourseFields(c.CustomFields)
	if !fields.RemoveCourse(courseID) {
		return false, nil
	}
	external, _ := c.CustomFields[crm.FieldCourseAccessExternal].(bool)
	dropAccess := len(fields.EnrolledCourses) == 0 && !external

	tags, err := api.ListTags(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: list tags: %w", ErrAccessGrant, err)
	}
	var remove []string
	for _, t := range tags {
		if t.Name == CourseTag(courseName) && c.HasTag(t.ID) {
			remove = append(remove, t.ID)
		}
		if dropAccess && strings.EqualFold(t.Name, AccessTag) && c.HasTag(t.ID) {
			remove = append(remove, t.ID)
		}
	}
	if len(remove) > 0 {
		if err := api.RemoveTagsFromContact(ctx, contactID, remove); err != nil {
			return false, fmt.Errorf("%w: remove tags: %w", ErrAccessGrant, err)
		}
	}

	if _, err := api.UpdateCustomFields(ctx, contactID, crm.Merge(c.CustomFields, fields.EnrollmentPatch())); err != nil {
		return true, fmt.Errorf("%w: update fields: %w", ErrAccessGrant, err)
	}
	return true, nil
}

func hasAccessTag(ctx context.Context, api crm.API, c *crm.Contact) (bool, error) {
	tags, err := api.ListTags(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: list tags: %w", ErrAccessGrant, err)
	}
	for _, t := range tags {
		if strings.EqualFold(t.Name, AccessTag) && c.HasTag(t.ID) {
			return true, nil
		}
	}
	return false, nil
}

// contact — неявно контакт не создаём никогда.
func (m *AccessGrantManager) contact(ctx context.Context, api crm.API, contactID string) (*crm.Contact, error) {
	c, err := api.GetContactByID(ctx, contactID)
	if crm.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %w: %s", ErrAccessGrant, ErrContactNotFound, contactID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get contact %s: %w", ErrAccessGrant, contactID, err)
	}
	return c, nil
}
