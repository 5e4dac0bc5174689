package crm

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Ключи в customFields контакта.
const (
	FieldEnrolledCourses      = "enrolled_courses"
	FieldTotalCoursesEnrolled = "total_courses_enrolled"
	FieldLastCoursePurchase   = "last_course_purchase"
	FieldTotalSpent           = "total_spent"
	FieldMembershipStatus     = "membership_status"
	FieldMembershipTier       = "membership_tier"
	FieldLastPurchaseAmount   = "last_purchase_amount"
	FieldLastPurchaseDate     = "last_purchase_date"
	// FieldCourseAccessExternal — "Course Access" висел на контакте до первой
	// выдачи курса, значит его поставили не мы и снимать его при отзыве нельзя.
	FieldCourseAccessExternal = "course_access_external"
)

type MembershipStatus string

const (
	MembershipNone   MembershipStatus = ""
	MembershipActive MembershipStatus = "active"
)

type MembershipTier string

const (
	TierNone     MembershipTier = ""
	TierSilver   MembershipTier = "silver"
	TierGold     MembershipTier = "gold"
	TierPlatinum MembershipTier = "platinum"
)

// TierFor — уровень по суммарным тратам относительно порога.
func TierFor(totalSpent, threshold int64) MembershipTier {
	switch {
	case threshold <= 0 || totalSpent < threshold:
		return TierNone
	case totalSpent >= 5*threshold:
		return TierPlatinum
	case totalSpent >= 2*threshold:
		return TierGold
	default:
		return TierSilver
	}
}

// CourseFields — типизированное представление нашей части customFields.
// В сырую карту превращается только на границе с CRM.
type CourseFields struct {
	EnrolledCourses    []string
	LastCoursePurchase *time.Time
	TotalSpent         int64
	MembershipStatus   MembershipStatus
	MembershipTier     MembershipTier
}

// TotalCoursesEnrolled всегда считается по списку; сохранённому счётчику не верим.
func (f CourseFields) TotalCoursesEnrolled() int { return len(f.EnrolledCourses) }

func ParseCourseFields(bag map[string]any) CourseFields {
	var f CourseFields
	if bag == nil {
		return f
	}
	f.EnrolledCourses = stringList(bag[FieldEnrolledCourses])
	f.TotalSpent = int64Value(bag[FieldTotalSpent])
	if s, ok := bag[FieldMembershipStatus].(string); ok {
		f.MembershipStatus = MembershipStatus(s)
	}
	if s, ok := bag[FieldMembershipTier].(string); ok {
		f.MembershipTier = MembershipTier(s)
	}
	if s, ok := bag[FieldLastCoursePurchase].(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			f.LastCoursePurchase = &t
		}
	}
	return f
}

// HasCourse / AddCourse / RemoveCourse — упорядоченное множество id курсов.
func (f *CourseFields) HasCourse(courseID string) bool {
	for _, id := range f.EnrolledCourses {
		if id == courseID {
			return true
		}
	}
	return false
}

func (f *CourseFields) AddCourse(courseID string) bool {
	if f.HasCourse(courseID) {
		return false
	}
	f.EnrolledCourses = append(f.EnrolledCourses, courseID)
	return true
}

func (f *CourseFields) RemoveCourse(courseID string) bool {
	out := make([]string, 0, len(f.EnrolledCourses))
	for _, id := range f.EnrolledCourses {
		if id != courseID {
			out = append(out, id)
		}
	}
	removed := len(out) != len(f.EnrolledCourses)
	f.EnrolledCourses = out
	return removed
}

// EnrollmentPatch — поля, которые пишет выдача/отзыв доступа.
func (f CourseFields) EnrollmentPatch() map[string]any {
	courses := f.EnrolledCourses
	if courses == nil {
		courses = []string{}
	}
	p := map[string]any{
		FieldEnrolledCourses:      courses,
		FieldTotalCoursesEnrolled: f.TotalCoursesEnrolled(),
	}
	if f.LastCoursePurchase != nil {
		p[FieldLastCoursePurchase] = f.LastCoursePurchase.UTC().Format(time.RFC3339)
	}
	return p
}

// SpendPatch — поля покупки. Сумма последней покупки пишется в мажорных единицах.
func (f CourseFields) SpendPatch(lastAmount int64, at time.Time) map[string]any {
	return map[string]any{
		FieldTotalSpent:         f.TotalSpent,
		FieldLastPurchaseAmount: decimal.New(lastAmount, -2).StringFixed(2),
		FieldLastPurchaseDate:   at.UTC().Format(time.RFC3339),
	}
}

// MembershipPatch пишется отдельно и только после пересечения порога.
func (f CourseFields) MembershipPatch() map[string]any {
	return map[string]any{
		FieldMembershipStatus: string(f.MembershipStatus),
		FieldMembershipTier:   string(f.MembershipTier),
	}
}

// Merge — «прочитать текущее, развернуть в новый объект, перекрыть явными
// значениями». Пишется затем вся карта целиком; чужие ключи сохраняются.
func Merge(current, patch map[string]any) map[string]any {
	out := make(map[string]any, len(current)+len(patch))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

func stringList(v any) []string {
	switch xs := v.(type) {
	case []string:
		return append([]string(nil), xs...)
	case []any:
		out := make([]string, 0, len(xs))
		for _, x := range xs {
			switch s := x.(type) {
			case string:
				out = append(out, s)
			case float64:
				out = append(out, strconv.FormatFloat(s, 'f', -1, 64))
			}
		}
		return out
	default:
		return nil
	}
}

// TotalSpent — строгое чтение total_spent для read-increment-write: нет поля — 0,
// нецелое или нечисловое значение — ошибка, а не ноль.
func TotalSpent(bag map[string]any) (int64, error) {
	v, ok := bag[FieldTotalSpent]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.Abs(n) >= 1<<63 {
			return 0, fmt.Errorf("%s: not an integer amount: %v", FieldTotalSpent, n)
		}
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%s: %w", FieldTotalSpent, err)
		}
		return i, nil
	case string:
		if n == "" {
			return 0, nil
		}
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: not an integer amount: %q", FieldTotalSpent, n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%s: unexpected type %T", FieldTotalSpent, v)
	}
}

func int64Value(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}
