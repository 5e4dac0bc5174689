package crm

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCourseFields_FromWire(t *testing.T) {
	var bag map[string]any
	raw := `{"enrolled_courses":["c1","c2"],"total_courses_enrolled":7,"total_spent":10000,
		"membership_status":"active","membership_tier":"silver","other":"kept"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &bag))

	f := ParseCourseFields(bag)
	assert.Equal(t, []string{"c1", "c2"}, f.EnrolledCourses)
	assert.Equal(t, 2, f.TotalCoursesEnrolled(), "stored counter is ignored")
	assert.Equal(t, int64(10000), f.TotalSpent)
	assert.Equal(t, MembershipActive, f.MembershipStatus)
	assert.Equal(t, TierSilver, f.MembershipTier)
}

func TestParseCourseFields_NotAnArray(t *testing.T) {
	f := ParseCourseFields(map[string]any{"enrolled_courses": "c1"})
	assert.Empty(t, f.EnrolledCourses)

	f = ParseCourseFields(nil)
	assert.Empty(t, f.EnrolledCourses)
	assert.Zero(t, f.TotalSpent)
}

func TestCourseFields_AddRemoveCourse(t *testing.T) {
	var f CourseFields
	assert.True(t, f.AddCourse("c1"))
	assert.False(t, f.AddCourse("c1"))
	assert.True(t, f.AddCourse("c2"))
	assert.Equal(t, []string{"c1", "c2"}, f.EnrolledCourses)

	assert.False(t, f.RemoveCourse("c9"))
	assert.True(t, f.RemoveCourse("c1"))
	assert.Equal(t, []string{"c2"}, f.EnrolledCourses)
}

func TestMerge_KeepsForeignKeys(t *testing.T) {
	current := map[string]any{"source": "ads", FieldTotalSpent: 5.0}
	f := CourseFields{EnrolledCourses: []string{"c1"}}

	out := Merge(current, f.EnrollmentPatch())
	assert.Equal(t, "ads", out["source"])
	assert.Equal(t, 5.0, out[FieldTotalSpent])
	assert.Equal(t, []string{"c1"}, out[FieldEnrolledCourses])
	assert.Equal(t, 1, out[FieldTotalCoursesEnrolled])
	assert.NotContains(t, current, FieldEnrolledCourses, "input map is not mutated")
}

func TestEnrollmentPatch_EmptyListIsArray(t *testing.T) {
	p := CourseFields{}.EnrollmentPatch()
	assert.Equal(t, []string{}, p[FieldEnrolledCourses])
	assert.Equal(t, 0, p[FieldTotalCoursesEnrolled])
}

func TestSpendPatch(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f := CourseFields{TotalSpent: 110000, MembershipStatus: MembershipActive, MembershipTier: TierSilver}

	p := f.SpendPatch(60000, at)
	assert.Equal(t, int64(110000), p[FieldTotalSpent])
	assert.Equal(t, "600.00", p[FieldLastPurchaseAmount])
	assert.Equal(t, "2026-05-01T12:00:00Z", p[FieldLastPurchaseDate])
	assert.NotContains(t, p, FieldMembershipStatus)

	m := f.MembershipPatch()
	assert.Equal(t, map[string]any{FieldMembershipStatus: "active", FieldMembershipTier: "silver"}, m)
}

func TestTierFor(t *testing.T) {
	const threshold = 100000
	assert.Equal(t, TierNone, TierFor(99999, threshold))
	assert.Equal(t, TierSilver, TierFor(110000, threshold))
	assert.Equal(t, TierGold, TierFor(200000, threshold))
	assert.Equal(t, TierPlatinum, TierFor(500000, threshold))
	assert.Equal(t, TierNone, TierFor(500000, 0))
}

func TestTotalSpent(t *testing.T) {
	var bag map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"total_spent":60000}`), &bag))
	got, err := TotalSpent(bag)
	require.NoError(t, err)
	assert.Equal(t, int64(60000), got)

	got, err = TotalSpent(map[string]any{"other": 1})
	require.NoError(t, err)
	assert.Zero(t, got)

	got, err = TotalSpent(map[string]any{FieldTotalSpent: "1500"})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), got)

	for _, bad := range []any{"600.00", "n/a", 600.5, true} {
		_, err := TotalSpent(map[string]any{FieldTotalSpent: bad})
		assert.Error(t, err, "%v", bad)
	}
}
