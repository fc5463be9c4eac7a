package test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/skillhive/skillhive/core/enrollment"
)

type enrollmentTest struct {
	*TestEnv
}

// enrollOK enrolls the seeded learner through the free path.
func (et *enrollmentTest) enrollOK(t *testing.T, courseID int64, wantStatus int) enrollment.Enrollment {
	t.Helper()

	if err := Login(et.Server, et.UserEmail, et.UserPass); err != nil {
		t.Fatal(err)
	}
	defer Logout(et.Server)

	body := fmt.Sprintf(`{"courseId":%d}`, courseID)

	r, err := http.NewRequest(http.MethodPost, et.URL+"/course/enrollments", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", "application/json")

	w, err := et.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != wantStatus {
		t.Fatalf("enrolling in course[%d]: got status %s, want %d", courseID, w.Status, wantStatus)
	}

	var e enrollment.Enrollment
	if err := json.NewDecoder(w.Body).Decode(&e); err != nil {
		t.Fatalf("cannot unmarshal enrollment: %v", err)
	}
	return e
}

func TestFreeEnrollment(t *testing.T) {
	env, err := NewTestEnv(t, "enrollment_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}
	et := &enrollmentTest{env}

	c := ct.createCourseOK(t, 0)

	first := et.enrollOK(t, c.ID, http.StatusCreated)
	if first.OrderID != nil {
		t.Fatal("a free enrollment must not reference an order")
	}
	if first.Progress != 0 {
		t.Fatalf("a fresh enrollment starts at zero progress, got %d", first.Progress)
	}

	// Enrolling again is a no-op that returns the existing grant.
	second := et.enrollOK(t, c.ID, http.StatusOK)
	if second.ID != first.ID {
		t.Fatalf("repeated enrollment minted a second grant: %d then %d", first.ID, second.ID)
	}

	ct.listCoursesOwnedOK(t, []int64{c.ID})
}

// TestEnrollmentUniqueness drives the store directly: the second insert of
// the same (user, course) pair must surface ErrDuplicate, which is what the
// handlers lean on when two verifications race.
func TestEnrollmentUniqueness(t *testing.T) {
	env, err := NewTestEnv(t, "enrollment_race_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &courseTest{env}
	c := ct.createCourseOK(t, 0)

	ctx := context.Background()
	now := time.Now().UTC()
	e := enrollment.Enrollment{
		UserID:         env.User.ID,
		CourseID:       c.ID,
		LastAccessedAt: now,
		CreatedAt:      now,
	}

	if _, err := enrollment.Create(ctx, env.DB, e); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	if _, err := enrollment.Create(ctx, env.DB, e); !errors.Is(err, enrollment.ErrDuplicate) {
		t.Fatalf("second insert: got %v, want ErrDuplicate", err)
	}
}
