package enrollment

import "time"

// Enrollment is a user's access grant to a course. OrderID is set for paid
// enrollments and NULL for free or manual ones.
type Enrollment struct {
	ID             int64     `json:"id" db:"enrollment_id"`
	UserID         int64     `json:"userId" db:"user_id"`
	CourseID       int64     `json:"courseId" db:"course_id"`
	Progress       int       `json:"progress" db:"progress"`
	OrderID        *int64    `json:"orderId" db:"order_id"`
	LastAccessedAt time.Time `json:"lastAccessedAt" db:"last_accessed_at"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

type EnrollmentNew struct {
	CourseID int64 `json:"courseId" validate:"required,gt=0"`
}
