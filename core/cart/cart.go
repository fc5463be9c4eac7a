package cart

import "time"

// Item is one (user, course) pairing awaiting checkout.
type Item struct {
	UserID    int64     `json:"-" db:"user_id"`
	CourseID  int64     `json:"courseId" db:"course_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type ItemNew struct {
	CourseID int64 `json:"courseId" validate:"required,gt=0"`
}
