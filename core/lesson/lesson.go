package lesson

import "time"

// Section groups lessons inside a regular course.
type Section struct {
	ID        int64     `json:"id" db:"section_id"`
	CourseID  int64     `json:"courseId" db:"course_id"`
	Title     string    `json:"title" db:"title"`
	Position  int       `json:"position" db:"position"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type SectionNew struct {
	Title string `json:"title" validate:"required"`
}

type Lesson struct {
	ID          int64     `json:"id" db:"lesson_id"`
	SectionID   int64     `json:"sectionId" db:"section_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	VideoURL    string    `json:"-" db:"video_url"`
	Preview     bool      `json:"isPreview" db:"preview"`
	Position    int       `json:"position" db:"position"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// Reorder is one (id, position) assignment in a reorder request.
type Reorder struct {
	ID       int64 `json:"id" validate:"required"`
	Position int   `json:"position" validate:"gte=1"`
}
