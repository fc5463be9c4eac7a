package course

import (
	"time"

	"github.com/lib/pq"
)

type Course struct {
	ID           int64          `json:"id" db:"course_id"`
	InstructorID int64          `json:"instructorId" db:"instructor_id"`
	CategoryID   *int64         `json:"categoryId" db:"category_id"`
	Title        string         `json:"title" db:"title"`
	Description  string         `json:"description" db:"description"`
	Tags         pq.StringArray `json:"tags" db:"tags"`
	ImageURL     string         `json:"imageUrl" db:"image_url"`
	VideoURL     string         `json:"videoUrl" db:"video_url"`
	Micro        bool           `json:"isMicroCourse" db:"micro"`
	Approved     bool           `json:"isApproved" db:"approved"`
	Price        int            `json:"price" db:"price"`
	CreatedAt    time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time      `json:"updatedAt" db:"updated_at"`
}

type CourseNew struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Tags        []string `json:"tags"`
	CategoryID  *int64   `json:"categoryId"`
	Micro       bool     `json:"isMicroCourse"`
	Price       int      `json:"price" validate:"gte=0,lte=100000"`
}

type CourseUp struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
	Price       *int     `json:"price" validate:"omitempty,gte=0,lte=100000"`
}

type Category struct {
	ID   int64  `json:"id" db:"category_id"`
	Name string `json:"name" db:"name"`
	Icon string `json:"icon" db:"icon"`
}
