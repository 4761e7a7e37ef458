package dto

// FeedbackRequest is feedback typed on the student dashboard.
type FeedbackRequest struct {
	TeacherName       string `json:"teacherName" validate:"required"`
	Message           string `json:"message" validate:"required"`
	BehaviorRating    string `json:"behaviorRating" validate:"required"`
	PerformanceRating string `json:"performanceRating" validate:"required"`
}

// FeedbackResult acknowledges a stored feedback entry.
type FeedbackResult struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}
