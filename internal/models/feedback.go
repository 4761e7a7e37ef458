package models

import "time"

// CollectionFeedback is the append-only collection of student feedback entries.
const CollectionFeedback = "feedback"

// FeedbackEntry is feedback a student leaves for a teacher.
type FeedbackEntry struct {
	ID                string    `json:"id,omitempty"`
	StudentName       string    `json:"studentName"`
	TeacherName       string    `json:"teacherName"`
	Message           string    `json:"message"`
	BehaviorRating    string    `json:"behaviorRating"`
	PerformanceRating string    `json:"performanceRating"`
	StudentID         string    `json:"studentId"`
	Timestamp         time.Time `json:"timestamp"`
	Date              string    `json:"date"`
}
