// Package collab holds stand-in implementations of the external collaborator
// interfaces (enrollment, notifications). Real deployments swap these for
// clients of the course-management and notification services.
package collab

import (
	"context"
	"log"
	"sync"
)

// AllowAllEnrollment treats every student as enrolled. Used when the quiz is
// free-preview eligible or enrollment is enforced upstream.
type AllowAllEnrollment struct{}

func (AllowAllEnrollment) IsEnrolled(context.Context, string, string) (bool, error) {
	return true, nil
}

// StaticEnrollment is a fixed in-memory enrollment table, mostly for tests.
type StaticEnrollment struct {
	mu      sync.RWMutex
	courses map[string]map[string]bool // studentID -> courseID -> enrolled
}

func NewStaticEnrollment() *StaticEnrollment {
	return &StaticEnrollment{courses: make(map[string]map[string]bool)}
}

func (e *StaticEnrollment) Enroll(studentID, courseID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.courses[studentID] == nil {
		e.courses[studentID] = make(map[string]bool)
	}
	e.courses[studentID][courseID] = true
}

func (e *StaticEnrollment) IsEnrolled(_ context.Context, studentID, courseID string) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.courses[studentID][courseID], nil
}

// LogNotifier writes notifications to the process log. Delivery is
// fire-and-forget either way, so this is enough for local runs.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, userID, title, message, link string) error {
	log.Printf("notify %s: %s: %s (%s)", userID, title, message, link)
	return nil
}
