package model

import "time"

// Role identifies what a user is allowed to do in the portal.
type Role string

const (
	RoleAdmin     Role = "Admin"
	RoleRecruiter Role = "Recruiter"
	RoleCandidate Role = "Candidate"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleRecruiter, RoleCandidate:
		return true
	}
	return false
}

// JobStatus is the lifecycle state of a job posting.
type JobStatus string

const (
	JobActive   JobStatus = "Active"
	JobArchived JobStatus = "Archived"
	JobClosed   JobStatus = "Closed"
	JobFlagged  JobStatus = "Flagged"
)

// ApplicationStatus is the review state of a submitted application.
type ApplicationStatus string

const (
	AppPending     ApplicationStatus = "Pending"
	AppReviewed    ApplicationStatus = "Reviewed"
	AppShortlisted ApplicationStatus = "Shortlisted"
	AppAccepted    ApplicationStatus = "Accepted"
	AppRejected    ApplicationStatus = "Rejected"
	AppWithdrawn   ApplicationStatus = "Withdrawn"
)

// Valid reports whether s is one of the known application statuses.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case AppPending, AppReviewed, AppShortlisted, AppAccepted, AppRejected, AppWithdrawn:
		return true
	}
	return false
}

// NotificationKind distinguishes delivery channels.
type NotificationKind string

const (
	NotifyEmail  NotificationKind = "email"
	NotifySystem NotificationKind = "system"
)

// User is the profile the gateway returns for an authenticated caller.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	IsActive bool   `json:"is_active"`
}

// AuthResponse is the payload returned by a successful login.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// RegisterRequest is the payload for creating a new account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// Job is a remote job posting record. The client never holds an
// authoritative copy; fetched jobs are caches invalidated by refetch.
type Job struct {
	ID          string    `json:"id"`
	RecruiterID string    `json:"recruiter_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	SalaryRange string    `json:"salary_range,omitempty"`
	Status      JobStatus `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// JobCreate is the payload a recruiter posts to create a job.
type JobCreate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	SalaryRange string `json:"salary_range,omitempty"`
}

// Application is a remote application record.
type Application struct {
	ID           string            `json:"id"`
	JobID        string            `json:"job_id"`
	CandidateID  string            `json:"candidate_id"`
	Status       ApplicationStatus `json:"status"`
	ResumeFileID string            `json:"resume_file_id"`
	AppliedAt    time.Time         `json:"applied_at"`
}

// Notification is an async message for one user. ReadStatus may be
// flipped locally ahead of server confirmation.
type Notification struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	Message    string           `json:"message"`
	Kind       NotificationKind `json:"type"`
	ReadStatus bool             `json:"read_status"`
	CreatedAt  time.Time        `json:"created_at"`
}
