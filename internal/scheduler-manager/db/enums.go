package db

// TaskCategory is the production stage a task belongs to.
type TaskCategory string

const (
	CategoryPlanning       TaskCategory = "PLANNING"
	CategoryProduction     TaskCategory = "PRODUCTION"
	CategoryPostProduction TaskCategory = "POST_PRODUCTION"
	CategoryReview         TaskCategory = "REVIEW"
	CategoryDelivery       TaskCategory = "DELIVERY"
	CategoryWarranty       TaskCategory = "WARRANTY"
)

// Stages lists the categories in workflow order.
var Stages = []TaskCategory{
	CategoryPlanning, CategoryProduction, CategoryPostProduction,
	CategoryReview, CategoryDelivery, CategoryWarranty,
}

// StageIndex returns the workflow position of c, or len(Stages) when unknown.
func StageIndex(c TaskCategory) int {
	for i, s := range Stages {
		if s == c {
			return i
		}
	}
	return len(Stages)
}

// ParseCategory returns the matching category and whether it was valid.
// Invalid input falls back to PLANNING.
func ParseCategory(s string) (TaskCategory, bool) {
	c := TaskCategory(s)
	if StageIndex(c) < len(Stages) {
		return c, true
	}
	return CategoryPlanning, false
}

type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskBlocked    TaskStatus = "BLOCKED"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskCancelled  TaskStatus = "CANCELLED"
)

type SyncStatus string

const (
	SyncDraft     SyncStatus = "DRAFT"
	SyncPublished SyncStatus = "PUBLISHED"
	SyncInvited   SyncStatus = "INVITED"
)

const (
	InvitationPending  = "PENDING"
	InvitationAccepted = "ACCEPTED"
	InvitationDeclined = "DECLINED"
	InvitationError    = "ERROR"
)
