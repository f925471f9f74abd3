package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Base carries the UUID primary key and timestamps shared by every model.
type Base struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// Studio is a tenant.
type Studio struct {
	Base
	Slug                       string `json:"slug" gorm:"uniqueIndex;size:120"`
	Name                       string `json:"name"`
	CalendarIntegrationEnabled bool   `json:"calendar_integration_enabled"`
}

// User is a public profile that may or may not have a StudioUser row yet.
type User struct {
	Base
	FullName string `json:"full_name"`
	Email    string `json:"email" gorm:"index"`
}

// StudioUser is a permissioned account inside a studio.
type StudioUser struct {
	Base
	StudioID string  `json:"studio_id" gorm:"index;size:36"`
	UserID   *string `json:"user_id,omitempty" gorm:"index;size:36"`
	FullName string  `json:"full_name"`
	Email    string  `json:"email"`
	IsActive bool    `json:"is_active" gorm:"index"`
}

type Event struct {
	Base
	StudioID  string    `json:"studio_id" gorm:"index;size:36"`
	PromiseID *string   `json:"promise_id,omitempty" gorm:"index;size:36"`
	Name      string    `json:"name"`
	EventDate time.Time `json:"event_date"`
}

type CrewMember struct {
	Base
	StudioID string `json:"studio_id" gorm:"index;size:36"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Type     string `json:"type"`
	IsActive bool   `json:"is_active"`
}

type CatalogSection struct {
	Base
	StudioID  string `json:"studio_id" gorm:"index;size:36"`
	Name      string `json:"name"`
	SortOrder int    `json:"order"`
}

type CatalogCategory struct {
	Base
	StudioID  string `json:"studio_id" gorm:"index;size:36"`
	SectionID string `json:"section_id" gorm:"index;size:36"`
	Name      string `json:"name"`
	SortOrder int    `json:"order"`
}

type CatalogItem struct {
	Base
	StudioID          string  `json:"studio_id" gorm:"index;size:36"`
	Name              string  `json:"name"`
	ServiceCategoryID *string `json:"service_category_id,omitempty" gorm:"size:36"`
	Cost              float64 `json:"cost"`
}

const (
	QuoteStatusPending  = "pending"
	QuoteStatusApproved = "approved"
)

type Quote struct {
	Base
	StudioID       string      `json:"studio_id" gorm:"index;size:36"`
	EventID        string      `json:"event_id" gorm:"index;size:36"`
	PromiseID      *string     `json:"promise_id,omitempty" gorm:"index;size:36"`
	Name           string      `json:"name"`
	Status         string      `json:"status" gorm:"index"`
	DiscountAmount float64     `json:"discount_amount"`
	Items          []QuoteItem `json:"items,omitempty"`
}

// QuoteItem is a priced line item. It links to at most one SchedulerTask.
type QuoteItem struct {
	Base
	QuoteID                string         `json:"quote_id" gorm:"index;size:36"`
	Name                   string         `json:"name"`
	ServiceCategoryID      *string        `json:"service_category_id,omitempty" gorm:"size:36"`
	CatalogItemID          *string        `json:"catalog_item_id,omitempty" gorm:"size:36"`
	CatalogItem            *CatalogItem   `json:"catalog_item,omitempty"`
	UnitPrice              float64        `json:"unit_price"`
	Cost                   float64        `json:"cost"`
	Quantity               int            `json:"quantity"`
	AssignedToCrewMemberID *string        `json:"assigned_to_crew_member_id,omitempty" gorm:"size:36"`
	SortOrder              int            `json:"order"`
	SchedulerTask          *SchedulerTask `json:"scheduler_task,omitempty" gorm:"foreignKey:QuoteItemID"`
}

type Payment struct {
	Base
	StudioID  string  `json:"studio_id" gorm:"index;size:36"`
	PromiseID string  `json:"promise_id" gorm:"index;size:36"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
}

// SchedulerInstance is the one scheduling window an event owns.
type SchedulerInstance struct {
	Base
	StudioID                       string         `json:"studio_id" gorm:"index;size:36"`
	EventID                        string         `json:"event_id" gorm:"uniqueIndex;size:36"`
	EventDate                      time.Time      `json:"event_date"`
	StartDate                      time.Time      `json:"start_date"`
	EndDate                        time.Time      `json:"end_date"`
	CustomCategoriesBySectionStage datatypes.JSON `json:"custom_categories_by_section_stage,omitempty"`
	ExplicitlyActivatedStageIDs    datatypes.JSON `json:"explicitly_activated_stage_ids,omitempty"`
}

// ChecklistItem is one entry of a task checklist.
type ChecklistItem struct {
	ID          string     `json:"id"`
	Label       string     `json:"label"`
	Done        bool       `json:"done"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Source      string     `json:"source,omitempty"`
}

// SchedulerTask is the unit of schedulable work. A task with QuoteItemID set
// is catalog-linked; otherwise it is manual.
type SchedulerTask struct {
	Base
	SchedulerInstanceID       string                             `json:"scheduler_instance_id" gorm:"index;size:36"`
	Name                      string                             `json:"name"`
	Description               string                             `json:"description"`
	StartDate                 time.Time                          `json:"start_date"`
	EndDate                   time.Time                          `json:"end_date"`
	DurationDays              int                                `json:"duration_days"`
	Category                  TaskCategory                       `json:"category" gorm:"index;size:32"`
	SectionID                 *string                            `json:"section_id,omitempty" gorm:"size:36"`
	CatalogCategoryID         *string                            `json:"catalog_category_id,omitempty" gorm:"index;size:36"`
	SchedulerCustomCategoryID *string                            `json:"scheduler_custom_category_id,omitempty" gorm:"index;size:36"`
	Status                    TaskStatus                         `json:"status" gorm:"size:32"`
	ProgressPercent           int                                `json:"progress_percent"`
	CompletedAt               *time.Time                         `json:"completed_at,omitempty"`
	Notes                     string                             `json:"notes"`
	ChecklistItems            datatypes.JSONSlice[ChecklistItem] `json:"checklist_items"`
	SortOrder                 int                                `json:"order"`
	BudgetAmount              *float64                           `json:"budget_amount,omitempty"`
	AssignedToCrewMemberID    *string                            `json:"assigned_to_crew_member_id,omitempty" gorm:"size:36"`
	QuoteItemID               *string                            `json:"quote_item_id,omitempty" gorm:"uniqueIndex;size:36"`
	SyncStatus                SyncStatus                         `json:"sync_status" gorm:"index;size:16"`
	InvitationStatus          *string                            `json:"invitation_status,omitempty" gorm:"size:16"`
	GoogleEventID             *string                            `json:"google_event_id,omitempty"`
	GoogleCalendarID          *string                            `json:"google_calendar_id,omitempty"`
	DependsOnTaskID           *string                            `json:"depends_on_task_id,omitempty" gorm:"size:36"`
	PendingDeletion           bool                               `json:"pending_deletion"`
	DetachedQuoteItemID       *string                            `json:"-" gorm:"size:36"`
	PublishedAt               *time.Time                         `json:"published_at,omitempty"`
}

// IsManual reports whether the task has no quote line item behind it.
func (t *SchedulerTask) IsManual() bool {
	return t.QuoteItemID == nil && t.DetachedQuoteItemID == nil
}

// SchedulerCustomCategory is an event-scoped category for one section and stage.
type SchedulerCustomCategory struct {
	Base
	SchedulerInstanceID string       `json:"scheduler_instance_id" gorm:"index;size:36"`
	SectionID           string       `json:"section_id" gorm:"size:36"`
	Stage               TaskCategory `json:"stage" gorm:"size:32"`
	Name                string       `json:"name"`
	SortOrder           int          `json:"order"`
}

const (
	ActivityCreated    = "created"
	ActivityUpdated    = "updated"
	ActivityAssigned   = "assigned"
	ActivityUnassigned = "unassigned"
	ActivityCompleted  = "completed"
	ActivityReopened   = "reopened"
	ActivityDeleted    = "deleted"
	ActivityPublished  = "published"
)

// TaskActivity is the per-task activity log.
type TaskActivity struct {
	Base
	TaskID      string         `json:"task_id" gorm:"index;size:36"`
	Action      string         `json:"action"`
	Description string         `json:"description"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
}

// ServiceSale is an external service sale that may point at a task.
type ServiceSale struct {
	Base
	StudioID        string  `json:"studio_id" gorm:"index;size:36"`
	SchedulerTaskID *string `json:"scheduler_task_id,omitempty" gorm:"index;size:36"`
	Amount          float64 `json:"amount"`
}

type ChecklistTemplateItem struct {
	Label string `json:"label"`
}

type ChecklistTemplate struct {
	Base
	StudioID  string                                     `json:"studio_id" gorm:"index;size:36"`
	Name      string                                     `json:"name"`
	Category  *TaskCategory                              `json:"category,omitempty" gorm:"size:32"`
	Items     datatypes.JSONSlice[ChecklistTemplateItem] `json:"items"`
	SortOrder int                                        `json:"order"`
	IsActive  bool                                       `json:"is_active"`
}

const (
	PayrollStatusPending   = "pending"
	PayrollStatusPaid      = "paid"
	PayrollStatusCancelled = "cancelled"
)

// Payroll is a crew payment record created when a task is completed.
type Payroll struct {
	Base
	StudioID              string           `json:"studio_id" gorm:"index;size:36"`
	EventID               string           `json:"event_id" gorm:"index;size:36"`
	CrewMemberID          string           `json:"crew_member_id" gorm:"index;size:36"`
	QuoteItemID           *string          `json:"quote_item_id,omitempty" gorm:"index;size:36"`
	Concept               string           `json:"concept"`
	TotalAmount           float64          `json:"total_amount"`
	Status                string           `json:"status" gorm:"index"`
	CreatedByStudioUserID string           `json:"created_by_studio_user_id" gorm:"size:36"`
	Services              []PayrollService `json:"services,omitempty"`
}

type PayrollService struct {
	Base
	PayrollID   string  `json:"payroll_id" gorm:"index;size:36"`
	QuoteItemID *string `json:"quote_item_id,omitempty" gorm:"size:36"`
	Name        string  `json:"name"`
	UnitCost    float64 `json:"unit_cost"`
	Quantity    int     `json:"quantity"`
	Amount      float64 `json:"amount"`
}

// AllModels is the migration set for the scheduler database.
func AllModels() []interface{} {
	return []interface{}{
		&Studio{}, &User{}, &StudioUser{}, &Event{}, &CrewMember{},
		&CatalogSection{}, &CatalogCategory{}, &CatalogItem{},
		&Quote{}, &QuoteItem{}, &Payment{},
		&SchedulerInstance{}, &SchedulerTask{}, &SchedulerCustomCategory{}, &TaskActivity{},
		&ServiceSale{}, &ChecklistTemplate{}, &Payroll{}, &PayrollService{},
	}
}
