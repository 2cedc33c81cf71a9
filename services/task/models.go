package task

import "time"

const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusReview     = "review"
	StatusDone       = "done"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var (
	Statuses   = []string{StatusTodo, StatusInProgress, StatusReview, StatusDone}
	Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
)

type Task struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"size:200;not null"`
	Description string     `json:"description" gorm:"size:5000"`
	Status      string     `json:"status" gorm:"size:20;not null;default:todo;index"`
	Priority    string     `json:"priority" gorm:"size:20;not null;default:medium"`
	ProjectID   *uint      `json:"projectId" gorm:"index"`
	CreatorID   uint       `json:"creatorId" gorm:"not null;index"`
	AssigneeID  *uint      `json:"assigneeId" gorm:"index"`
	DueDate     *time.Time `json:"dueDate"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (Task) TableName() string {
	return "tasks"
}

// Actor is the caller a task operation is performed for.
type Actor struct {
	UserID  uint
	IsAdmin bool
}

type CreateInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	ProjectID   *uint      `json:"projectId"`
	AssigneeID  *uint      `json:"assigneeId"`
	DueDate     *time.Time `json:"dueDate"`
}

type UpdateInput struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	AssigneeID  *uint      `json:"assigneeId"`
	DueDate     *time.Time `json:"dueDate"`
}

type ListFilter struct {
	Status     string
	Priority   string
	ProjectID  uint
	AssigneeID uint
	Limit      int
	Offset     int
}
