package task

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/tech-arch1tect/newsdesk/apperror"
	"github.com/tech-arch1tect/newsdesk/internal/pagination"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ProjectLookup interface {
	Exists(ctx context.Context, id uint) (bool, error)
}

// Directory reports which of the given user ids belong to active accounts.
type Directory interface {
	ActiveUserIDs(ctx context.Context, ids []uint) ([]uint, error)
}

type Service struct {
	db       *gorm.DB
	projects ProjectLookup
	users    Directory
	logger   *logging.Service
	now      func() time.Time
}

func NewService(db *gorm.DB, projects ProjectLookup, users Directory, logger *logging.Service) *Service {
	return &Service{
		db:       db,
		projects: projects,
		users:    users,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func validateTitle(title string) error {
	if title == "" {
		return apperror.BadRequest("Task title is required")
	}
	if len(title) > 200 {
		return apperror.BadRequest("Task title must be at most 200 characters")
	}
	return nil
}

func validateStatus(status string) error {
	if !slices.Contains(Statuses, status) {
		return apperror.BadRequest("Invalid task status: " + status)
	}
	return nil
}

func validatePriority(priority string) error {
	if !slices.Contains(Priorities, priority) {
		return apperror.BadRequest("Invalid task priority: " + priority)
	}
	return nil
}

func (s *Service) checkAssignee(ctx context.Context, assigneeID *uint) error {
	if assigneeID == nil || s.users == nil {
		return nil
	}
	active, err := s.users.ActiveUserIDs(ctx, []uint{*assigneeID})
	if err != nil {
		return apperror.Internal("Failed to validate assignee", err)
	}
	if len(active) == 0 {
		return apperror.BadRequest("Assignee does not exist")
	}
	return nil
}

func (s *Service) checkProject(ctx context.Context, projectID *uint) error {
	if projectID == nil || s.projects == nil {
		return nil
	}
	exists, err := s.projects.Exists(ctx, *projectID)
	if err != nil {
		return err
	}
	if !exists {
		return apperror.BadRequest("Project does not exist")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, actor Actor, input CreateInput) (*Task, error) {
	title := strings.TrimSpace(input.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if input.Status == "" {
		input.Status = StatusTodo
	}
	if input.Priority == "" {
		input.Priority = PriorityMedium
	}
	if err := validateStatus(input.Status); err != nil {
		return nil, err
	}
	if err := validatePriority(input.Priority); err != nil {
		return nil, err
	}
	if err := s.checkProject(ctx, input.ProjectID); err != nil {
		return nil, err
	}
	if err := s.checkAssignee(ctx, input.AssigneeID); err != nil {
		return nil, err
	}

	t := &Task{
		Title:       title,
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
		ProjectID:   input.ProjectID,
		CreatorID:   actor.UserID,
		AssigneeID:  input.AssigneeID,
		DueDate:     input.DueDate,
	}
	if t.Status == StatusDone {
		now := s.now()
		t.CompletedAt = &now
	}

	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		s.logger.Error("failed to create task", zap.Uint("creator_id", actor.UserID), zap.Error(err))
		return nil, apperror.Internal("Failed to create task", err)
	}

	s.logger.Info("task created", zap.Uint("task_id", t.ID), zap.Uint("creator_id", actor.UserID))
	return t, nil
}

func (s *Service) visible(actor Actor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if actor.IsAdmin {
			return db
		}
		return db.Where("creator_id = ? OR assignee_id = ?", actor.UserID, actor.UserID)
	}
}

func (s *Service) List(ctx context.Context, actor Actor, filter ListFilter) ([]Task, int64, error) {
	page := pagination.Page{Limit: filter.Limit, Offset: filter.Offset}.Normalize()

	query := s.db.WithContext(ctx).Model(&Task{}).Scopes(s.visible(actor))
	if filter.Status != "" {
		if err := validateStatus(filter.Status); err != nil {
			return nil, 0, err
		}
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		if err := validatePriority(filter.Priority); err != nil {
			return nil, 0, err
		}
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.ProjectID != 0 {
		query = query.Where("project_id = ?", filter.ProjectID)
	}
	if filter.AssigneeID != 0 {
		query = query.Where("assignee_id = ?", filter.AssigneeID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		s.logger.Error("failed to count tasks", zap.Error(err))
		return nil, 0, apperror.Internal("Failed to list tasks", err)
	}

	var tasks []Task
	if err := query.Order("created_at DESC, id DESC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&tasks).Error; err != nil {
		s.logger.Error("failed to list tasks", zap.Error(err))
		return nil, 0, apperror.Internal("Failed to list tasks", err)
	}
	return tasks, total, nil
}

func (s *Service) load(ctx context.Context, id uint) (*Task, error) {
	var t Task
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Task not found")
		}
		s.logger.Error("failed to load task", zap.Uint("task_id", id), zap.Error(err))
		return nil, apperror.Internal("Failed to load task", err)
	}
	return &t, nil
}

func isParticipant(t *Task, actor Actor) bool {
	return actor.IsAdmin || t.CreatorID == actor.UserID ||
		(t.AssigneeID != nil && *t.AssigneeID == actor.UserID)
}

func (s *Service) Get(ctx context.Context, actor Actor, id uint) (*Task, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isParticipant(t, actor) {
		return nil, apperror.Forbidden("Access denied")
	}
	return t, nil
}

// Update is open to the creator, the assignee and admins.
func (s *Service) Update(ctx context.Context, actor Actor, id uint, input UpdateInput) (*Task, error) {
	t, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		t.Title = title
	}
	if input.Description != nil {
		t.Description = *input.Description
	}
	if input.Priority != nil {
		if err := validatePriority(*input.Priority); err != nil {
			return nil, err
		}
		t.Priority = *input.Priority
	}
	if input.Status != nil {
		if err := validateStatus(*input.Status); err != nil {
			return nil, err
		}
		if *input.Status == StatusDone && t.Status != StatusDone {
			now := s.now()
			t.CompletedAt = &now
		} else if *input.Status != StatusDone {
			t.CompletedAt = nil
		}
		t.Status = *input.Status
	}
	if input.AssigneeID != nil {
		if err := s.checkAssignee(ctx, input.AssigneeID); err != nil {
			return nil, err
		}
		t.AssigneeID = input.AssigneeID
	}
	if input.DueDate != nil {
		t.DueDate = input.DueDate
	}

	if err := s.db.WithContext(ctx).Save(t).Error; err != nil {
		s.logger.Error("failed to update task", zap.Uint("task_id", id), zap.Error(err))
		return nil, apperror.Internal("Failed to update task", err)
	}
	return t, nil
}

// Delete is limited to the creator and admins.
func (s *Service) Delete(ctx context.Context, actor Actor, id uint) error {
	t, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin && t.CreatorID != actor.UserID {
		return apperror.Forbidden("Only the creator or an admin can delete this task")
	}

	if err := s.db.WithContext(ctx).Delete(&Task{}, t.ID).Error; err != nil {
		s.logger.Error("failed to delete task", zap.Uint("task_id", id), zap.Error(err))
		return apperror.Internal("Failed to delete task", err)
	}

	s.logger.Info("task deleted", zap.Uint("task_id", id), zap.Uint("actor_id", actor.UserID))
	return nil
}
