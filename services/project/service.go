package project

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/tech-arch1tect/newsdesk/apperror"
	"github.com/tech-arch1tect/newsdesk/internal/pagination"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	logger *logging.Service
}

func NewService(db *gorm.DB, logger *logging.Service) *Service {
	return &Service{db: db, logger: logger}
}

func validName(name string) error {
	if name == "" {
		return apperror.BadRequest("Project name is required")
	}
	if len(name) > 200 {
		return apperror.BadRequest("Project name must be at most 200 characters")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, ownerID uint, input CreateInput) (*Project, error) {
	name := strings.TrimSpace(input.Name)
	if err := validName(name); err != nil {
		return nil, err
	}
	if len(input.Description) > 2000 {
		return nil, apperror.BadRequest("Project description must be at most 2000 characters")
	}

	p := &Project{
		Name:        name,
		Description: input.Description,
		Status:      StatusActive,
		OwnerID:     ownerID,
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		s.logger.Error("failed to create project", zap.Uint("owner_id", ownerID), zap.Error(err))
		return nil, apperror.Internal("Failed to create project", err)
	}

	s.logger.Info("project created", zap.Uint("project_id", p.ID), zap.Uint("owner_id", ownerID))
	return p, nil
}

// List returns the viewer's own projects, or every project when all is set.
func (s *Service) List(ctx context.Context, viewerID uint, all bool, filter ListFilter) ([]Project, int64, error) {
	page := pagination.Page{Limit: filter.Limit, Offset: filter.Offset}.Normalize()

	query := s.db.WithContext(ctx).Model(&Project{})
	if !all {
		query = query.Where("owner_id = ?", viewerID)
	}
	if filter.Status != "" {
		if !slices.Contains(Statuses, filter.Status) {
			return nil, 0, apperror.BadRequest("Invalid project status: " + filter.Status)
		}
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		s.logger.Error("failed to count projects", zap.Error(err))
		return nil, 0, apperror.Internal("Failed to list projects", err)
	}

	var projects []Project
	if err := query.Order("updated_at DESC, id DESC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&projects).Error; err != nil {
		s.logger.Error("failed to list projects", zap.Error(err))
		return nil, 0, apperror.Internal("Failed to list projects", err)
	}
	return projects, total, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*Project, error) {
	var p Project
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Project not found")
		}
		s.logger.Error("failed to load project", zap.Uint("project_id", id), zap.Error(err))
		return nil, apperror.Internal("Failed to load project", err)
	}
	return &p, nil
}

// OwnerOf feeds ownership checks in front of project routes.
func (s *Service) OwnerOf(ctx context.Context, id uint) (uint, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return p.OwnerID, nil
}

func (s *Service) Update(ctx context.Context, id uint, input UpdateInput) (*Project, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if err := validName(name); err != nil {
			return nil, err
		}
		p.Name = name
	}
	if input.Description != nil {
		if len(*input.Description) > 2000 {
			return nil, apperror.BadRequest("Project description must be at most 2000 characters")
		}
		p.Description = *input.Description
	}
	if input.Status != nil {
		if !slices.Contains(Statuses, *input.Status) {
			return nil, apperror.BadRequest("Invalid project status: " + *input.Status)
		}
		p.Status = *input.Status
	}

	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		s.logger.Error("failed to update project", zap.Uint("project_id", id), zap.Error(err))
		return nil, apperror.Internal("Failed to update project", err)
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&Project{}, id)
	if result.Error != nil {
		s.logger.Error("failed to delete project", zap.Uint("project_id", id), zap.Error(result.Error))
		return apperror.Internal("Failed to delete project", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("Project not found")
	}

	s.logger.Info("project deleted", zap.Uint("project_id", id))
	return nil
}

func (s *Service) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Project{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, apperror.Internal("Failed to load project", err)
	}
	return count > 0, nil
}
