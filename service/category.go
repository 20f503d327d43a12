package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"expensehub/cache"
	"expensehub/logger"
	"expensehub/models"

	"gorm.io/gorm"
)

const (
	categoryCacheActive = "categories:active"
	categoryCacheAll    = "categories:all"
)

// CategoryService 费用类别
type CategoryService struct {
	db    *gorm.DB
	cache cache.Cache
}

func NewCategoryService(db *gorm.DB, c cache.Cache) *CategoryService {
	if c == nil {
		c = cache.Nop{}
	}
	return &CategoryService{db: db, cache: c}
}

// CategoryInput 新建类别
type CategoryInput struct {
	Name        string
	Description string
}

// CategoryUpdate 修改类别，nil 表示不修改
type CategoryUpdate struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// List 按名称排序，默认只返回启用的类别
func (s *CategoryService) List(ctx context.Context, includeInactive bool) ([]models.Category, error) {
	key := categoryCacheActive
	if includeInactive {
		key = categoryCacheAll
	}

	var list []models.Category
	if found, err := s.cache.Get(ctx, key, &list); err != nil {
		slog.Warn("category cache read failed", logger.Err(err))
	} else if found {
		return list, nil
	}

	q := s.db.WithContext(ctx).Order("name ASC")
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if err := s.cache.Set(ctx, key, list); err != nil {
		slog.Warn("category cache write failed", logger.Err(err))
	}
	return list, nil
}

func (s *CategoryService) Get(ctx context.Context, id uint) (*models.Category, error) {
	var cat models.Category
	if err := s.db.WithContext(ctx).First(&cat, id).Error; err != nil {
		if isNotFound(err) {
			return nil, NotFound("Category not found.")
		}
		return nil, fmt.Errorf("load category %d: %w", id, err)
	}
	return &cat, nil
}

func (s *CategoryService) nameTaken(ctx context.Context, name string, excludeID uint) (bool, error) {
	var count int64
	q := s.db.WithContext(ctx).Model(&models.Category{}).Where("name = ?", name)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("check category name: %w", err)
	}
	return count > 0, nil
}

// Create admin/editor
func (s *CategoryService) Create(ctx context.Context, actor Actor, in CategoryInput) (*models.Category, error) {
	if !actor.Role.CanReview() {
		return nil, Forbidden("Insufficient permissions.")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, Validation("Category name is required.")
	}
	taken, err := s.nameTaken(ctx, name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, Conflict("Category with this name already exists.")
	}

	creator := actor.UserID
	cat := models.Category{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		IsActive:    true,
		CreatedBy:   &creator,
	}
	if err := s.db.WithContext(ctx).Create(&cat).Error; err != nil {
		if isDuplicate(err) {
			return nil, Conflict("Category with this name already exists.")
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	s.invalidate(ctx)
	return &cat, nil
}

// Update admin/editor，改名时重新校验唯一性
func (s *CategoryService) Update(ctx context.Context, actor Actor, id uint, in CategoryUpdate) (*models.Category, error) {
	if !actor.Role.CanReview() {
		return nil, Forbidden("Insufficient permissions.")
	}
	cat, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, Validation("Category name cannot be empty.")
		}
		if name != cat.Name {
			taken, err := s.nameTaken(ctx, name, cat.ID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, Conflict("Category with this name already exists.")
			}
			updates["name"] = name
			cat.Name = name
		}
	}
	if in.Description != nil {
		updates["description"] = strings.TrimSpace(*in.Description)
		cat.Description = strings.TrimSpace(*in.Description)
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
		cat.IsActive = *in.IsActive
	}
	if len(updates) == 0 {
		return cat, nil
	}
	if err := s.db.WithContext(ctx).Model(cat).Updates(updates).Error; err != nil {
		if isDuplicate(err) {
			return nil, Conflict("Category with this name already exists.")
		}
		return nil, fmt.Errorf("update category %d: %w", id, err)
	}
	s.invalidate(ctx)
	return cat, nil
}

// Delete admin，被报销单引用时只能停用
func (s *CategoryService) Delete(ctx context.Context, actor Actor, id uint) error {
	if !actor.IsAdmin() {
		return Forbidden("Insufficient permissions.")
	}
	cat, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	var used int64
	if err := s.db.WithContext(ctx).Model(&models.Expense{}).Where("category_id = ?", cat.ID).Count(&used).Error; err != nil {
		return fmt.Errorf("count category usage: %w", err)
	}
	if used > 0 {
		return InUse("Cannot delete category that is being used by expenses. Deactivate it instead.")
	}
	if err := s.db.WithContext(ctx).Delete(cat).Error; err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	s.invalidate(ctx)
	return nil
}

// SeedDefaults 只创建名称不存在的默认类别，返回新建的类别
func (s *CategoryService) SeedDefaults(ctx context.Context, actor Actor) ([]models.Category, error) {
	if !actor.IsAdmin() {
		return nil, Forbidden("Insufficient permissions.")
	}
	defaults := models.DefaultCategories()
	names := make([]string, 0, len(defaults))
	for _, d := range defaults {
		names = append(names, d.Name)
	}

	var existing []string
	if err := s.db.WithContext(ctx).Model(&models.Category{}).Where("name IN ?", names).Pluck("name", &existing).Error; err != nil {
		return nil, fmt.Errorf("load existing categories: %w", err)
	}
	exists := make(map[string]bool, len(existing))
	for _, name := range existing {
		exists[name] = true
	}

	creator := actor.UserID
	created := []models.Category{}
	for _, d := range defaults {
		if exists[d.Name] {
			continue
		}
		created = append(created, models.Category{
			Name:        d.Name,
			Description: d.Description,
			IsActive:    true,
			CreatedBy:   &creator,
		})
	}
	if len(created) == 0 {
		return created, nil
	}
	if err := s.db.WithContext(ctx).Create(&created).Error; err != nil {
		return nil, fmt.Errorf("seed categories: %w", err)
	}
	s.invalidate(ctx)
	return created, nil
}

func (s *CategoryService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, categoryCacheActive, categoryCacheAll); err != nil {
		slog.Warn("category cache invalidate failed", logger.Err(err))
	}
}
