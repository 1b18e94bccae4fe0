package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calderonlabs/tienda-backend/pkg/db/models"
	"github.com/calderonlabs/tienda-backend/pkg/pagination"
)

// ProductFilter narrows product listings.
type ProductFilter struct {
	CategoryID *uuid.UUID
	IsActive   *bool
}

// Repository exposes read access to the catalog tables.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// ListCategories returns one page of categories ordered by name.
func (r *Repository) ListCategories(ctx context.Context, page pagination.Params) ([]models.Category, error) {
	page = pagination.Normalize(page)
	var categories []models.Category
	err := r.db.WithContext(ctx).
		Order("name ASC").
		Offset(page.Skip).
		Limit(page.Limit).
		Find(&categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// FindCategoryByID loads one category.
func (r *Repository) FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// ListProducts returns one filtered page of products with categories preloaded.
func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter, page pagination.Params) ([]models.Product, error) {
	page = pagination.Normalize(page)
	query := r.db.WithContext(ctx).Preload("Category")
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}

	var products []models.Product
	err := query.
		Order("name ASC").
		Offset(page.Skip).
		Limit(page.Limit).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// FindProductByID loads one product with its category.
func (r *Repository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Category").
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindProductsByIDs loads the referenced products keyed by id. Missing ids are
// simply absent from the result; callers decide whether that is an error.
func (r *Repository) FindProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	byID := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	for _, product := range products {
		byID[product.ID] = product
	}
	return byID, nil
}
