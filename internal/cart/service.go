package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calderonlabs/tienda-backend/pkg/db"
	"github.com/calderonlabs/tienda-backend/pkg/db/models"
	pkgerrors "github.com/calderonlabs/tienda-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// productLoader is the stock-ledger surface: a point-in-time read of the
// referenced products. No lock or reservation is taken, so two concurrent
// writers can validate against the same stale stock figure and jointly
// oversell. That race is a documented property of this engine.
type productLoader interface {
	FindProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// LineInput is one requested cart line.
type LineInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// UpdateInput carries the optional mutations of a cart update. A nil field is
// left untouched; a non-nil empty Items slice empties the cart.
type UpdateInput struct {
	PhoneNumber *string
	Items       *[]LineInput
}

// Service owns the cart aggregate: every mutation validates product existence
// and stock inside a single transaction.
type Service interface {
	Create(ctx context.Context, phone string, lines []LineInput) (*models.Cart, error)
	Update(ctx context.Context, cartID uuid.UUID, input UpdateInput) (*models.Cart, error)
	MergeAdd(ctx context.Context, phone string, deltas []LineInput) (*models.Cart, error)
	GetByPhone(ctx context.Context, phone string) (*models.Cart, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
}

type service struct {
	repo     *Repository
	tx       txRunner
	products productLoader
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo *Repository, tx txRunner, products productLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{repo: repo, tx: tx, products: products}, nil
}

// Create opens a cart for the phone number, validating and inserting the
// initial lines atomically. Nothing persists when any line fails.
func (s *service) Create(ctx context.Context, phone string, lines []LineInput) (*models.Cart, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone_number is required")
	}
	if err := requirePositiveQuantities(lines); err != nil {
		return nil, err
	}

	var saved *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		if _, err := txRepo.FindByPhone(ctx, phone); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("cart already exists for phone number %s", phone))
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		cart := &models.Cart{PhoneNumber: phone}
		if err := txRepo.Create(ctx, cart); err != nil {
			return err
		}

		items, err := s.validateLines(ctx, cart.ID, lines)
		if err != nil {
			return err
		}
		if err := txRepo.CreateItems(ctx, items); err != nil {
			return err
		}

		var loadErr error
		saved, loadErr = txRepo.FindByID(ctx, cart.ID)
		return loadErr
	})
	if err != nil {
		return nil, asCartError(err, "create cart")
	}
	return saved, nil
}

// Update applies a full item replacement and/or a phone rebind to an existing
// cart. An empty item list empties the cart; the update timestamp always bumps.
func (s *service) Update(ctx context.Context, cartID uuid.UUID, input UpdateInput) (*models.Cart, error) {
	if input.Items != nil {
		if err := requirePositiveQuantities(*input.Items); err != nil {
			return nil, err
		}
	}

	var saved *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		cart, err := txRepo.FindByID(ctx, cartID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("cart %s not found", cartID))
			}
			return err
		}

		if input.PhoneNumber != nil {
			phone := strings.TrimSpace(*input.PhoneNumber)
			if phone == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "phone_number cannot be empty")
			}
			if other, err := txRepo.FindByPhone(ctx, phone); err == nil && other.ID != cartID {
				return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("phone number %s is already associated with another cart", phone))
			} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			cart.PhoneNumber = phone
		}

		if input.Items != nil {
			if err := txRepo.DeleteItems(ctx, cartID); err != nil {
				return err
			}
			items, err := s.validateLines(ctx, cartID, *input.Items)
			if err != nil {
				return err
			}
			if err := txRepo.CreateItems(ctx, items); err != nil {
				return err
			}
		}

		if err := txRepo.Save(ctx, cart); err != nil {
			return err
		}

		var loadErr error
		saved, loadErr = txRepo.FindByID(ctx, cartID)
		return loadErr
	})
	if err != nil {
		return nil, asCartError(err, "update cart")
	}
	return saved, nil
}

// MergeAdd gives the agent's add tool additive semantics: current lines plus
// deltas, summed by product, non-positive results dropped, then one full
// replace. Negative deltas are legal here and only here.
func (s *service) MergeAdd(ctx context.Context, phone string, deltas []LineInput) (*models.Cart, error) {
	cart, err := s.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}

	merged := mergeLines(cart.Items, deltas)
	return s.Update(ctx, cart.ID, UpdateInput{Items: &merged})
}

func (s *service) GetByPhone(ctx context.Context, phone string) (*models.Cart, error) {
	cart, err := s.repo.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("cart not found for phone number %s", phone))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart by phone")
	}
	return cart, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("cart %s not found", id))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart by id")
	}
	return cart, nil
}

// validateLines checks product existence and available stock for every
// requested line and materializes the rows to insert.
func (s *service) validateLines(ctx context.Context, cartID uuid.UUID, lines []LineInput) ([]models.CartItem, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	byID, err := s.products.FindProductsByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	items := make([]models.CartItem, 0, len(lines))
	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", line.ProductID))
		}
		if line.Quantity > product.Stock {
			return nil, pkgerrors.New(
				pkgerrors.CodeInsufficientStock,
				fmt.Sprintf("insufficient stock for product %s, available: %d", product.Name, product.Stock),
			).WithDetails(map[string]any{"product_id": product.ID, "available": product.Stock})
		}
		items = append(items, models.CartItem{
			CartID:    cartID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}
	return items, nil
}

func requirePositiveQuantities(lines []LineInput) error {
	for _, line := range lines {
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a positive integer").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
	}
	return nil
}

// asCartError keeps coded errors intact and wraps everything else as a
// dependency failure. A unique violation on the phone column means another
// writer bound the number between our existence check and the insert.
func asCartError(err error, op string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if db.IsUniqueViolation(err, db.ConstraintCartsPhoneNumber) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "phone number is already associated with another cart")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
