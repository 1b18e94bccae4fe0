package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/calderonlabs/tienda-backend/api/responses"
	"github.com/calderonlabs/tienda-backend/api/validators"
	"github.com/calderonlabs/tienda-backend/internal/cart"
	"github.com/calderonlabs/tienda-backend/pkg/db/models"
	"github.com/calderonlabs/tienda-backend/pkg/logger"
)

type cartLineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required"`
}

type createCartRequest struct {
	PhoneNumber string            `json:"phone_number" validate:"required,min=1"`
	Items       []cartLineRequest `json:"items"`
}

type updateCartRequest struct {
	PhoneNumber *string            `json:"phone_number"`
	Items       *[]cartLineRequest `json:"items"`
}

type mergeItemsRequest struct {
	Items []cartLineRequest `json:"items" validate:"required"`
}

type cartItemResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type cartResponse struct {
	ID          uuid.UUID          `json:"id"`
	PhoneNumber string             `json:"phone_number"`
	CartItems   []cartItemResponse `json:"cart_items"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func toCartResponse(c *models.Cart) cartResponse {
	items := make([]cartItemResponse, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, cartItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			CreatedAt: item.CreatedAt,
			UpdatedAt: item.UpdatedAt,
		})
	}
	return cartResponse{
		ID:          c.ID,
		PhoneNumber: c.PhoneNumber,
		CartItems:   items,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func toLineInputs(lines []cartLineRequest) []cart.LineInput {
	out := make([]cart.LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, cart.LineInput{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return out
}

func CreateCart(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCartRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), req.PhoneNumber, toLineInputs(req.Items))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toCartResponse(created))
	}
}

func UpdateCart(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := validators.ParsePathUUID(chi.URLParam(r, "cartID"), "cart_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateCartRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := cart.UpdateInput{PhoneNumber: req.PhoneNumber}
		if req.Items != nil {
			lines := toLineInputs(*req.Items)
			input.Items = &lines
		}

		updated, err := svc.Update(r.Context(), cartID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toCartResponse(updated))
	}
}

func GetCartByPhone(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		phone := chi.URLParam(r, "phone")
		found, err := svc.GetByPhone(r.Context(), phone)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toCartResponse(found))
	}
}

func GetCartByID(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := validators.ParsePathUUID(chi.URLParam(r, "cartID"), "cart_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		found, err := svc.GetByID(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toCartResponse(found))
	}
}

// MergeCartItems adds quantities onto the existing lines instead of replacing
// them. Negative quantities subtract; a line that reaches zero is dropped.
func MergeCartItems(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		phone := chi.URLParam(r, "phone")

		var req mergeItemsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		merged, err := svc.MergeAdd(r.Context(), phone, toLineInputs(req.Items))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toCartResponse(merged))
	}
}
