package controllers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/calderonlabs/tienda-backend/pkg/db/models"
)

func seedProduct(t *testing.T, conn *gorm.DB, name string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:     name,
		Price:    decimal.NewFromFloat(25.00),
		Stock:    stock,
		IsActive: true,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

type cartBody struct {
	Data struct {
		ID          uuid.UUID `json:"id"`
		PhoneNumber string    `json:"phone_number"`
		CartItems   []struct {
			ProductID uuid.UUID `json:"product_id"`
			Quantity  int       `json:"quantity"`
		} `json:"cart_items"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeCart(t *testing.T, raw string) cartBody {
	t.Helper()
	var body cartBody
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		t.Fatalf("decode response %q: %v", raw, err)
	}
	return body
}

func TestCreateCartEndpoint(t *testing.T) {
	env := newTestEnv(t)
	product := seedProduct(t, env.conn, "Chips", 10)

	payload := fmt.Sprintf(`{"phone_number":"+5215553000","items":[{"product_id":%q,"quantity":2}]}`, product.ID)
	resp, raw := env.request(t, http.MethodPost, "/api/v1/carts", payload)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, raw)
	}

	body := decodeCart(t, raw)
	if body.Data.PhoneNumber != "+5215553000" {
		t.Fatalf("unexpected phone: %+v", body.Data)
	}
	if len(body.Data.CartItems) != 1 || body.Data.CartItems[0].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", body.Data.CartItems)
	}
}

func TestCreateCartDuplicatePhone(t *testing.T) {
	env := newTestEnv(t)

	payload := `{"phone_number":"+5215553001"}`
	if resp, raw := env.request(t, http.MethodPost, "/api/v1/carts", payload); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first create failed: %d %s", resp.StatusCode, raw)
	}

	resp, raw := env.request(t, http.MethodPost, "/api/v1/carts", payload)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate phone answers 400, got %d: %s", resp.StatusCode, raw)
	}
	body := decodeCart(t, raw)
	if body.Error.Code != "CONFLICT" {
		t.Fatalf("unexpected error code: %+v", body.Error)
	}
}

func TestCreateCartInsufficientStockEndpoint(t *testing.T) {
	env := newTestEnv(t)
	product := seedProduct(t, env.conn, "Cola", 1)

	payload := fmt.Sprintf(`{"phone_number":"+5215553002","items":[{"product_id":%q,"quantity":5}]}`, product.ID)
	resp, raw := env.request(t, http.MethodPost, "/api/v1/carts", payload)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.StatusCode, raw)
	}
	body := decodeCart(t, raw)
	if body.Error.Code != "INSUFFICIENT_STOCK" {
		t.Fatalf("unexpected error code: %+v", body.Error)
	}
	if !strings.Contains(body.Error.Message, "insufficient stock") {
		t.Fatalf("unexpected message: %q", body.Error.Message)
	}
}

func TestUpdateCartReplacesItems(t *testing.T) {
	env := newTestEnv(t)
	first := seedProduct(t, env.conn, "Chips", 10)
	second := seedProduct(t, env.conn, "Cola", 10)

	payload := fmt.Sprintf(`{"phone_number":"+5215553003","items":[{"product_id":%q,"quantity":2}]}`, first.ID)
	_, raw := env.request(t, http.MethodPost, "/api/v1/carts", payload)
	created := decodeCart(t, raw)

	update := fmt.Sprintf(`{"items":[{"product_id":%q,"quantity":1}]}`, second.ID)
	resp, raw := env.request(t, http.MethodPut, "/api/v1/carts/"+created.Data.ID.String(), update)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
	body := decodeCart(t, raw)
	if len(body.Data.CartItems) != 1 || body.Data.CartItems[0].ProductID != second.ID {
		t.Fatalf("replace should drop the old line: %+v", body.Data.CartItems)
	}
}

func TestUpdateCartUnknownID(t *testing.T) {
	env := newTestEnv(t)

	resp, raw := env.request(t, http.MethodPut, "/api/v1/carts/"+uuid.NewString(), `{"items":[]}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", resp.StatusCode, raw)
	}
	if decodeCart(t, raw).Error.Code != "NOT_FOUND" {
		t.Fatalf("unexpected body: %s", raw)
	}
}

func TestUpdateCartBadUUID(t *testing.T) {
	env := newTestEnv(t)

	resp, raw := env.request(t, http.MethodPut, "/api/v1/carts/not-a-uuid", `{"items":[]}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.StatusCode, raw)
	}
}

func TestGetCartByPhoneEndpoint(t *testing.T) {
	env := newTestEnv(t)

	if resp, raw := env.request(t, http.MethodPost, "/api/v1/carts", `{"phone_number":"+5215553004"}`); resp.StatusCode != http.StatusCreated {
		t.Fatalf("create failed: %d %s", resp.StatusCode, raw)
	}

	resp, raw := env.request(t, http.MethodGet, "/api/v1/carts/phone/+5215553004", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
	if decodeCart(t, raw).Data.PhoneNumber != "+5215553004" {
		t.Fatalf("unexpected body: %s", raw)
	}

	resp, raw = env.request(t, http.MethodGet, "/api/v1/carts/phone/+5210000000", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown phone answers 404, got %d: %s", resp.StatusCode, raw)
	}
}

func TestMergeCartItemsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	product := seedProduct(t, env.conn, "Chips", 10)

	if resp, raw := env.request(t, http.MethodPost, "/api/v1/carts", `{"phone_number":"+5215553005"}`); resp.StatusCode != http.StatusCreated {
		t.Fatalf("create failed: %d %s", resp.StatusCode, raw)
	}

	add := fmt.Sprintf(`{"items":[{"product_id":%q,"quantity":2}]}`, product.ID)
	if resp, raw := env.request(t, http.MethodPost, "/api/v1/carts/phone/+5215553005/items", add); resp.StatusCode != http.StatusOK {
		t.Fatalf("first merge failed: %d %s", resp.StatusCode, raw)
	}

	add = fmt.Sprintf(`{"items":[{"product_id":%q,"quantity":3}]}`, product.ID)
	resp, raw := env.request(t, http.MethodPost, "/api/v1/carts/phone/+5215553005/items", add)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second merge failed: %d %s", resp.StatusCode, raw)
	}
	body := decodeCart(t, raw)
	if len(body.Data.CartItems) != 1 || body.Data.CartItems[0].Quantity != 5 {
		t.Fatalf("quantities should accumulate: %+v", body.Data.CartItems)
	}
}
