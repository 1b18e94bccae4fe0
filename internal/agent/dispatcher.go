package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Result is the closed envelope every tool invocation resolves to. The model
// only ever sees one of two shapes: a payload keyed by its domain noun, or
// {"error": "<message>"}. Downstream faults never escape the dispatcher.
type Result struct {
	noun    string
	payload json.RawMessage
	errMsg  string
}

func success(noun string, payload json.RawMessage) Result {
	return Result{noun: noun, payload: payload}
}

func failure(format string, args ...any) Result {
	return Result{errMsg: fmt.Sprintf(format, args...)}
}

// IsError reports whether the result carries an error message.
func (r Result) IsError() bool {
	return r.errMsg != ""
}

// JSON renders the wire form handed back to the model.
func (r Result) JSON() string {
	if r.errMsg != "" {
		doc, _ := json.Marshal(map[string]string{"error": r.errMsg})
		return string(doc)
	}
	var buf bytes.Buffer
	buf.WriteString(`{"`)
	buf.WriteString(r.noun)
	buf.WriteString(`":`)
	buf.Write(r.payload)
	buf.WriteString(`}`)
	return buf.String()
}

// Dispatcher binds the agent's tool calls to the store's own HTTP API. One
// dispatcher is scoped to a single customer: the phone number comes from the
// session, never from model-supplied arguments.
type Dispatcher struct {
	http    *http.Client
	baseURL string
	phone   string
}

func NewDispatcher(httpClient *http.Client, baseURL, phone string) *Dispatcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Dispatcher{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		phone:   phone,
	}
}

// Dispatch resolves one named tool call. Unknown names and malformed
// arguments come back as error envelopes like every other fault.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args json.RawMessage) Result {
	switch name {
	case toolGetCategories:
		var in listArgs
		if err := decodeArgs(args, &in); err != nil {
			return failure("invalid arguments: %v", err)
		}
		return d.getCategories(ctx, in)
	case toolGetProducts:
		var in productListArgs
		if err := decodeArgs(args, &in); err != nil {
			return failure("invalid arguments: %v", err)
		}
		return d.getProducts(ctx, in)
	case toolGetProductByID:
		var in productByIDArgs
		if err := decodeArgs(args, &in); err != nil {
			return failure("invalid arguments: %v", err)
		}
		return d.getProductByID(ctx, in.ProductID)
	case toolGetCart:
		return d.getCart(ctx)
	case toolAddToCart:
		var in itemsArgs
		if err := decodeArgs(args, &in); err != nil {
			return failure("invalid arguments: %v", err)
		}
		return d.addToCart(ctx, in.Items)
	case toolUpdateCart:
		var in itemsArgs
		if err := decodeArgs(args, &in); err != nil {
			return failure("invalid arguments: %v", err)
		}
		return d.updateCart(ctx, in.Items)
	default:
		return failure("unknown tool %q", name)
	}
}

type listArgs struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

type productListArgs struct {
	Skip       int        `json:"skip"`
	Limit      int        `json:"limit"`
	CategoryID *uuid.UUID `json:"category_id"`
	IsActive   *bool      `json:"is_active"`
}

type productByIDArgs struct {
	ProductID uuid.UUID `json:"product_id"`
}

type lineArg struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type itemsArgs struct {
	Items []lineArg `json:"items"`
}

func decodeArgs(args json.RawMessage, out any) error {
	if len(args) == 0 {
		return nil
	}
	return json.Unmarshal(args, out)
}

func (d *Dispatcher) getCategories(ctx context.Context, in listArgs) Result {
	query := listQuery(in.Skip, in.Limit)
	payload, err := d.get(ctx, "/categories"+query)
	if err != nil {
		return failure("%v", err)
	}
	return success("categories", payload)
}

func (d *Dispatcher) getProducts(ctx context.Context, in productListArgs) Result {
	query := listQuery(in.Skip, in.Limit)
	if in.CategoryID != nil {
		query += "&category_id=" + in.CategoryID.String()
	}
	// Browsing defaults to active listings unless the model asks otherwise.
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	query += "&is_active=" + strconv.FormatBool(active)

	payload, err := d.get(ctx, "/products"+query)
	if err != nil {
		return failure("%v", err)
	}
	return success("products", payload)
}

func (d *Dispatcher) getProductByID(ctx context.Context, id uuid.UUID) Result {
	payload, err := d.get(ctx, "/products/"+id.String())
	if err != nil {
		return failure("%v", err)
	}
	return success("product", payload)
}

func (d *Dispatcher) getCart(ctx context.Context) Result {
	payload, err := d.get(ctx, "/carts/phone/"+d.phone)
	if err != nil {
		return failure("%v", err)
	}
	return success("cart", payload)
}

func (d *Dispatcher) addToCart(ctx context.Context, items []lineArg) Result {
	payload, err := d.send(ctx, http.MethodPost, "/carts/phone/"+d.phone+"/items", itemsArgs{Items: items})
	if err != nil {
		return failure("%v", err)
	}
	return success("cart", payload)
}

func (d *Dispatcher) updateCart(ctx context.Context, items []lineArg) Result {
	cartDoc, err := d.get(ctx, "/carts/phone/"+d.phone)
	if err != nil {
		return failure("could not find cart: %v", err)
	}
	var cart struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.Unmarshal(cartDoc, &cart); err != nil {
		return failure("could not read cart: %v", err)
	}

	if items == nil {
		items = []lineArg{}
	}
	payload, err := d.send(ctx, http.MethodPut, "/carts/"+cart.ID.String(), itemsArgs{Items: items})
	if err != nil {
		return failure("%v", err)
	}
	return success("cart", payload)
}

func listQuery(skip, limit int) string {
	if limit <= 0 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}
	return fmt.Sprintf("?skip=%d&limit=%d", skip, limit)
}

func (d *Dispatcher) get(ctx context.Context, path string) (json.RawMessage, error) {
	return d.do(ctx, http.MethodGet, path, nil)
}

func (d *Dispatcher) send(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	doc, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return d.do(ctx, method, path, doc)
}

// do issues the request and unwraps the API's response envelope: {"data": X}
// on success, {"error":{"message":...}} on failure. The inner error message
// is surfaced verbatim so the model can explain it to the customer.
func (d *Dispatcher) do(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var envelope struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
			return nil, fmt.Errorf("%s", envelope.Error.Message)
		}
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("unexpected response body: %w", err)
	}
	if len(envelope.Data) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	return envelope.Data, nil
}
