package agent

import (
	openai "github.com/openai/openai-go/v2"
)

const (
	toolGetCategories  = "get_categories"
	toolGetProducts    = "get_products"
	toolGetProductByID = "get_product_by_id"
	toolGetCart        = "get_cart"
	toolAddToCart      = "add_to_cart"
	toolUpdateCart     = "update_cart"
)

var paginationProperties = map[string]any{
	"skip": map[string]any{
		"type":        "integer",
		"description": "Number of records to skip for pagination. Default: 0",
	},
	"limit": map[string]any{
		"type":        "integer",
		"description": "Maximum number of records to return. Default: 100",
	},
}

var itemListSchema = map[string]any{
	"type":        "array",
	"description": "Cart lines as {product_id, quantity} pairs.",
	"items": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"product_id": map[string]any{
				"type":        "string",
				"description": "Product identifier (UUID).",
			},
			"quantity": map[string]any{
				"type":        "integer",
				"description": "Number of units.",
			},
		},
		"required": []string{"product_id", "quantity"},
	},
}

// toolSet is the capability surface handed to the model on every turn.
func toolSet() []openai.ChatCompletionToolUnionParam {
	return []openai.ChatCompletionToolUnionParam{
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name: toolGetCategories,
			Description: openai.String(
				"Retrieve all available product categories. Use when the customer asks about types of products."),
			Parameters: openai.FunctionParameters{
				"type":       "object",
				"properties": paginationProperties,
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name: toolGetProducts,
			Description: openai.String(
				"Retrieve products with optional filtering. Use when the customer wants to browse the catalog."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": mergeProperties(paginationProperties, map[string]any{
					"category_id": map[string]any{
						"type":        "string",
						"description": "Filter by category identifier (UUID). Omit for all categories.",
					},
					"is_active": map[string]any{
						"type":        "boolean",
						"description": "Filter by active status. Default: true.",
					},
				}),
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name: toolGetProductByID,
			Description: openai.String(
				"Retrieve detailed information about one product. Use before adding it to the cart."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"product_id": map[string]any{
						"type":        "string",
						"description": "Product identifier (UUID).",
					},
				},
				"required": []string{"product_id"},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name: toolGetCart,
			Description: openai.String(
				"Retrieve the customer's current shopping cart. The phone number comes from the conversation context."),
			Parameters: openai.FunctionParameters{
				"type":       "object",
				"properties": map[string]any{},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name: toolAddToCart,
			Description: openai.String(
				"Add items to the customer's cart. Quantities are summed onto existing lines."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"items": itemListSchema,
				},
				"required": []string{"items"},
			},
		}),
		openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name: toolUpdateCart,
			Description: openai.String(
				"Replace all items in the cart with a new list. An empty list empties the cart. This REPLACES, it does not add."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"items": itemListSchema,
				},
				"required": []string{"items"},
			},
		}),
	}
}

func mergeProperties(maps ...map[string]any) map[string]any {
	merged := make(map[string]any)
	for _, m := range maps {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}
