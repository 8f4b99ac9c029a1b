package extract

import (
	"fmt"

	"github.com/MrWong99/voxorder/pkg/provider/llm"
)

// promptTemplate is the few-shot extraction prompt. The single %s verb
// receives the transcript.
const promptTemplate = `You are an expert barista assistant. Extract order items using step-by-step reasoning.

TASK: Analyze this conversation and extract ALL drink/food items ordered.

CONVERSATION:
"%s"

REASONING PROCESS:
1. Identify all product mentions (ignore chitchat like "how are you", "thank you")
2. For each product, determine:
   - Is this a NEW item or a MODIFICATION to previous item?
   - What size? (small/medium/large/kids)
   - What temperature? (hot/iced/blended)
   - What modifiers? (soft top, oat milk, boba, extra sweet, whip, etc.)
   - What quantity? (one=1, two=2, etc.)
3. Handle special cases:
   - "actually, make that iced" = MODIFY previous item's temperature
   - "can you add soft top" = ADD modifier to previous item
   - "and" or "also" = usually means NEW item
   - "double blended" = modifier, not part of product name

EXAMPLES:

Example 1: Simple drink
Input: "Can I get a large hot mocha with soft top?"
Output: [{"product":"mocha","size":"large","temp":"hot","mods":["soft top"],"qty":1,"is_new_item":true}]

Example 2: Multiple items with food
Input: "Medium iced golden eagle and a lemon muffin"
Output: [
  {"product":"golden eagle","size":"medium","temp":"iced","mods":[],"qty":1,"is_new_item":true},
  {"product":"lemon muffin","size":null,"temp":null,"mods":[],"qty":1,"is_new_item":true}
]

Example 3: Complex order
Input: "Large hot white chocolate mocha extra sweet with soft top, medium double blended rainbow rebel with boba, and kids not so hot with whip"
Output: [
  {"product":"white chocolate mocha","size":"large","temp":"hot","mods":["extra sweet","soft top"],"qty":1,"is_new_item":true},
  {"product":"rainbow rebel","size":"medium","temp":"blended","mods":["boba","double blended"],"qty":1,"is_new_item":true},
  {"product":"not so hot","size":"kids","temp":null,"mods":["whip"],"qty":1,"is_new_item":true}
]

CRITICAL RULES:
1. IGNORE chitchat (greetings, thank you, questions)
2. "and", "also" = NEW item
3. Milk types (oat/almond/coconut) = MODIFIERS
4. "double blended" = MODIFIER
5. Food items (muffins, pastries) have size=null, temp=null

OUTPUT FORMAT (JSON array only, no explanation):
[{"product":"...","size":"...","temp":"...","mods":[...],"qty":1,"is_new_item":true}]

Now extract from the conversation above:`

// ItemsSchema returns the structured-output schema for extraction answers.
// Strict schemas need an object at the top level, so the item array is
// wrapped as {"items": [...]}; the parser picks the array out of it.
func ItemsSchema() *llm.ResponseSchema {
	nullableString := map[string]any{"type": []string{"string", "null"}}
	return &llm.ResponseSchema{
		Name: "order_items",
		Schema: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []string{"items"},
			"properties": map[string]any{
				"items": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":                 "object",
						"additionalProperties": false,
						"required":             []string{"product", "size", "temp", "mods", "qty", "is_new_item"},
						"properties": map[string]any{
							"product":     map[string]any{"type": "string"},
							"size":        nullableString,
							"temp":        nullableString,
							"mods":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
							"qty":         map[string]any{"type": "integer"},
							"is_new_item": map[string]any{"type": "boolean"},
						},
					},
				},
			},
		},
	}
}

// BuildPrompt returns the extraction prompt for transcript.
func BuildPrompt(transcript string) string {
	return fmt.Sprintf(promptTemplate, transcript)
}
