package layout

import "github.com/joseph-ayodele/order-transformer/constants"

// BuildLayoutJSONSchema returns the JSON-Schema used to validate layout files before decoding.
func BuildLayoutJSONSchema() map[string]any {
	stringList := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string", "minLength": 1},
	}
	pattern := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"name", "regex", "confidence"},
		"properties": map[string]any{
			"name":       map[string]any{"type": "string", "minLength": 1},
			"regex":      map[string]any{"type": "string", "minLength": 1},
			"confidence": confidenceProp(),
			"prefix":     map[string]any{"type": "string"},
			"upper":      map[string]any{"type": "boolean"},
		},
	}
	dateRole := map[string]any{
		"type": "string",
		"enum": []string{"order", "requested_delivery", "ship", "pickup", "eta", "cancel"},
	}

	layout := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"family"},
		"properties": map[string]any{
			"family":       map[string]any{"type": "string", "enum": families},
			"formats":      map[string]any{"type": "array", "items": map[string]any{"type": "string", "enum": []string{"pdf", "html", "csv", "xlsx"}}},
			"column_match": map[string]any{"type": "string", "enum": []string{MatchExact, MatchContains}},
			"columns":      map[string]any{"type": "object", "additionalProperties": stringList},
			"labels":       map[string]any{"type": "object", "additionalProperties": stringList},
			"patterns":     map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "array", "items": pattern}},
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"markers": map[string]any{
						"type":                 "object",
						"additionalProperties": false,
						"properties": map[string]any{
							"start": stringList,
							"end":   stringList,
							"skip":  stringList,
						},
					},
					"lines":       map[string]any{"type": "array", "items": pattern},
					"min_columns": map[string]any{"type": "integer", "minimum": 0},
					"positional":  stringList,
				},
			},
			"policy": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"order_date":       map[string]any{"type": "array", "items": dateRole},
					"ship_date":        map[string]any{"type": "array", "items": dateRole},
					"ship_offset_days": map[string]any{"type": "integer", "minimum": 0, "maximum": 90},
					"customer_default": map[string]any{"type": "string"},
					"store_default":    map[string]any{"type": "string"},
					"item_key_types": map[string]any{
						"type":     "array",
						"minItems": 1,
						"items":    map[string]any{"type": "string", "enum": []string{"vendor_item", "upc", "ean", "gtin"}},
					},
				},
			},
		},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"sources"},
		"properties": map[string]any{
			"sources": map[string]any{
				"type":                 "object",
				"minProperties":        1,
				"additionalProperties": layout,
			},
		},
	}
}

func confidenceProp() map[string]any {
	return map[string]any{
		"type": "string",
		"enum": []string{
			string(constants.ConfidenceExact),
			string(constants.ConfidenceHeuristic),
			string(constants.ConfidenceFallback),
		},
	}
}
