package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Operation names used in logs and metrics.
const (
	OpMetadata = "metadata"
	OpPrice    = "price"
)

var (
	// ErrNotJSONObject is returned when the model output is valid JSON
	// but not a top-level object.
	ErrNotJSONObject = errors.New("model output is not a JSON object")
	// ErrNoPrice is returned when nothing numeric survives cleaning.
	ErrNoPrice = errors.New("no numeric price in model output")
)

// MetadataKeys are the keys the metadata prompt asks for and the keys of
// the fallback response.
var MetadataKeys = []string{"title", "brand", "model"}

// MetadataResponse is the parsed top-level object from the model, passed
// through as-is.
type MetadataResponse map[string]any

// PriceResponse serialises a nil Price as JSON null.
type PriceResponse struct {
	Price *float64 `json:"price"`
}

// DefaultMetadata is returned whenever the model output cannot be parsed.
func DefaultMetadata() MetadataResponse {
	return MetadataResponse{"title": "", "brand": "", "model": ""}
}

// MetadataPrompt embeds text in the fixed metadata instruction.
func MetadataPrompt(text string) string {
	return `
Extract the following as JSON from this Amazon product section text:
- title
- brand (if available)
- model (if available)

TEXT:
` + text + `
Return only JSON.
`
}

// PricePrompt embeds text in the fixed price instruction.
func PricePrompt(text string) string {
	return `
Extract the product price from the following text. Return only the price as a number (no currency symbol or text). If not found, return null.

TEXT:
` + text + `
`
}

// ParseMetadata decodes output as a single JSON object. Numbers keep their
// original literal so pass-through does not lose precision.
func ParseMetadata(output string) (MetadataResponse, error) {
	dec := json.NewDecoder(strings.NewReader(output))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: got %s", ErrNotJSONObject, typeErr.Value)
		}
		return nil, fmt.Errorf("decode metadata json: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: got null", ErrNotJSONObject)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode metadata json: unexpected data after top-level object")
	}

	return MetadataResponse(obj), nil
}

// EnforceSchema reshapes parsed metadata to exactly MetadataKeys. Missing or
// non-string values become "".
func EnforceSchema(parsed MetadataResponse) MetadataResponse {
	out := DefaultMetadata()
	for _, key := range MetadataKeys {
		if s, ok := parsed[key].(string); ok {
			out[key] = s
		}
	}
	return out
}

// CleanPrice drops every character that is not an ASCII digit or '.'.
// Signs and thousands separators go too, so "1,234.56" becomes "1234.56".
func CleanPrice(output string) string {
	output = strings.TrimSpace(output)

	var b strings.Builder
	b.Grow(len(output))
	for i := 0; i < len(output); i++ {
		c := output[i]
		if (c >= '0' && c <= '9') || c == '.' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ParsePrice converts a cleaned string to a float. Empty input, malformed
// shapes such as "1.2.3" and out-of-range values are errors.
func ParsePrice(cleaned string) (float64, error) {
	if cleaned == "" {
		return 0, ErrNoPrice
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", cleaned, err)
	}
	return v, nil
}
