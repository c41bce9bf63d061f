package http

import (
	"bytes"
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"pricelens/internal/extract"
)

// parseExtractRequest decodes the JSON body regardless of Content-Type.
// An empty body is treated as {}. Only the exact key "html" is read.
func parseExtractRequest(c *fiber.Ctx) (ExtractRequest, error) {
	var req ExtractRequest
	body := bytes.TrimSpace(c.Body())
	if len(body) == 0 {
		return req, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return req, err
	}

	req.HTML = htmlText(fields["html"])
	return req, nil
}

// htmlText turns the raw "html" value into prompt text. Strings are
// unquoted, null or absent is "", any other JSON value is used verbatim.
func htmlText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func badRequestInvalidJSON(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Success: false,
		Code:    "BAD_REQUEST_INVALID_JSON",
		Error:   "Bad request, malformed JSON",
	})
}

// metadataHandler implements POST /groq/metadata.
func metadataHandler(c *fiber.Ctx) error {
	req, err := parseExtractRequest(c)
	if err != nil {
		return badRequestInvalidJSON(c)
	}

	svc := c.Locals("extractor").(*extract.Service)
	c.Locals("llm_model", svc.Model())

	resp, err := svc.Metadata(c.UserContext(), req.HTML)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// priceHandler implements POST /groq/price.
func priceHandler(c *fiber.Ctx) error {
	req, err := parseExtractRequest(c)
	if err != nil {
		return badRequestInvalidJSON(c)
	}

	svc := c.Locals("extractor").(*extract.Service)
	c.Locals("llm_model", svc.Model())

	resp, err := svc.Price(c.UserContext(), req.HTML)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}
