package pagetext

import (
	"fmt"
	"strings"

	htmlmd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"pricelens/internal/config"
)

// Normalizer prepares caller-supplied page text before it is embedded in a
// prompt. The zero value and mode "raw" pass the text through unchanged.
type Normalizer struct {
	mode string
}

func NewNormalizer(mode string) *Normalizer {
	return &Normalizer{mode: mode}
}

func (n *Normalizer) Mode() string {
	if n == nil || n.mode == "" {
		return config.InputModeRaw
	}
	return n.mode
}

// Normalize converts text according to the configured mode. On conversion
// failure the original text is returned together with the error so callers
// can log it and carry on.
func (n *Normalizer) Normalize(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	switch n.Mode() {
	case config.InputModeText:
		out, err := ToText(text)
		if err != nil {
			return text, err
		}
		return out, nil
	case config.InputModeMarkdown:
		out, err := ToMarkdown(text)
		if err != nil {
			return text, err
		}
		return out, nil
	default:
		return text, nil
	}
}

// ToText returns the visible document text with script/style content
// removed and whitespace collapsed.
func ToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

// ToMarkdown converts HTML to CommonMark, keeping headings and lists that
// help the model locate titles and prices.
func ToMarkdown(html string) (string, error) {
	converter := htmlmd.NewConverter("", true, nil)
	md, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert html to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}
