package extract

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"pricelens/internal/llm"
	"pricelens/internal/logging"
	"pricelens/internal/metrics"
	"pricelens/internal/pagetext"
)

const rawLogLimit = 256

// Options tune the post-processing of model output.
type Options struct {
	// EnforceMetadataSchema reshapes a parsed metadata object to exactly
	// title/brand/model. Off by default: the parsed object passes through.
	EnforceMetadataSchema bool
}

// Service coordinates prompting the completion API and turning its raw
// text into the two response shapes.
type Service struct {
	completer  llm.Completer
	normalizer *pagetext.Normalizer
	opts       Options
	logger     zerolog.Logger
}

func NewService(completer llm.Completer, normalizer *pagetext.Normalizer, opts Options, logger zerolog.Logger) *Service {
	return &Service{
		completer:  completer,
		normalizer: normalizer,
		opts:       opts,
		logger:     logger,
	}
}

// Model reports the model identifier the service prompts.
func (s *Service) Model() string {
	return s.completer.Model()
}

// Metadata asks the model for title/brand/model. Upstream errors are
// returned unchanged in meaning; unparseable output yields DefaultMetadata.
func (s *Service) Metadata(ctx context.Context, text string) (MetadataResponse, error) {
	output, err := s.complete(ctx, OpMetadata, MetadataPrompt(s.prepare(text)))
	if err != nil {
		return nil, err
	}

	parsed, err := ParseMetadata(output)
	if err != nil {
		metrics.RecordParseFallback(OpMetadata)
		s.logger.Warn().
			Err(err).
			Str("op", OpMetadata).
			Str("raw_output", logging.Truncate(output, rawLogLimit)).
			Msg("metadata output not parseable, returning defaults")
		return DefaultMetadata(), nil
	}

	if s.opts.EnforceMetadataSchema {
		return EnforceSchema(parsed), nil
	}
	return parsed, nil
}

// Price asks the model for a bare number. Unparseable output yields a nil
// price.
func (s *Service) Price(ctx context.Context, text string) (PriceResponse, error) {
	output, err := s.complete(ctx, OpPrice, PricePrompt(s.prepare(text)))
	if err != nil {
		return PriceResponse{}, err
	}

	cleaned := CleanPrice(output)
	price, err := ParsePrice(cleaned)
	if err != nil {
		metrics.RecordParseFallback(OpPrice)
		s.logger.Warn().
			Err(err).
			Str("op", OpPrice).
			Str("raw_output", logging.Truncate(output, rawLogLimit)).
			Str("cleaned", cleaned).
			Msg("price output not parseable, returning null")
		return PriceResponse{Price: nil}, nil
	}

	return PriceResponse{Price: &price}, nil
}

func (s *Service) prepare(text string) string {
	out, err := s.normalizer.Normalize(text)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("mode", s.normalizer.Mode()).
			Msg("input normalization failed, using raw text")
	}
	return out
}

func (s *Service) complete(ctx context.Context, op, prompt string) (string, error) {
	model := s.completer.Model()

	output, err := s.completer.Complete(ctx, prompt)
	metrics.RecordCompletion(op, model, err == nil)
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", op, err)
	}

	s.logger.Debug().
		Str("op", op).
		Str("model", model).
		Int("output_len", len(output)).
		Msg("completion received")
	return output, nil
}
