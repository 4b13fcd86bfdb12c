/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package summary

import (
	"context"
	"fmt"

	"rollsum/internal/conversation"
	"rollsum/pkg/logger"
)

// TokenCounter counts tokens per turn. The returned slice has the same length
// as turns.
type TokenCounter func(ctx context.Context, turns []conversation.Turn) (tokenNum []int64, err error)

// Variant selects where the rolling summary lives.
type Variant string

const (
	// VariantField keeps the summary in State.Summary, separate from the turns.
	VariantField Variant = "field"

	// VariantEmbedded keeps the summary as a marked system turn at index 0.
	// It exists for histories written by older builds that had no summary field.
	VariantEmbedded Variant = "embedded"
)

// ParseVariant maps a config string onto a Variant. The empty string selects VariantField.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case "", VariantField:
		return VariantField, nil
	case VariantEmbedded:
		return VariantEmbedded, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
	}
}

// Config defines how the controller decides, prompts and compacts.
//
// Required fields:
//   - Gateway: the model used for both replies and summaries
//
// Optional fields:
//   - Variant: summary representation (default: VariantField)
//   - Threshold: countable turns tolerated before summarizing (default depends on Variant)
//   - KeepRecent: actual turns kept verbatim after compaction (default: 2)
//   - Counter: token counter for reporting (default: cl100k_base encoding)
//   - Metrics: ES reporter (default: none)
type Config struct {
	Gateway conversation.Gateway

	Variant Variant

	// Threshold is compared strictly: a pass summarizes only when the
	// countable turns exceed it. Nil selects the variant default; zero
	// summarizes after every reply.
	Threshold *int

	// KeepRecent is the number of actual turns retained after compaction.
	// Zero or negative selects DefaultKeepRecent.
	KeepRecent int

	Counter TokenCounter

	Metrics *logger.Metrics
}

const (
	DefaultThresholdField    = 4
	DefaultThresholdEmbedded = 6
	DefaultKeepRecent        = 2
)

// Validate checks required fields and the variant.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if c.Gateway == nil {
		return ErrGatewayRequired
	}
	if _, err := ParseVariant(string(c.Variant)); err != nil {
		return err
	}
	if c.Threshold != nil && *c.Threshold < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidThreshold, *c.Threshold)
	}
	return nil
}

// GetVariant returns the effective variant.
func (c *Config) GetVariant() Variant {
	v, err := ParseVariant(string(c.Variant))
	if err != nil {
		return VariantField
	}
	return v
}

// GetThreshold returns the effective threshold, using the variant default if not set.
func (c *Config) GetThreshold() int {
	if c.Threshold != nil && *c.Threshold >= 0 {
		return *c.Threshold
	}
	if c.GetVariant() == VariantEmbedded {
		return DefaultThresholdEmbedded
	}
	return DefaultThresholdField
}

// GetKeepRecent returns the effective retention count, using the default if not set.
func (c *Config) GetKeepRecent() int {
	if c.KeepRecent <= 0 {
		return DefaultKeepRecent
	}
	return c.KeepRecent
}
