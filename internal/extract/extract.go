// Copyright 2025 The urlmd Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package extract implements C7: structured extraction of fields from
// HTML via CSS selectors, a restricted XPath subset, or regular
// expressions.
package extract

import (
	"urlmd/internal/apperr"
)

// MaxInputBytes bounds HTML input to extraction.
const MaxInputBytes = 2 << 20 // 2 MB

// FieldType is the shape of value a Field captures.
type FieldType string

const (
	FieldText      FieldType = "text"
	FieldHTML      FieldType = "html"
	FieldAttribute FieldType = "attribute"
)

// Field describes one named extraction target.
type Field struct {
	Name      string
	Selector  string // CSS selector or XPath expression, depending on strategy
	Type      FieldType
	Attribute string
	Multiple  bool
}

// Schema is the structured schema shared by the css and xpath
// strategies.
type Schema struct {
	BaseSelector string // used by the css strategy
	BaseXPath    string // used by the xpath strategy
	Fields       []Field
}

// Strategy names the extraction backend.
type Strategy string

const (
	StrategyCSS   Strategy = "css"
	StrategyXPath Strategy = "xpath"
	StrategyRegex Strategy = "regex"
)

// Result maps field name to either a single string or, for Multiple
// fields, a []string.
type Result map[string]any

func tooLarge(html string) error {
	if len(html) > MaxInputBytes {
		return apperr.New(apperr.InvalidRequest, "html input exceeds 2MB extraction limit")
	}
	return nil
}

// Extract dispatches to CSS, XPath, or Regex by strategy, matching the
// single-entry-point shape of extract(strategy, ...).
// regexSchema is only consulted when strategy == StrategyRegex.
func Extract(strategy Strategy, html string, schema Schema, regexSchema RegexSchema, selectorRoot string) (Result, error) {
	switch strategy {
	case StrategyCSS:
		return CSS(html, schema, selectorRoot)
	case StrategyXPath:
		return XPath(html, schema, selectorRoot)
	case StrategyRegex:
		return Regex(html, regexSchema)
	default:
		return nil, apperr.New(apperr.InvalidRequest, "unknown extraction strategy: "+string(strategy))
	}
}
