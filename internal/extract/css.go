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

package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"urlmd/internal/apperr"
)

// CSS runs schema's fields against html using CSS selectors. Missing
// root (schema.BaseSelector not found) falls back to the document body.
func CSS(html string, schema Schema, selectorRoot string) (Result, error) {
	if err := tooLarge(html); err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidRequest, err)
	}

	root := doc.Selection
	base := selectorRoot
	if base == "" {
		base = schema.BaseSelector
	}
	if base != "" {
		if sel := doc.Find(base); sel.Length() > 0 {
			root = sel
		} else if body := doc.Find("body"); body.Length() > 0 {
			root = body
		}
	}

	result := make(Result, len(schema.Fields))
	for _, f := range schema.Fields {
		sel := root
		if f.Selector != "" {
			sel = root.Find(f.Selector)
		}
		if f.Multiple {
			var values []string
			sel.Each(func(_ int, s *goquery.Selection) {
				values = append(values, extractCSSValue(s, f))
			})
			result[f.Name] = values
			continue
		}
		if sel.Length() == 0 {
			result[f.Name] = ""
			continue
		}
		result[f.Name] = extractCSSValue(sel.First(), f)
	}
	return result, nil
}

func extractCSSValue(s *goquery.Selection, f Field) string {
	switch f.Type {
	case FieldHTML:
		out, err := goquery.OuterHtml(s)
		if err != nil {
			return ""
		}
		return out
	case FieldAttribute:
		v, _ := s.Attr(f.Attribute)
		return v
	default:
		return strings.TrimSpace(s.Text())
	}
}
