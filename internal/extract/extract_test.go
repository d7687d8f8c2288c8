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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urlmd/internal/apperr"
)

const sampleHTML = `
<html><body>
  <div class="article">
    <h1 class="title">Headline Here</h1>
    <p class="byline">By Someone</p>
    <ul class="tags"><li>go</li><li>markdown</li></ul>
    <a class="src" href="https://example.com/a">link</a>
  </div>
</body></html>`

func TestCSS_SingleAndMultipleFields(t *testing.T) {
	schema := Schema{
		BaseSelector: ".article",
		Fields: []Field{
			{Name: "title", Selector: ".title", Type: FieldText},
			{Name: "tags", Selector: ".tags li", Type: FieldText, Multiple: true},
			{Name: "link", Selector: ".src", Type: FieldAttribute, Attribute: "href"},
		},
	}
	result, err := CSS(sampleHTML, schema, "")
	require.NoError(t, err)
	assert.Equal(t, "Headline Here", result["title"])
	assert.Equal(t, []string{"go", "markdown"}, result["tags"])
	assert.Equal(t, "https://example.com/a", result["link"])
}

func TestCSS_MissingRootFallsBackToBody(t *testing.T) {
	schema := Schema{
		BaseSelector: ".does-not-exist",
		Fields:       []Field{{Name: "title", Selector: ".title", Type: FieldText}},
	}
	result, err := CSS(sampleHTML, schema, "")
	require.NoError(t, err)
	assert.Equal(t, "Headline Here", result["title"])
}

func TestCSS_InputTooLarge(t *testing.T) {
	huge := strings.Repeat("a", MaxInputBytes+1)
	_, err := CSS(huge, Schema{}, "")
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.InvalidRequest, e.Kind)
}

func TestValidateXPath_AcceptsRestrictedSubset(t *testing.T) {
	for _, expr := range []string{
		"//div",
		"//div[1]",
		`//div[@class='article']`,
		`//a[contains(@href,'example')]`,
		"/html/body/div",
		"//div/text()",
	} {
		assert.NoErrorf(t, ValidateXPath(expr), "expr=%s", expr)
	}
}

func TestValidateXPath_RejectsUnsupportedConstructs(t *testing.T) {
	for _, expr := range []string{
		"//div[position()>1]",
		"//div/ancestor::body",
		"//div[@class='x' and @id='y']",
	} {
		err := ValidateXPath(expr)
		require.Errorf(t, err, "expr=%s", expr)
		e, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, apperr.UnsupportedXPath, e.Kind)
	}
}

func TestXPath_ExtractsFields(t *testing.T) {
	schema := Schema{
		BaseXPath: "//div",
		Fields: []Field{
			{Name: "title", Selector: "//h1", Type: FieldText},
			{Name: "tags", Selector: "//li", Type: FieldText, Multiple: true},
		},
	}
	result, err := XPath(sampleHTML, schema, "")
	require.NoError(t, err)
	assert.Equal(t, "Headline Here", result["title"])
	assert.Equal(t, []string{"go", "markdown"}, result["tags"])
}

func TestRegex_BasicAndZeroLengthAdvance(t *testing.T) {
	result, err := Regex("a1 b22 c333", RegexSchema{Patterns: map[string]string{"nums": `\d+`}})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "22", "333"}, result["nums"])

	zeroLen, err := Regex("abc", RegexSchema{Patterns: map[string]string{"empty": `x*`}})
	require.NoError(t, err)
	assert.NotEmpty(t, zeroLen["empty"])
}

func TestRegex_MatchExplosionGuard(t *testing.T) {
	input := strings.Repeat("a", MaxMatchesPerLabel+500)
	_, err := Regex(input, RegexSchema{Patterns: map[string]string{"chars": `a`}})
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.InvalidRequest, e.Kind)
}

func TestRegex_EmptyPatternsIsInvalid(t *testing.T) {
	_, err := Regex("abc", RegexSchema{})
	require.Error(t, err)
}
