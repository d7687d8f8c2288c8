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
	"regexp"
	"strings"
	"unicode/utf8"

	"urlmd/internal/apperr"
)

// MaxMatchesPerLabel is the match-explosion guard for the regex strategy.
const MaxMatchesPerLabel = 1000

// RegexSchema holds labeled patterns and optional flags (empty Flags is
// treated as "g" by Regex). It has no JSON decoding of its own: the
// HTTP layer fills it only from the {patterns:{label:pattern}, flags}
// form, and a bare legacy {label:pattern} map is not parsed anywhere.
type RegexSchema struct {
	Patterns map[string]string
	Flags    string
}

// Regex runs each labeled pattern in schema against html, returning all
// non-overlapping matches per label. Flags default to "g" (find all);
// the "i", "m", and "s" flags (case-insensitive, multi-line ^/$,
// dot-matches-newline) are applied to every pattern via a leading
// `(?flags)` group. An empty pattern map or a pattern that fails to
// compile is InvalidSchema-equivalent (surfaced here as
// apperr.InvalidRequest, since the taxonomy has no separate
// InvalidSchema kind); zero-length matches advance the scan position
// by one rune to avoid an infinite loop; exceeding MaxMatchesPerLabel
// for any label is InvalidRequest.
func Regex(html string, schema RegexSchema) (Result, error) {
	if err := tooLarge(html); err != nil {
		return nil, err
	}
	if len(schema.Patterns) == 0 {
		return nil, apperr.New(apperr.InvalidRequest, "regex schema has no patterns")
	}

	inlineFlags := regexInlineFlags(schema.Flags)

	result := make(Result, len(schema.Patterns))
	for label, pattern := range schema.Patterns {
		if inlineFlags != "" {
			pattern = "(?" + inlineFlags + ")" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, apperr.Wrap(apperr.InvalidRequest, err)
		}

		matches, err := findAllBounded(re, html, MaxMatchesPerLabel)
		if err != nil {
			return nil, apperr.New(apperr.InvalidRequest, label+": "+err.Error())
		}
		result[label] = matches
	}
	return result, nil
}

// findAllBounded mirrors regexp.FindAllString but stops (returning an
// error) once more than limit matches have been found, and explicitly
// advances past zero-length matches by one rune rather than looping on
// the same index forever.
func findAllBounded(re *regexp.Regexp, s string, limit int) ([]string, error) {
	var out []string
	pos := 0
	for pos <= len(s) {
		loc := re.FindStringIndex(s[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		out = append(out, s[start:end])
		if len(out) > limit {
			return nil, errMatchExplosion
		}
		if end == start {
			if end >= len(s) {
				break
			}
			_, size := utf8.DecodeRuneInString(s[end:])
			pos = end + size
			continue
		}
		pos = end
	}
	return out, nil
}

// regexInlineFlags translates the schema's "g"-inclusive flag string into
// the RE2 inline-flag letters Go's regexp accepts ("i", "m", "s"); "g"
// (find-all) is handled by findAllBounded, not the pattern itself, and
// unrecognized letters are dropped rather than rejected.
func regexInlineFlags(flags string) string {
	var out strings.Builder
	for _, c := range flags {
		switch c {
		case 'i', 'm', 's':
			out.WriteRune(c)
		}
	}
	return out.String()
}

var errMatchExplosion = matchExplosionError{}

type matchExplosionError struct{}

func (matchExplosionError) Error() string { return "match explosion: exceeded 1000 matches" }
