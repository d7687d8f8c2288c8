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

// Package paywall implements C6: domain-indexed paywall rules, header
// augmentation, JSON-LD article synthesis, element stripping and the
// AMP/archive fallback chain. Rule lookups key off the registerable
// domain the same way safety.RegisterableDomain does, so the rule table
// and the safety allow/deny checks agree on what counts as "the same
// site" for a subdomain.
package paywall

import (
	"encoding/json"
	"strings"
	"sync/atomic"

	"urlmd/internal/safety"
)

// GooglebotUA is the crawler identity applyHeaders substitutes when a
// rule sets Googlebot, matching the one real sites special-case.
const GooglebotUA = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"

// GooglebotXFF is the well-known Google crawler IP block entry substituted
// when a rule sets XForwardedFor.
const GooglebotXFF = "66.249.66.1"

// Rule is the paywall rule record held in a Table.
type Rule struct {
	Domains       []string `json:"domains"`
	Googlebot     bool     `json:"googlebot"`
	Referer       string   `json:"referer,omitempty"`
	JSONLD        bool     `json:"jsonLd"`
	XForwardedFor bool     `json:"xForwardedFor"`
}

// Table is the process-wide, read-mostly rule map keyed by registerable
// domain. Replacement is an atomic pointer swap so concurrent readers
// observe either the whole old map or the whole new one, never a partial
// update — the same "shared-resource policy" mandates for the
// adapter registry.
type Table struct {
	ptr atomic.Pointer[map[string]Rule]
}

// NewTable builds a Table from an initial rule set.
func NewTable(rules []Rule) *Table {
	t := &Table{}
	t.Replace(rules)
	return t
}

// Replace atomically installs a new rule set, indexed by every domain
// each rule lists (so "nytimes.com" and "www.nytimes.com" can both
// appear verbatim in config without relying on subdomain matching).
func (t *Table) Replace(rules []Rule) {
	m := make(map[string]Rule, len(rules))
	for _, r := range rules {
		for _, d := range r.Domains {
			m[strings.ToLower(d)] = r
		}
	}
	t.ptr.Store(&m)
}

// ReplaceFromJSON validates and installs rules from a JSON document
// shaped as either a bare array of rules or {"rules": [...]}. Invalid
// JSON leaves the existing table untouched.
func (t *Table) ReplaceFromJSON(raw []byte) error {
	var rules []Rule
	if err := json.Unmarshal(raw, &rules); err != nil {
		var wrapper struct {
			Rules []Rule `json:"rules"`
		}
		if err2 := json.Unmarshal(raw, &wrapper); err2 != nil {
			return err
		}
		rules = wrapper.Rules
	}
	t.Replace(rules)
	return nil
}

// Lookup returns the rule matching hostname's registerable domain
// (subdomain-aware), or (Rule{}, false) when no rule applies.
func (t *Table) Lookup(hostname string) (Rule, bool) {
	m := t.ptr.Load()
	if m == nil {
		return Rule{}, false
	}
	reg := safety.RegisterableDomain(hostname)
	if r, ok := (*m)[strings.ToLower(hostname)]; ok {
		return r, true
	}
	if r, ok := (*m)[reg]; ok {
		return r, true
	}
	return Rule{}, false
}

// ApplyHeaders mutates headers in place: Googlebot UA
// substitution, Referer override, and the well-known crawler
// X-Forwarded-For value, each gated by the matching Rule field.
func ApplyHeaders(rule Rule, headers map[string]string) {
	if rule.Googlebot {
		headers["User-Agent"] = GooglebotUA
	}
	if rule.Referer != "" {
		headers["Referer"] = rule.Referer
	}
	if rule.XForwardedFor {
		headers["X-Forwarded-For"] = GooglebotXFF
	}
}
