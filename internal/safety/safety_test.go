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

package safety

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_RejectsBadSchemes(t *testing.T) {
	_, err := Validate("ftp://example.com/a")
	require.Error(t, err)
}

func TestValidate_RejectsPrivateAndLoopback(t *testing.T) {
	for _, raw := range []string{
		"http://127.0.0.1/",
		"http://localhost/",
		"http://10.0.0.5/",
		"http://192.168.1.1/",
		"http://169.254.1.1/",
		"http://0.0.0.0/",
	} {
		_, err := Validate(raw)
		assert.Errorf(t, err, "expected %s to be rejected", raw)
	}
}

func TestValidate_RejectsOversizeAndWhitespace(t *testing.T) {
	long := "http://example.com/" + strings.Repeat("a", MaxURLLength)
	_, err := Validate(long)
	require.Error(t, err)

	_, err = Validate("http://example.com/a b")
	require.Error(t, err)
}

func TestValidate_AcceptsPublicURL(t *testing.T) {
	d, err := Validate("https://www.example.com/a?x=1")
	require.NoError(t, err)
	assert.Equal(t, "example.com", d.Registered)
	assert.Equal(t, "www.example.com", d.Host)
}

func TestRegisterableDomain_TwoPartTLD(t *testing.T) {
	assert.Equal(t, "bbc.co.uk", RegisterableDomain("www.bbc.co.uk"))
	assert.Equal(t, "example.com", RegisterableDomain("sub.example.com"))
}

func TestNormalize_StripsDefaultPortAndLowercases(t *testing.T) {
	out, err := Normalize("HTTP://Example.COM:80/Path")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/Path", out)
}

func TestIsSafeURL(t *testing.T) {
	assert.True(t, IsSafeURL("https://example.com/page"))
	assert.False(t, IsSafeURL("http://127.0.0.1/admin"))
}
