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

package proxytransport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_DedupesPreservingOrder(t *testing.T) {
	p, err := NewPool([]string{
		"a:b@Host.com:80",
		"a:b@host.com:80", // dup, different case
		"c:d@other.com:443",
	})
	require.NoError(t, err)
	require.Equal(t, 2, p.Len())
	assert.Equal(t, "Host.com", p.Configs()[0].Host)
	assert.Equal(t, "other.com", p.Configs()[1].Host)
}

func TestPoolExhausted_Error(t *testing.T) {
	err := &PoolExhausted{Attempts: []Attempt{{ProxyIndex: 0, VariantName: "default", Error: "boom"}}}
	assert.Contains(t, err.Error(), "1 attempts")
}

func TestDefaultAccept(t *testing.T) {
	assert.True(t, DefaultAccept(&Response{Status: 200}))
	assert.True(t, DefaultAccept(&Response{Status: 399}))
	assert.False(t, DefaultAccept(&Response{Status: 404}))
	assert.False(t, DefaultAccept(&Response{Status: 100}))
}
