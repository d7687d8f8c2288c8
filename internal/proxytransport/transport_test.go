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
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig("alice:s3cret@proxy.example.com:8080")
	require.NoError(t, err)
	assert.Equal(t, "proxy.example.com", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, "s3cret", cfg.Password)
}

func TestParseConfig_IPv6(t *testing.T) {
	cfg, err := ParseConfig("u:p@[::1]:9999")
	require.NoError(t, err)
	assert.Equal(t, "::1", cfg.Host)
	assert.Equal(t, 9999, cfg.Port)
}

func TestParseConfig_RejectsWhitespace(t *testing.T) {
	_, err := ParseConfig("u:p@ host:80")
	assert.Error(t, err)
}

func TestDecodeChunked_RoundTrip(t *testing.T) {
	body := "Hello, 世界! " + strings.Repeat("x", 100)
	var raw bytes.Buffer
	for _, chunk := range chunkString(body, 7) {
		raw.WriteString(itoaHex(len(chunk)))
		raw.WriteString("\r\n")
		raw.WriteString(chunk)
		raw.WriteString("\r\n")
	}
	raw.WriteString("0\r\n\r\n")

	got, err := decodeChunked(bufio.NewReader(&raw))
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestDecodeChunked_RejectsNonHexSize(t *testing.T) {
	raw := bufio.NewReader(strings.NewReader("zz\r\nhello\r\n0\r\n\r\n"))
	_, err := decodeChunked(raw)
	require.Error(t, err)
	var ic *InvalidChunked
	assert.ErrorAs(t, err, &ic)
}

func TestDecodeChunked_RejectsTrailingBytes(t *testing.T) {
	raw := bufio.NewReader(strings.NewReader("5\r\nhello\r\n0\r\n\r\nEXTRA"))
	_, err := decodeChunked(raw)
	require.Error(t, err)
}

func TestParseStatusLine(t *testing.T) {
	_, err := parseStatusLine("NOT A STATUS LINE")
	var is *InvalidStatus
	require.ErrorAs(t, err, &is)

	code, err := parseStatusLine("HTTP/1.1 204 No Content")
	require.NoError(t, err)
	assert.Equal(t, 204, code)
}

func chunkString(s string, n int) []string {
	var out []string
	b := []byte(s)
	for len(b) > 0 {
		end := n
		if end > len(b) {
			end = len(b)
		}
		out = append(out, string(b[:end]))
		b = b[end:]
	}
	return out
}

func itoaHex(n int) string {
	const hexDigits = "0123456789abcdef"
	if n == 0 {
		return "0"
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{hexDigits[n%16]}, buf...)
		n /= 16
	}
	return string(buf)
}
