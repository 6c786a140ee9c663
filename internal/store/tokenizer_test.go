package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"camelCase", "getUserById", []string{"get", "user", "by", "id"}},
		{"snake_case", "parse_http_request", []string{"parse", "http", "request"}},
		{"acronym", "HTTPHandler", []string{"http", "handler"}},
		{"shortTokensDropped", "a getX b", []string{"get"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenizeCode(tt.in))
		})
	}
}

func TestSplitCamelCase(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"getUserById", []string{"get", "User", "By", "Id"}},
		{"parseHTTPRequest", []string{"parse", "HTTP", "Request"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, splitCamelCase(tt.in))
	}
}
