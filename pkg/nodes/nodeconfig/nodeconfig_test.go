package nodeconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/nodeflow/pkg/protocol"
)

type sample struct {
	Endpoint     string `json:"endpoint"     validate:"required"`
	Method       string `json:"method"       validate:"omitempty,oneof=GET POST PUT PATCH DELETE"`
	VariableName string `json:"variableName" label:"Variable name" validate:"required,varname"`
	Timeout      int    `json:"timeout"      validate:"omitempty,min=1,max=300"`
}

func TestDecode(t *testing.T) {
	var cfg sample

	err := Decode("HTTP Request", map[string]any{
		"endpoint":     "https://example.com",
		"method":       "POST",
		"variableName": "resp",
		"timeout":      float64(10),
		"unknown":      "ignored",
	}, &cfg)
	require.NoError(t, err)

	assert.Equal(t, sample{Endpoint: "https://example.com", Method: "POST", VariableName: "resp", Timeout: 10}, cfg)
}

func TestDecode_Violations(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]any
		message string
	}{
		{
			name:    "missing endpoint",
			raw:     map[string]any{"variableName": "x"},
			message: "HTTP Request node: endpoint is missing",
		},
		{
			name:    "missing variable name uses label",
			raw:     map[string]any{"endpoint": "https://x"},
			message: "HTTP Request node: Variable name is missing",
		},
		{
			name:    "bad variable name",
			raw:     map[string]any{"endpoint": "https://x", "variableName": "9lives"},
			message: `HTTP Request node: Variable name "9lives" must start with a letter, underscore or $ and contain only letters, numbers, underscores or $`,
		},
		{
			name:    "method outside enum",
			raw:     map[string]any{"endpoint": "https://x", "variableName": "x", "method": "TRACE"},
			message: "HTTP Request node: method must be one of GET, POST, PUT, PATCH, DELETE",
		},
		{
			name:    "timeout too large",
			raw:     map[string]any{"endpoint": "https://x", "variableName": "x", "timeout": 301},
			message: "HTTP Request node: timeout must be at most 300",
		},
		{
			name:    "wrong type",
			raw:     map[string]any{"endpoint": 12, "variableName": "x"},
			message: "HTTP Request node: endpoint must be a string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg sample

			err := Decode("HTTP Request", tt.raw, &cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, protocol.ErrConfiguration)
			assert.False(t, protocol.IsRetryable(err))
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestDecode_NilConfig(t *testing.T) {
	var cfg sample

	err := Decode("HTTP Request", nil, &cfg)
	assert.EqualError(t, err, "HTTP Request node: endpoint is missing")
}

func TestValidVariableName(t *testing.T) {
	for _, name := range []string{"a", "_x", "$ref", "myApiCall", "a1_$"} {
		assert.True(t, ValidVariableName(name), name)
	}

	for _, name := range []string{"", "1a", "a-b", "a.b", "a b"} {
		assert.False(t, ValidVariableName(name), name)
	}
}
