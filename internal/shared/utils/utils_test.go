package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCallbackName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "getSettings", false},
		{"namespaced", "hud:close", false},
		{"dotted", "menu.select-item_2", false},
		{"slashed", "ui/close", false},
		{"spaces", "save settings", false},
		{"non ascii", "ñame", false},
		{"empty", "", true},
		{"nul byte", "a\x00b", true},
		{"too long", strings.Repeat("a", MaxCallbackLength+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCallbackName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateString(t *testing.T) {
	assert.NoError(t, ValidateString("", "name", 1, 10, false))
	assert.Error(t, ValidateString("", "name", 1, 10, true))
	assert.Error(t, ValidateString("a\x00b", "name", 1, 10, true))
	assert.Error(t, ValidateString("héllo wörld", "name", 1, 5, true))
}

func TestJSONSizeValidator(t *testing.T) {
	v := NewJSONSizeValidator(16)

	assert.NoError(t, v.ValidateJSONString(`{"a":[1,2]}`))
	assert.Error(t, v.ValidateJSONString(`{"a":`))
	assert.Error(t, v.ValidateJSONString(`{"a":"0123456789abcdef"}`))

	assert.NoError(t, ValidatePayload(`{"not":"parsed here"`))
	assert.Error(t, ValidatePayload(strings.Repeat("x", MaxPayloadSize+1)))
}

func TestHash(t *testing.T) {
	data := []byte("<p>hello</p>")

	assert.Equal(t, Hash(data), Hash([]byte("<p>hello</p>")))
	assert.NotEqual(t, Hash(data), Hash([]byte("<p>other</p>")))

	etag := ETag(data)
	assert.True(t, strings.HasPrefix(etag, `"`) && strings.HasSuffix(etag, `"`))
}
