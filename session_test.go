package polymind

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActiveChatID(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		wantID string
		wantOK bool
	}{
		{"ChatRoute", "/c/user_42_model_gpt-4o", "user_42_model_gpt-4o", true},
		{"UUIDChat", "/c/abc-123", "abc-123", true},
		{"EncodedID", "/c/user%2042", "user 42", true},
		{"Root", "/", "", false},
		{"OtherRoute", "/settings", "", false},
		{"BareChatPrefix", "/c/", "", false},
		{"SlashInID", "/c/a/b", "a/b", true},
		{"InvalidEscapeKeptRaw", "/c/bad%zz", "bad%zz", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ActiveChatID(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}
