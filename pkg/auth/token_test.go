package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	tg := NewTokenGenerator()

	token, hash, prefix, err := tg.GenerateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, TokenPrefix))
	assert.True(t, strings.HasPrefix(prefix, TokenPrefix))
	assert.True(t, strings.HasPrefix(token, prefix))
	assert.Len(t, hash, 64)
	assert.Equal(t, tg.HashToken(token), hash)

	require.NoError(t, tg.ValidateTokenFormat(token))
}

func TestGenerateTokenUnique(t *testing.T) {
	tg := NewTokenGenerator()

	first, _, _, err := tg.GenerateToken()
	require.NoError(t, err)
	second, _, _, err := tg.GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestValidateTokenFormat(t *testing.T) {
	tg := NewTokenGenerator()

	tests := []struct {
		name  string
		token string
		valid bool
	}{
		{"wrong prefix", "apikey_abcdef", false},
		{"prefix only", "corpus_", false},
		{"bad encoding", "corpus_!!!", false},
		{"well formed", "corpus_abcDEF123-_", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tg.ValidateTokenFormat(tt.token)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
