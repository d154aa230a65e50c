package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("correct horse 1")
	assert.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, "correct horse 1", hash)

	assert.True(t, Verify(hash, "correct horse 1"))
	assert.False(t, Verify(hash, "wrong horse 1"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "hunter2hunter2", false},
		{"too short", "ab1", true},
		{"no digit", "abcdefgh", true},
		{"no letter", "12345678", true},
		{"letters and digits", "abcd1234", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
