package validation

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     RegisterRequest
		wantMsg string
	}{
		{"valid", RegisterRequest{"Ann", "ann@example.com", "Passw0rd!"}, ""},
		{"missing name", RegisterRequest{"", "ann@example.com", "Passw0rd!"}, "Invalid Name Provided."},
		{"bad email", RegisterRequest{"Ann", "not-an-email", "Passw0rd!"}, "Invalid Email Id Provided."},
		{"weak password", RegisterRequest{"Ann", "ann@example.com", "password"}, PasswordMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(&tt.req)
			if tt.wantMsg == "" {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, tt.wantMsg, err.Message)
		})
	}
}

func TestTweetBodyBounds(t *testing.T) {
	assert.NotNil(t, Struct(TweetRequest{Body: "abc"}))
	assert.Nil(t, Struct(TweetRequest{Body: "abcd"}))
	assert.Nil(t, Struct(TweetRequest{Body: strings.Repeat("a", 280)}))
	assert.NotNil(t, Struct(TweetRequest{Body: strings.Repeat("a", 281)}))

	// 280 multi-byte characters are still within bounds.
	assert.Nil(t, Struct(TweetRequest{Body: strings.Repeat("é", 280)}))

	err := Struct(TweetRequest{Body: ""})
	require.NotNil(t, err)
	assert.Equal(t, "Invalid Body Provided.", err.Message)
	assert.Equal(t, "Body", err.Field)
}

func TestUpdateUserRequestAllowsEmpty(t *testing.T) {
	assert.Nil(t, Struct(UpdateUserRequest{}))

	err := Struct(UpdateUserRequest{Name: "A"})
	require.NotNil(t, err)
	assert.Equal(t, "Invalid name", err.Message)

	assert.NotNil(t, Struct(UpdateUserRequest{Password: "short"}))
}

func TestStrongPassword(t *testing.T) {
	assert.True(t, StrongPassword("Abcdef1!"))
	assert.False(t, StrongPassword("Abcdef1"))
	assert.False(t, StrongPassword("abcdefg1!"))
	assert.False(t, StrongPassword("ABCDEFG1!"))
	assert.False(t, StrongPassword("Abcdefgh!"))
	assert.False(t, StrongPassword("Abcdefg12"))
}

func TestPasswordMessageSharedByAllRequests(t *testing.T) {
	for _, req := range []any{RegisterRequest{}, LoginRequest{}, UpdateUserRequest{}} {
		typ := reflect.TypeOf(req)
		f, ok := typ.FieldByName("Password")
		require.True(t, ok, typ.Name())
		assert.Equal(t, PasswordMessage, tagMessage(f.Tag.Get("msg")), typ.Name())
	}

	err := Struct(LoginRequest{Email: "ann@example.com", Password: "weak"})
	require.NotNil(t, err)
	assert.Equal(t, PasswordMessage, err.Message)

	err = Struct(UpdateUserRequest{Password: "weak"})
	require.NotNil(t, err)
	assert.Equal(t, PasswordMessage, err.Message)
}

func TestTagMessage(t *testing.T) {
	assert.Equal(t, "Invalid name", tagMessage("Invalid name"))
	assert.Equal(t, PasswordMessage, tagMessage("@password"))
	assert.Empty(t, tagMessage("@unknown"))
	assert.Empty(t, tagMessage(""))
}

func TestStrongPasswordCountsCharacters(t *testing.T) {
	// Seven characters but nine bytes.
	assert.False(t, StrongPassword("Ab1!ééx"))
	assert.True(t, StrongPassword("Ab1!éééx"))
}
