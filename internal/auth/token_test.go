package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTrip(t *testing.T) {
	tm := NewTokenManager([]byte("secret"), "pos")

	token, err := tm.GenerateJWT(17, time.Hour)
	require.NoError(t, err)

	claims, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(17), claims.TenantID)
	assert.Equal(t, "pos", claims.Issuer)
}

func TestVerifyRejects(t *testing.T) {
	tm := NewTokenManager([]byte("secret"), "pos")

	expired, err := tm.GenerateJWT(1, -time.Minute)
	require.NoError(t, err)

	otherKey, err := NewTokenManager([]byte("other"), "pos").GenerateJWT(1, time.Hour)
	require.NoError(t, err)

	otherIssuer, err := NewTokenManager([]byte("secret"), "someone-else").GenerateJWT(1, time.Hour)
	require.NoError(t, err)

	noTenant, err := tm.GenerateJWT(0, time.Hour)
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		TenantID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "pos",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not-a-jwt", ErrInvalidToken},
		{"expired", expired, ErrInvalidToken},
		{"wrong key", otherKey, ErrInvalidToken},
		{"wrong issuer", otherIssuer, ErrInvalidToken},
		{"missing tenant", noTenant, ErrInvalidToken},
		{"unsigned", noneAlg, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tm.Verify(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr error
	}{
		{"Bearer abc.def", "abc.def", nil},
		{"bearer abc", "abc", nil},
		{"", "", ErrMissingToken},
		{"Basic dXNlcg==", "", ErrInvalidToken},
		{"Bearer ", "", ErrInvalidToken},
		{"abc", "", ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := BearerToken(tt.header)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
