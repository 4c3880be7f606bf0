package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://auth.example.com"

// createUnsignedToken creates an unsigned JWT for development mode tests.
func createUnsignedToken(claims *Claims) string {
	header, _ := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	body, _ := json.Marshal(claims)
	return base64.RawURLEncoding.EncodeToString(header) + "." + base64.RawURLEncoding.EncodeToString(body) + "."
}

func testClaims(issuer string) *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: "user@example.com",
		Roles: []string{"analyst"},
	}
}

// newVerifyingClient builds a client whose single issuer trusts key.
func newVerifyingClient(t *testing.T, key *rsa.PrivateKey) *JWKSClient {
	t.Helper()
	jwk := map[string]any{
		"kty": "RSA",
		"kid": "test-key",
		"alg": "RS256",
		"use": "sig",
		"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}
	raw, err := json.Marshal(map[string]any{"keys": []any{jwk}})
	require.NoError(t, err)

	kf, err := keyfunc.NewJWKSetJSON(raw)
	require.NoError(t, err)

	_, cancel := context.WithCancel(context.Background())
	return &JWKSClient{
		endpoints: map[string]keyfunc.Keyfunc{testIssuer: kf},
		verify:    true,
		cancel:    cancel,
	}
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key"
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestJWKSClient_DevMode(t *testing.T) {
	client, err := NewJWKSClient(context.Background(), &JWKSConfig{EnableVerification: false})
	require.NoError(t, err)
	defer client.Close()

	claims, err := client.ValidateToken(createUnsignedToken(testClaims(testIssuer)))
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, []string{"analyst"}, claims.Roles)

	_, err = client.ValidateToken("not-a-valid-token")
	assert.ErrorContains(t, err, "failed to parse token")
}

func TestJWKSClient_Verification(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	client := newVerifyingClient(t, key)
	defer client.Close()

	expired := testClaims(testIssuer)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	tests := []struct {
		name    string
		token   string
		wantErr string
	}{
		{name: "valid", token: signToken(t, key, testClaims(testIssuer))},
		{name: "unknown issuer", token: signToken(t, key, testClaims("https://evil.example.com")), wantErr: "unauthorized issuer"},
		{name: "wrong key", token: signToken(t, other, testClaims(testIssuer)), wantErr: "token validation failed"},
		{name: "expired", token: signToken(t, key, expired), wantErr: "token is expired"},
		{name: "unsigned", token: createUnsignedToken(testClaims(testIssuer)), wantErr: "token validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := client.ValidateToken(tt.token)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "user-123", claims.Subject)
		})
	}
}

func TestNewJWKSClient_UnreachableEndpoint(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := NewJWKSClient(ctx, &JWKSConfig{
		EnableVerification: true,
		JWKSEndpoints:      map[string]string{testIssuer: "http://127.0.0.1:1/jwks.json"},
	})
	if err != nil {
		assert.Contains(t, err.Error(), fmt.Sprintf("failed to create JWKS client for %s", testIssuer))
		return
	}
	// keyfunc may defer the first fetch; an unreachable set still rejects tokens.
	defer client.Close()
	_, err = client.ValidateToken(createUnsignedToken(testClaims(testIssuer)))
	assert.Error(t, err)
}
