package main

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aerorelay-service/pkg/applejwt"
)

func writeKey(t *testing.T) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "AuthKey.p8")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func keyArgs(path string) []string {
	return []string{"--team-id", "TEAM123456", "--key-id", "ABCDE12345", "--bundle-id", "com.example.aero", "--key", path}
}

func TestAppleJWT_Generate(t *testing.T) {
	path := writeKey(t)

	out, err := run(t, append([]string{"apple-jwt", "generate", "--hours", "2"}, keyArgs(path)...)...)
	require.NoError(t, err)

	decoded, err := applejwt.Decode(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ABCDE12345", decoded.Header["kid"])
	assert.Equal(t, "TEAM123456", decoded.Claims["iss"])
	assert.Equal(t, "com.example.aero", decoded.Claims["sub"])

	iat := decoded.Claims["iat"].(float64)
	exp := decoded.Claims["exp"].(float64)
	assert.Equal(t, (2 * time.Hour).Seconds(), exp-iat)
}

func TestAppleJWT_ClientSecretToFile(t *testing.T) {
	path := writeKey(t)
	outFile := filepath.Join(t.TempDir(), "secret.txt")

	out, err := run(t, append([]string{"apple-jwt", "client-secret", "--out", outFile}, keyArgs(path)...)...)
	require.NoError(t, err)
	assert.Empty(t, out)

	raw, err := os.ReadFile(outFile)
	require.NoError(t, err)
	decoded, err := applejwt.Decode(strings.TrimSpace(string(raw)))
	require.NoError(t, err)

	iat := decoded.Claims["iat"].(float64)
	exp := decoded.Claims["exp"].(float64)
	assert.Equal(t, (180 * 24 * time.Hour).Seconds(), exp-iat)
}

func TestAppleJWT_GenerateRejectsLongLifetime(t *testing.T) {
	path := writeKey(t)

	_, err := run(t, append([]string{"apple-jwt", "generate", "--hours", "5000"}, keyArgs(path)...)...)
	assert.ErrorIs(t, err, applejwt.ErrInvalidTTL)
}

func TestAppleJWT_Decode(t *testing.T) {
	path := writeKey(t)
	token, err := run(t, append([]string{"apple-jwt", "provider-token"}, keyArgs(path)...)...)
	require.NoError(t, err)

	out, err := run(t, "apple-jwt", "decode", strings.TrimSpace(token))
	require.NoError(t, err)

	var decoded struct {
		Header  map[string]interface{} `json:"header"`
		Payload map[string]interface{} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "ES256", decoded.Header["alg"])
	assert.Equal(t, "TEAM123456", decoded.Payload["iss"])
	assert.NotContains(t, decoded.Payload, "exp")
}

func TestAppleJWT_BadKeyConfig(t *testing.T) {
	_, err := run(t, "apple-jwt", "generate", "--team-id", "short", "--key-id", "ABCDE12345", "--key", "missing.p8")
	assert.ErrorIs(t, err, applejwt.ErrInvalidConfig)
}

func TestMigrate_RejectsUnknownAction(t *testing.T) {
	_, err := run(t, "migrate", "down")
	assert.Error(t, err)
}
