package auth

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usermgmt/config"
	"usermgmt/internal/domain/entity"
)

func newTestHasher(t *testing.T) *scryptHasher {
	t.Helper()

	cfg := &config.Config{Auth: &config.AuthConfig{
		Scrypt: config.ScryptConfig{N: 1024, R: 8, P: 1, KeyLength: 32, SaltLength: 16},
	}}
	hasher, err := NewScryptHasher(cfg)
	require.NoError(t, err)

	return hasher.(*scryptHasher)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestScryptHasher_HashAndVerify(t *testing.T) {
	hasher := newTestHasher(t)
	password := "correct horse battery staple"

	credential, err := hasher.Hash(password)
	require.NoError(t, err)

	assert.Equal(t, entity.AlgorithmScrypt, credential.Algorithm)
	assert.Equal(t, entity.ScryptParams{N: 1024, R: 8, P: 1, KeyLength: 32}, credential.Params)

	salt, err := base64.StdEncoding.DecodeString(credential.Salt)
	require.NoError(t, err)
	assert.Len(t, salt, 16)

	key, err := base64.StdEncoding.DecodeString(credential.Hash)
	require.NoError(t, err)
	assert.Len(t, key, 32)

	assert.True(t, hasher.Verify(password, credential))
	assert.False(t, hasher.Verify(password+"!", credential))
	assert.False(t, hasher.Verify("", credential))
}

func TestScryptHasher_HashDoesNotLeakPlaintext(t *testing.T) {
	hasher := newTestHasher(t)
	password := "plaintext-secret"

	credential, err := hasher.Hash(password)
	require.NoError(t, err)

	assert.NotContains(t, credential.Salt, password)
	assert.NotContains(t, credential.Hash, password)
	assert.NotContains(t, credential.Hash, base64.StdEncoding.EncodeToString([]byte(password)))
}

func TestScryptHasher_FreshSaltPerHash(t *testing.T) {
	hasher := newTestHasher(t)

	first, err := hasher.Hash("same-password")
	require.NoError(t, err)
	second, err := hasher.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, first.Salt, second.Salt)
	assert.NotEqual(t, first.Hash, second.Hash)
	assert.True(t, hasher.Verify("same-password", first))
	assert.True(t, hasher.Verify("same-password", second))
}

func TestScryptHasher_VerifyUsesStoredParams(t *testing.T) {
	hasher := newTestHasher(t)
	credential, err := hasher.Hash("rotate-me")
	require.NoError(t, err)

	stronger, err := NewScryptHasher(&config.Config{Auth: &config.AuthConfig{
		Scrypt: config.ScryptConfig{N: 2048, R: 8, P: 1, KeyLength: 64, SaltLength: 32},
	}})
	require.NoError(t, err)

	assert.True(t, stronger.Verify("rotate-me", credential))
}

func TestScryptHasher_VerifyMalformedCredential(t *testing.T) {
	hasher := newTestHasher(t)
	password := "malformed-check"

	valid, err := hasher.Hash(password)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *entity.Credential)
	}{
		{name: "unknown algorithm", mutate: func(c *entity.Credential) { c.Algorithm = "bcrypt" }},
		{name: "salt not base64", mutate: func(c *entity.Credential) { c.Salt = "%%%" }},
		{name: "empty salt", mutate: func(c *entity.Credential) { c.Salt = "" }},
		{name: "hash not base64", mutate: func(c *entity.Credential) { c.Hash = "not base64!" }},
		{name: "key length mismatch", mutate: func(c *entity.Credential) { c.Params.KeyLength = 64 }},
		{name: "n not power of two", mutate: func(c *entity.Credential) { c.Params.N = 1000 }},
		{name: "n too small", mutate: func(c *entity.Credential) { c.Params.N = 1 }},
		{name: "zero r", mutate: func(c *entity.Credential) { c.Params.R = 0 }},
		{name: "negative p", mutate: func(c *entity.Credential) { c.Params.P = -1 }},
		{name: "memory above ceiling", mutate: func(c *entity.Credential) { c.Params.N = 1 << 20 }},
		{name: "p above ceiling", mutate: func(c *entity.Credential) {
			c.Params = entity.ScryptParams{N: 2, R: 1, P: 1 << 20, KeyLength: c.Params.KeyLength}
		}},
		{name: "truncated hash", mutate: func(c *entity.Credential) { c.Hash = c.Hash[:len(c.Hash)/2] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			credential := *valid
			tt.mutate(&credential)

			assert.NotPanics(t, func() {
				assert.False(t, hasher.Verify(password, &credential))
			})
		})
	}

	assert.False(t, hasher.Verify(password, nil))
}

func TestParamsWithinBounds(t *testing.T) {
	tests := []struct {
		name   string
		params entity.ScryptParams
		want   bool
	}{
		{name: "defaults", params: entity.ScryptParams{N: 1 << 14, R: 8, P: 1, KeyLength: 64}, want: true},
		{name: "largest n at r=8", params: entity.ScryptParams{N: 1 << 15, R: 8, P: 1, KeyLength: 64}, want: true},
		{name: "n at the ceiling leaves no room for p", params: entity.ScryptParams{N: 1 << 16, R: 8, P: 1, KeyLength: 64}, want: false},
		{name: "small n with huge p", params: entity.ScryptParams{N: 2, R: 1, P: 1 << 20, KeyLength: 32}, want: false},
		{name: "p just under the ceiling", params: entity.ScryptParams{N: 2, R: 1, P: (config.MaxScryptMemory / 128) - 2, KeyLength: 32}, want: true},
		{name: "p just over the ceiling", params: entity.ScryptParams{N: 2, R: 1, P: (config.MaxScryptMemory / 128) - 1, KeyLength: 32}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, paramsWithinBounds(tt.params))
		})
	}
}

func TestScryptHasher_HashRandomFailure(t *testing.T) {
	hasher := newTestHasher(t)
	hasher.random = failingReader{}

	credential, err := hasher.Hash("irrelevant")
	require.Error(t, err)
	assert.Nil(t, credential)
	assert.True(t, strings.Contains(err.Error(), "failed to generate salt"))
}

func TestNewScryptHasher_RejectsInvalidParams(t *testing.T) {
	_, err := NewScryptHasher(&config.Config{Auth: &config.AuthConfig{
		Scrypt: config.ScryptConfig{N: 1000, R: 8, P: 1, KeyLength: 64, SaltLength: 16},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scrypt configuration")
}
