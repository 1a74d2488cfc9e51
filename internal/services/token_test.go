package services_test

import (
	"strings"
	"testing"

	"unholygrail/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTTokenIssuer_IssueIsUnique(t *testing.T) {
	issuer := services.NewJWTTokenIssuer("test_secret")

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := issuer.Issue()
		require.NoError(t, err)
		assert.False(t, seen[token], "token issued twice")
		seen[token] = true
	}
}

func TestJWTTokenIssuer_Check(t *testing.T) {
	issuer := services.NewJWTTokenIssuer("test_secret")

	token, err := issuer.Issue()
	require.NoError(t, err)
	assert.NoError(t, issuer.Check(token))

	// Wrong secret
	other := services.NewJWTTokenIssuer("other_secret")
	assert.Error(t, other.Check(token))

	// Garbage
	err = issuer.Check("invalid.token.string")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")

	// Unsigned token
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.StandardClaims{Id: "x"})
	none, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	assert.Error(t, issuer.Check(none))
}

func TestJWTTokenIssuer_ClaimsCarryNoIdentity(t *testing.T) {
	issuer := services.NewJWTTokenIssuer("test_secret")
	token, err := issuer.Issue()
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = new(jwt.Parser).ParseUnverified(token, claims)
	require.NoError(t, err)

	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"jti", "iat"}, keys, strings.Join(keys, ","))
}
