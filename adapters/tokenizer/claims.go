package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims are the standard claims of a session token; the JWT ID is the
// credential ID and the subject is the account ID
type SessionClaims struct {
	jwt.RegisteredClaims
}
