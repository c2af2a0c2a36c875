package httpapi

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"authrisk/internal/riskengine"
)

// mintSessionStub mints a short-lived placeholder token once the policy
// returns allow, demonstrating the I/O boundary spec.md §1 places session
// token minting across without the risk engine depending on it. Grounded
// on the teacher's generateAccessToken (internal/handlers/auth_handlers.go),
// minus refresh-token/cookie concerns that belong to the real session layer.
func mintSessionStub(secret, email string, result riskengine.AuthAnalysisResult) (string, error) {
	ttl := 15 * time.Minute
	claims := jwt.MapClaims{
		"email":      email,
		"risk_level": string(result.RiskLevel),
		"exp":        time.Now().Add(ttl).Unix(),
		"iat":        time.Now().Unix(),
		"typ":        "risk_session_stub",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
