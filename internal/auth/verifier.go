package auth

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/backend-pressing/internal/common"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, nil)

// Verifier checks customer access tokens minted by the external identity
// service. Tokens are HMAC signed with the shared secret.
type Verifier struct {
	secret    []byte
	validator TokenValidator
	now       func() time.Time
}

// VerifierConfig configures a Verifier.
type VerifierConfig struct {
	Secret    string
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Now       func() time.Time
}

// NewVerifier builds an HS256 verifier.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("auth: secret is required")
	}
	skew := cfg.ClockSkew
	if skew <= 0 {
		skew = 30 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Verifier{
		secret: []byte(cfg.Secret),
		validator: TokenValidator{
			Issuer:    cfg.Issuer,
			Audience:  cfg.Audience,
			ClockSkew: skew,
			Algorithm: jwa.HS256,
		},
		now: now,
	}, nil
}

// Claims is the identity carried by a verified token.
type Claims struct {
	Subject string
	Roles   []string
}

// HasRole reports whether the token grants role.
func (c Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// Verify checks token and returns its subject and roles.
func (v *Verifier) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrInvalidToken
	}
	algorithm, err := tokenAlgorithm(token)
	if err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if algorithm != v.validator.Algorithm {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, errors.New("auth: unexpected algorithm "+algorithm.String()))
	}
	parsed, err := jwt.ParseString(token, jwt.WithKey(algorithm, v.secret), jwt.WithValidate(false))
	if err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if err := v.validator.Validate(parsed, algorithm, v.now()); err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	return Claims{Subject: parsed.Subject(), Roles: rolesClaim(parsed)}, nil
}

// rolesClaim reads the "roles" claim as a JSON array or a space or comma
// separated string.
func rolesClaim(tok jwt.Token) []string {
	raw, ok := tok.Get("roles")
	if !ok {
		return nil
	}
	var values []string
	switch v := raw.(type) {
	case []string:
		values = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				values = append(values, s)
			}
		}
	case string:
		values = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	}
	roles := make([]string, 0, len(values))
	for _, role := range values {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}

// tokenAlgorithm reads the alg header. Multi-signature tokens must agree.
func tokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	msg, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range msg.Signatures() {
		headers := sig.ProtectedHeaders()
		if headers == nil || headers.Algorithm() == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if algorithm != "" && headers.Algorithm() != algorithm {
			return "", errors.New("auth: mixed signature algorithms")
		}
		algorithm = headers.Algorithm()
	}
	if algorithm == "" {
		return "", errors.New("auth: token contains no signatures")
	}
	return algorithm, nil
}
