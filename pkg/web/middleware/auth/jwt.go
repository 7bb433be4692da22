// Package auth guards admin routes with HMAC-signed bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fluxorio/keyseq/pkg/web"
)

// JWTConfig configures JWT authentication
type JWTConfig struct {
	// SecretKey is the HMAC key tokens are signed with
	SecretKey string

	// ValidMethods is the list of accepted signing algorithms. Default: ["HS256"].
	ValidMethods []string

	// Issuer requires a matching `iss` claim when set.
	Issuer string

	// Leeway allows small clock skew for exp/nbf/iat validation.
	Leeway time.Duration

	// ClaimsKey is the key claims are stored under in the request context
	ClaimsKey string

	// SkipPaths are served without a token, e.g. /healthz for probes.
	SkipPaths []string
}

// DefaultJWTConfig returns a default JWT configuration
func DefaultJWTConfig(secretKey string) JWTConfig {
	return JWTConfig{
		SecretKey:    secretKey,
		ValidMethods: []string{"HS256"},
		ClaimsKey:    "claims",
		SkipPaths:    []string{"/healthz"},
	}
}

// JWT middleware rejects requests without a valid "Authorization: Bearer" token.
func JWT(config JWTConfig) web.Middleware {
	if config.SecretKey == "" {
		panic("JWT: SecretKey must be provided")
	}
	if len(config.ValidMethods) == 0 {
		config.ValidMethods = []string{"HS256"}
	}
	if config.ClaimsKey == "" {
		config.ClaimsKey = "claims"
	}

	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(config.SecretKey), nil
	}
	options := []jwt.ParserOption{jwt.WithValidMethods(config.ValidMethods)}
	if config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(config.Leeway))
	}
	if config.Issuer != "" {
		options = append(options, jwt.WithIssuer(config.Issuer))
	}

	return func(next web.RequestHandler) web.RequestHandler {
		return func(ctx *web.RequestContext) error {
			path := string(ctx.Path())
			for _, skip := range config.SkipPaths {
				if path == skip {
					return next(ctx)
				}
			}

			tokenString, err := bearerToken(ctx)
			if err != nil {
				return unauthorized(ctx)
			}
			token, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, keyFunc, options...)
			if err != nil || !token.Valid {
				return unauthorized(ctx)
			}
			ctx.Set(config.ClaimsKey, token.Claims)
			return next(ctx)
		}
	}
}

// GetClaims extracts JWT claims stored by the middleware
func GetClaims(ctx *web.RequestContext, key string) (jwt.MapClaims, error) {
	claims, ok := ctx.Get(key).(jwt.MapClaims)
	if !ok {
		return nil, errors.New("claims not found in context")
	}
	return claims, nil
}

func bearerToken(ctx *web.RequestContext) (string, error) {
	header := string(ctx.RequestCtx.Request.Header.Peek("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func unauthorized(ctx *web.RequestContext) error {
	ctx.RequestCtx.Response.Header.Set("WWW-Authenticate", `Bearer realm="keyseq", error="invalid_token"`)
	return ctx.JSON(401, map[string]string{
		"error":   "unauthorized",
		"message": "invalid or missing token",
	})
}

// JWTTokenGenerator generates JWT tokens
type JWTTokenGenerator struct {
	secret []byte
}

// NewJWTTokenGenerator creates a new JWT token generator
func NewJWTTokenGenerator(secret []byte) *JWTTokenGenerator {
	return &JWTTokenGenerator{secret: secret}
}

// Generate signs claims with HS256, adding iat and exp.
func (g *JWTTokenGenerator) Generate(claims map[string]interface{}, expiresIn time.Duration) (string, error) {
	mc := jwt.MapClaims{}
	for k, v := range claims {
		mc[k] = v
	}
	now := time.Now()
	mc["iat"] = now.Unix()
	mc["exp"] = now.Add(expiresIn).Unix()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}
