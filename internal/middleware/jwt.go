package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strconv"  // parsing the numeric subject claim
    "strings"  // string utilities for prefix checking and trimming

    "github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
    "github.com/labstack/echo/v4"  // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/ecotour-booking/internal/model"
)

// principalKey is the echo context key holding the caller's model.Principal.
const principalKey = "principal"

// JWTAuth returns an Echo middleware that requires a valid Bearer access
// token and stores the caller as a model.Principal in the context.  The
// secret must match the one the account service signs tokens with.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return authenticate(secret, true)
}

// OptionalJWT accepts anonymous requests.  When a token is present it must
// still be valid; a bad token is rejected rather than silently ignored.
func OptionalJWT(secret string) echo.MiddlewareFunc {
    return authenticate(secret, false)
}

func authenticate(secret string, required bool) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if auth == "" && !required {
                return next(c)
            }
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            // Only HMAC-signed tokens are accepted; anything else is a
            // forged or misconfigured token.
            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(secret), nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }
            p, ok := principalFromClaims(claims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }

            c.Set(principalKey, p)
            c.Set("user_id", strconv.FormatUint(p.UserID, 10))
            c.Set("role", string(p.Role))
            return next(c)
        }
    }
}

// principalFromClaims reads sub, role and name.  The subject may arrive as
// a decimal string or as a JSON number depending on the issuer.
func principalFromClaims(claims jwt.MapClaims) (model.Principal, bool) {
    var id uint64
    switch v := claims["sub"].(type) {
    case string:
        n, err := strconv.ParseUint(v, 10, 64)
        if err != nil {
            return model.Principal{}, false
        }
        id = n
    case float64:
        if v <= 0 {
            return model.Principal{}, false
        }
        id = uint64(v)
    default:
        return model.Principal{}, false
    }
    if id == 0 {
        return model.Principal{}, false
    }
    role := model.Role(strings.ToUpper(claimString(claims, "role")))
    switch role {
    case model.RoleVisitor, model.RoleOperator, model.RoleAdmin:
    default:
        return model.Principal{}, false
    }
    return model.Principal{UserID: id, Role: role, Name: claimString(claims, "name")}, true
}

func claimString(claims jwt.MapClaims, key string) string {
    s, _ := claims[key].(string)
    return s
}

// PrincipalFrom returns the authenticated caller, or the anonymous zero
// principal when the request carried no token.
func PrincipalFrom(c echo.Context) model.Principal {
    p, _ := c.Get(principalKey).(model.Principal)
    return p
}
