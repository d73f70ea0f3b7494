package middleware

// identity.go holds the caller lookup shared by the rate limiter and the
// request logger.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// userID returns the caller's user ID for keys and log fields, or "anon"
// when the request is unauthenticated.
func userID(c echo.Context) string {
    if p := PrincipalFrom(c); !p.Anonymous() {
        return strconv.FormatUint(p.UserID, 10)
    }
    return "anon"
}
