package utils

import (
    "crypto/rand"
    "fmt"
    "math/big"
    "time"
)

// codeAlphabet excludes lowercase so scanned codes survive upper-casing.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomCode returns n characters drawn uniformly from A-Z0-9 using the
// system CSPRNG.
func RandomCode(n int) (string, error) {
    max := big.NewInt(int64(len(codeAlphabet)))
    buf := make([]byte, n)
    for i := range buf {
        idx, err := rand.Int(rand.Reader, max)
        if err != nil {
            return "", err
        }
        buf[i] = codeAlphabet[idx.Int64()]
    }
    return string(buf), nil
}

// NewOrderNumber builds "<prefix>-YYYYMMDD-HHMMSS-<6 random>".  The time
// component keeps numbers unique across database resets; the random suffix
// separates bookings created in the same second.  Uniqueness is enforced by
// the database, callers retry on a duplicate key.
func NewOrderNumber(prefix string, now time.Time) (string, error) {
    suffix, err := RandomCode(6)
    if err != nil {
        return "", err
    }
    return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102-150405"), suffix), nil
}

// NewTicketCode builds "<prefix>-<10 random>".
func NewTicketCode(prefix string) (string, error) {
    suffix, err := RandomCode(10)
    if err != nil {
        return "", err
    }
    return prefix + "-" + suffix, nil
}
