package utils

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	// PasswordMinLength is the length floor for new passwords
	PasswordMinLength = 8
	// PasswordMaxLength is the bcrypt input limit in bytes
	PasswordMaxLength = 72
	// EmailMaxLength matches the users.email column
	EmailMaxLength = 255
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail validates an email address
func ValidateEmail(email string) bool {
	return len(email) <= EmailMaxLength && emailRegex.MatchString(email)
}

// ValidatePassword returns a human readable problem, or "" if the password is acceptable
func ValidatePassword(password string) string {
	switch {
	case len(password) < PasswordMinLength:
		return "password must be at least 8 characters long"
	case len(password) > PasswordMaxLength:
		return "password must be at most 72 bytes long"
	case strings.TrimSpace(password) == "":
		return "password must not be blank"
	}
	return ""
}

// SanitizeEmail sanitizes an email address
func SanitizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsLocalPath reports whether target is a same-origin absolute path,
// safe to use as a post-login redirect
func IsLocalPath(target string) bool {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return false
	}
	// Browsers drop tabs and newlines and read backslashes as slashes, so
	// "/\t/host" or "/\\host" would leave the origin.
	for _, r := range target {
		if r < 0x20 || r == 0x7f || r == '\\' {
			return false
		}
	}
	u, err := url.Parse(target)
	return err == nil && u.Scheme == "" && u.Host == ""
}
