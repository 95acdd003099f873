package passwordcheck

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

	"accountd/commons"
)

const MinLength = 8

// RangeURL is the k-anonymity endpoint queried with the first five hash characters.
var RangeURL = "https://api.pwnedpasswords.com/range/"

var httpClient = &http.Client{Timeout: 5 * time.Second}

var ErrPwned = errors.New("password has been found in data breaches; choose a different one")

type rule struct {
	check   func(rune) bool
	message string
}

var rules = []rule{
	{unicode.IsUpper, "password must contain at least one uppercase letter"},
	{unicode.IsLower, "password must contain at least one lowercase letter"},
	{unicode.IsDigit, "password must contain at least one digit"},
	{func(r rune) bool { return unicode.IsSymbol(r) || unicode.IsPunct(r) }, "password must contain at least one special character (e.g., !@#$%)"},
}

// ValidatePassword enforces the password policy. A failing breach lookup is
// logged and does not reject the password.
func ValidatePassword(ctx context.Context, password string) error {
	if len([]rune(password)) < MinLength {
		return fmt.Errorf("password must be at least %d characters long", MinLength)
	}
	for _, r := range rules {
		if !strings.ContainsFunc(password, r.check) {
			return errors.New(r.message)
		}
	}

	if commons.GetConfig().PwnedPasswordsEnabled {
		pwned, err := checkPasswordPwned(ctx, password)
		if err != nil {
			commons.Logger.Warn("Pwned password check skipped: ", err)
			return nil
		}
		if pwned {
			return ErrPwned
		}
	}
	return nil
}

func checkPasswordPwned(ctx context.Context, password string) (bool, error) {
	sum := sha1.Sum([]byte(password))
	hash := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := hash[:5], hash[5:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, RangeURL+prefix, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Add-Padding", "true")

	resp, err := httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("HIBP API request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("HIBP API returned %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		candidate, count, ok := strings.Cut(strings.TrimSpace(scanner.Text()), ":")
		if ok && candidate == suffix && count != "0" {
			return true, nil
		}
	}
	return false, scanner.Err()
}
