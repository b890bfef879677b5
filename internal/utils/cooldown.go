package utils

import (
	"math"
	"time"

	"github.com/prperemyshlev/gamelib-auth/internal/domain"
)

// DefaultCooldown is the wait between two OTP requests for the same account
const DefaultCooldown = 2 * time.Minute

// CheckCooldown fails with TooManyRequests when lastAction happened less than
// period before now. A zero lastAction never blocks.
func CheckCooldown(lastAction time.Time, period time.Duration, now time.Time) error {
	if lastAction.IsZero() || period <= 0 {
		return nil
	}

	elapsed := now.Sub(lastAction)
	if elapsed >= period {
		return nil
	}

	return CooldownError(period - elapsed)
}

// CooldownError builds the TooManyRequests error for a remaining wait
func CooldownError(remaining time.Duration) error {
	wait := int(math.Ceil(remaining.Seconds()))
	if wait < 1 {
		wait = 1
	}
	return domain.TooManyRequestsf("Please wait %d seconds before requesting another token.", wait)
}
