package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// User-facing acknowledgment texts. Internal error detail never reaches the
// requester; it is logged only.
const (
	msgCooldown       = "You can get token once in a day."
	msgBusy           = "We are trying to faucet to you."
	msgInvalidAddress = "Invalid Solana address."
	msgSuccess        = "Token transfer successful!"
	msgFailure        = "Token transfer failed!"
	msgRateLimited    = "Too many requests. Please slow down."
	msgGenericError   = "An error occurred while processing your request."
)

// FormatAmount renders an amount with 3 decimal places and thousands
// separators, e.g. 1234567.8 -> "1,234,567.800".
func FormatAmount(amount float64) string {
	s := strconv.FormatFloat(amount, 'f', 3, 64)

	intPart, frac, _ := strings.Cut(s, ".")
	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// FormatStatus renders the per-hit status line shown on the faucet message.
func FormatStatus(amount float64) string {
	return fmt.Sprintf("%s $TOKE per hit", FormatAmount(amount))
}

// FormatAnnouncement renders the public success announcement: sequence
// number, bonus indicator, amount, requester.
func FormatAnnouncement(sequence int64, amount float64, bonus bool, userID string) string {
	indicator := ":rocket:"
	if bonus {
		indicator = ":crown:"
	}
	return fmt.Sprintf(":receipt: *#%d* - %s *%s $TOKE* - :man_astronaut: <@%s>",
		sequence, indicator, FormatAmount(amount), userID)
}
