package types

import "fmt"

// KoboToNaira renders a kobo amount as a naira string for display surfaces.
func KoboToNaira(amountKobo int64) string {
	sign := ""
	if amountKobo < 0 {
		sign = "-"
		amountKobo = -amountKobo
	}
	return fmt.Sprintf("%s₦%d.%02d", sign, amountKobo/100, amountKobo%100)
}
