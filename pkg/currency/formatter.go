package currency

import (
	"fmt"
	"math"
)

// Format renders a provider-reported amount with its currency code, e.g.
// "USD 1,234.56". Amounts pass through as reported; no conversion happens.
func Format(amount float64, code string) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	intPart := math.Floor(amount)
	cents := int(math.Round((amount - intPart) * 100))
	if cents == 100 {
		intPart++
		cents = 0
	}

	intStr := fmt.Sprintf("%.0f", intPart)
	formatted := addThousandsSeparator(intStr, ",")

	result := fmt.Sprintf("%s %s.%02d", code, formatted, cents)
	if negative {
		result = "-" + result
	}

	return result
}

// FormatMiles renders an award mileage cost, e.g. "57,500 miles".
func FormatMiles(miles int) string {
	return addThousandsSeparator(fmt.Sprintf("%d", miles), ",") + " miles"
}

func addThousandsSeparator(s string, sep string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	numSeps := (n - 1) / 3
	result := make([]byte, n+numSeps)

	j := len(result) - 1
	for i := n - 1; i >= 0; i-- {
		result[j] = s[i]
		j--

		pos := n - i
		if pos%3 == 0 && i > 0 {
			result[j] = sep[0]
			j--
		}
	}

	return string(result)
}
