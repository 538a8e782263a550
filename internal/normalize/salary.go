package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jobsift/jobsift/internal/model"
)

// salaryParser turns free-text salary strings into normalized ranges in the
// reference currency. Anything non-numeric ("Competitive", "DOE", empty)
// becomes the explicit unspecified sentinel, never zero, so numeric
// filters downstream cannot accidentally match it.
type salaryParser struct {
	rates     map[string]float64 // currency code -> units of that currency per reference unit
	reference string
}

func newSalaryParser(rates map[string]float64, reference string) *salaryParser {
	upper := make(map[string]float64, len(rates))
	for code, rate := range rates {
		upper[strings.ToUpper(code)] = rate
	}
	return &salaryParser{rates: upper, reference: reference}
}

var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"₹": "INR",
}

// amountPattern matches "90,000", "90000", "90k", "90.5k".
var amountPattern = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*([kK])?`)

var currencyCodePattern = regexp.MustCompile(`\b(USD|EUR|GBP|CAD|AUD|INR|CHF|SEK|PLN)\b`)

func (p *salaryParser) parse(text string) model.Salary {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return model.Salary{Unspecified: true}
	}

	currency := p.detectCurrency(trimmed)
	period := detectPeriod(trimmed)

	var amounts []float64
	for _, m := range amountPattern.FindAllStringSubmatch(trimmed, -1) {
		raw := strings.ReplaceAll(m[1], ",", "")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		if m[2] != "" {
			v *= 1000
		}
		amounts = append(amounts, v)
	}

	// Filter noise: years ("2025"), small counts ("5+ years") that sneak
	// into salary snippets. Anything under a plausible wage floor for the
	// detected period is discarded.
	floor := 1000.0
	if period == "hour" {
		floor = 5.0
	}
	plausible := amounts[:0]
	for _, v := range amounts {
		if v >= floor {
			plausible = append(plausible, v)
		}
	}

	if len(plausible) == 0 {
		// "Competitive", "DOE", "Negotiable" and friends land here.
		return model.Salary{Unspecified: true}
	}

	min, max := plausible[0], plausible[0]
	for _, v := range plausible[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	return model.Salary{
		Min:      p.convert(min, currency),
		Max:      p.convert(max, currency),
		Currency: p.reference,
		Period:   period,
	}
}

func (p *salaryParser) detectCurrency(text string) string {
	for symbol, code := range currencySymbols {
		if strings.Contains(text, symbol) {
			return code
		}
	}
	if m := currencyCodePattern.FindString(strings.ToUpper(text)); m != "" {
		return m
	}
	return p.reference
}

// convert translates an amount into the reference currency using the
// configured rate table. Unknown currencies pass through unconverted.
func (p *salaryParser) convert(amount float64, currency string) float64 {
	if currency == p.reference {
		return amount
	}
	rate, ok := p.rates[currency]
	if !ok || rate <= 0 {
		return amount
	}
	return amount / rate
}

func detectPeriod(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "/hr"), strings.Contains(lower, "hour"):
		return "hour"
	case strings.Contains(lower, "/mo"), strings.Contains(lower, "month"):
		return "month"
	default:
		return "year"
	}
}
