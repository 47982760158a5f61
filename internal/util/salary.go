package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	salaryNumber = regexp.MustCompile(`(\d{1,3}(?: \d{3})+|\d+(?:[.,]\d+)?)\s*(k)?`)
	negotiable   = []string{"négocier", "negocier", "selon profil", "selon expérience", "non communiqué"}
	lowerOnly    = []string{"à partir de", "a partir de", "dès", "minimum", "min."}
	upperOnly    = []string{"jusqu", "maximum", "max."}
)

// ParseSalary extracts a salary range from a free-text label such as
// "35 000 - 45 000 € par an" or "40k€ à 50k€". Thousands may be separated
// by spaces or non-breaking spaces and a k suffix multiplies by 1000, also
// the other bound of a range written "35 - 45 k€".
// Negotiable or unparseable labels yield no salary. A single amount is both
// bounds unless the label marks it as a floor or a ceiling.
func ParseSalary(label string) (minimum, maximum *float64) {
	s := strings.ToLower(label)
	s = strings.NewReplacer("\u00a0", " ", "\u202f", " ", "\t", " ").Replace(s)
	for _, marker := range negotiable {
		if strings.Contains(s, marker) {
			return nil, nil
		}
	}

	var values []float64
	thousands := false
	for _, m := range salaryNumber.FindAllStringSubmatch(s, -1) {
		digits := strings.ReplaceAll(m[1], " ", "")
		digits = strings.ReplaceAll(digits, ",", ".")
		v, err := strconv.ParseFloat(digits, 64)
		if err != nil || v == 0 {
			continue
		}
		if m[2] == "k" {
			v *= 1000
			thousands = true
		}
		values = append(values, v)
	}
	// "35 - 45 k€": a k on one bound applies to the bare bounds of the range.
	if thousands {
		for i, v := range values {
			if v < 1000 {
				values[i] = v * 1000
			}
		}
	}

	switch {
	case len(values) == 0:
		return nil, nil
	case len(values) == 1:
		v := values[0]
		if containsAny(s, lowerOnly) {
			return &v, nil
		}
		if containsAny(s, upperOnly) {
			return nil, &v
		}
		return &v, &v
	}
	lo, hi := values[0], values[1]
	if lo > hi {
		lo, hi = hi, lo
	}
	return &lo, &hi
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
