// Package validation содержит функции валидации входных данных автошколы.
package validation

import (
	"strings"
	"unicode"
)

// NormalizeCardNumber удаляет из номера карты пробелы и дефисы.
func NormalizeCardNumber(number string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, number)
}

// IsValidCardNumber проверяет корректность номера карты по алгоритму Луна.
func IsValidCardNumber(number string) bool {
	number = NormalizeCardNumber(number)
	if len(number) < 12 || len(number) > 19 {
		return false
	}

	sum := 0
	double := false

	for i := len(number) - 1; i >= 0; i-- {
		ch := rune(number[i])
		if !unicode.IsDigit(ch) {
			return false
		}
		digit := int(ch - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum%10 == 0
}

// MaskCardNumber оставляет видимыми только последние четыре цифры номера карты.
func MaskCardNumber(number string) string {
	number = NormalizeCardNumber(number)
	last4 := number
	if len(number) > 4 {
		last4 = number[len(number)-4:]
	}
	return "**** **** **** " + last4
}
