package pkg

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converte a entrada livre do usuário em decimal, aceitando
// vírgula como separador decimal.
func ParseAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, errors.New("valor vazio")
	}
	trimmed = strings.ReplaceAll(trimmed, ",", ".")

	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, errors.New("valor inválido")
	}
	return amount, nil
}
