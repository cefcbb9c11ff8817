package acumulus

import "github.com/shopspring/decimal"

// AmountMatch clasificación de la diferencia entre el total que conoce el shop
// y el total registrado en Acumulus para el mismo documento.
type AmountMatch int

const (
	// AmountMatchEqual diferencia menor a medio céntimo: se consideran iguales.
	AmountMatchEqual AmountMatch = iota + 1
	// AmountMatchRounding diferencia menor a 2 céntimos: redondeo.
	AmountMatchRounding
	// AmountMatchProbableError diferencia menor a 5 céntimos: probable error.
	AmountMatchProbableError
	// AmountMatchError diferencia de 5 céntimos o más.
	AmountMatchError
)

// Umbrales de clasificación en unidades de moneda.
var (
	amountEqualMax         = decimal.RequireFromString("0.005")
	amountRoundingMax      = decimal.RequireFromString("0.02")
	amountProbableErrorMax = decimal.RequireFromString("0.05")
)

// String etiqueta legible de la clasificación.
func (m AmountMatch) String() string {
	switch m {
	case AmountMatchEqual:
		return "equal"
	case AmountMatchRounding:
		return "rounding"
	case AmountMatchProbableError:
		return "probable_error"
	case AmountMatchError:
		return "error"
	default:
		return "unknown"
	}
}

// ClassifyAmountDiff compara el total local contra el remoto y clasifica la
// diferencia por magnitud absoluta.
func ClassifyAmountDiff(local, remote decimal.Decimal) AmountMatch {
	diff := local.Sub(remote).Abs()
	switch {
	case diff.LessThan(amountEqualMax):
		return AmountMatchEqual
	case diff.LessThan(amountRoundingMax):
		return AmountMatchRounding
	case diff.LessThan(amountProbableErrorMax):
		return AmountMatchProbableError
	default:
		return AmountMatchError
	}
}
