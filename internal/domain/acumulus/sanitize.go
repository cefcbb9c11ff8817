package acumulus

import (
	"html"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Saneado de valores de la respuesta remota antes de mostrarlos al operador.
// Aunque la API es "de confianza", su respuesta es entrada controlada
// externamente: todo valor se coerciona al tipo declarado, las fechas se
// reparsean y el texto libre se escapa.

// SanitizeText normaliza a NFC, elimina caracteres de control y escapa HTML.
func SanitizeText(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
	return html.EscapeString(strings.TrimSpace(s))
}

// Formatos de fecha que entrega Acumulus.
var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05"}

// SanitizeDate parsea la fecha remota y la reformatea como YYYY-MM-DD.
// Devuelve "" si el valor no es una fecha válida.
func SanitizeDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// SanitizeInt coerciona a entero; 0 si el valor no es numérico.
func SanitizeInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// SanitizeBoolFlag coerciona banderas "0"/"1" remotas.
func SanitizeBoolFlag(s string) bool {
	return strings.TrimSpace(s) == "1"
}

// SanitizeEnum valida el valor contra una allow-list; "" si no está permitido.
func SanitizeEnum(s string, allowed ...string) string {
	s = strings.TrimSpace(s)
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	return ""
}
