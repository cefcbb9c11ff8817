package acumulus

import "strings"

// Severity gravedad de un mensaje devuelto por un paso local o remoto.
type Severity int

const (
	SeverityNotice Severity = iota + 1
	SeverityWarning
	SeverityError
)

// String nombre legible de la gravedad.
func (s Severity) String() string {
	switch s {
	case SeverityNotice:
		return "notice"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Códigos máquina para clasificar respuestas remotas sin parsear texto libre.
const (
	// CodeNotFound el recurso remoto no existe (entry o concepto).
	CodeNotFound = "not_found"
	// CodeConceptTooOld Acumulus ya no conserva información del concepto.
	CodeConceptTooOld = "concept_too_old"
	// CodeRemote error genérico reportado por el servicio remoto.
	CodeRemote = "remote_error"
	// CodeLocal error producido localmente (validación, persistencia).
	CodeLocal = "local_error"
)

// Message mensaje etiquetado por gravedad. Code es opcional y legible por
// máquina (ej. CodeNotFound); Text es para el operador.
type Message struct {
	Severity Severity
	Code     string
	Text     string
}

// Messages lista de mensajes acumulados durante una operación.
type Messages []Message

// Add agrega un mensaje con la gravedad indicada.
func (m *Messages) Add(sev Severity, code, text string) {
	*m = append(*m, Message{Severity: sev, Code: code, Text: text})
}

// AddNotice agrega un aviso informativo.
func (m *Messages) AddNotice(text string) { m.Add(SeverityNotice, "", text) }

// AddWarning agrega una advertencia.
func (m *Messages) AddWarning(code, text string) { m.Add(SeverityWarning, code, text) }

// AddError agrega un error.
func (m *Messages) AddError(code, text string) { m.Add(SeverityError, code, text) }

// HasError indica si la lista contiene al menos un error.
func (m Messages) HasError() bool {
	for _, msg := range m {
		if msg.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasWarning indica si la lista contiene al menos una advertencia.
func (m Messages) HasWarning() bool {
	for _, msg := range m {
		if msg.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// HasCode indica si algún mensaje lleva el código dado.
func (m Messages) HasCode(code string) bool {
	for _, msg := range m {
		if msg.Code == code {
			return true
		}
	}
	return false
}

// Join concatena los textos (con gravedad) en una sola línea para logs y correos.
func (m Messages) Join(sep string) string {
	parts := make([]string, 0, len(m))
	for _, msg := range m {
		parts = append(parts, "["+msg.Severity.String()+"] "+msg.Text)
	}
	return strings.Join(parts, sep)
}
