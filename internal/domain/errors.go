package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	// Facturación recurrente.
	ErrInvalidInterval  = errors.New("el intervalo debe ser un entero positivo")
	ErrInvalidFrequency = errors.New("frecuencia no soportada")
	ErrInvalidSchedule  = errors.New("expresión cron inválida")
	ErrInvalidTimezone  = errors.New("zona horaria inválida")
	ErrNotDue           = errors.New("la plantilla aún no debe generarse")
	ErrTemplateInactive = errors.New("la plantilla está pausada")
	ErrAlreadyRunning   = errors.New("Task is already running")
	ErrSchedulerOff     = errors.New("el programador está deshabilitado")

	// ErrPermanent marca fallos de generación que no se resuelven reintentando
	// (plantilla mal formada, número ya emitido). Se envuelve con fmt.Errorf("...: %w", ErrPermanent).
	ErrPermanent = errors.New("fallo permanente")
)

// IsPermanent indica si err (o alguno de sus envueltos) es un fallo permanente.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrInvalidFrequency)
}
