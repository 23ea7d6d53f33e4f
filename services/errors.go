package services

import "errors"

// Stabile Fehlerklassen der Orchestrierungsschicht. Rohe Storage- und
// Transportfehler verlassen die Services nie unverpackt; der HTTP-Layer
// bildet diese Sentinels per errors.Is auf Statuscodes ab.
var (
	// ErrNotFound: die Ressource existiert nicht.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized: die Ressource existiert, gehört aber einem anderen User.
	ErrUnauthorized = errors.New("not authorized for this resource")

	// ErrValidation: fehlerhafte Eingabe (leere Frage, leere ID-Liste, ...).
	ErrValidation = errors.New("invalid input")

	// ErrNoValidPapers: kein aufgelöstes Paper trägt Titel und Abstract.
	ErrNoValidPapers = errors.New("no papers with valid content (title and abstract)")

	// ErrSourceUnavailable: externer Katalog nicht erreichbar oder limitiert.
	ErrSourceUnavailable = errors.New("external paper source unavailable")

	// ErrInferenceFailure: ML-Service-Fehler, Timeout oder kaputte Antwort.
	ErrInferenceFailure = errors.New("inference service failure")

	// ErrConflict: Uniqueness-Verletzung, die der Retry nicht auflösen konnte.
	ErrConflict = errors.New("conflicting concurrent write")
)
