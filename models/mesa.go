package models

import "time"

// CodigoWindow is how long a validated table code stays usable.
// The backend issues codes with the same window; the client only records it.
const CodigoWindow = 5 * time.Hour

// Mesa represents a physical table in the restaurant
type Mesa struct {
	MesaID string `json:"mesa_id"`
	Numero int    `json:"numero"`
	Codigo string `json:"codigo,omitempty"` // time-limited access code, present only in validation responses
}

// ValidateMesaRequest is the request body for POST mesa/validar
type ValidateMesaRequest struct {
	MesaID string `json:"mesa_id" validate:"required"`
	Codigo string `json:"codigo" validate:"required,len=4"`
}

// MesaSession binds a validated Mesa to a time window. Timestamps are
// milliseconds since epoch, matching what the stored session looked like
// in earlier clients so old persisted sessions still load.
type MesaSession struct {
	Mesa             Mesa  `json:"mesa"`
	SessionStartTime int64 `json:"sessionStartTime"`
	ValidatedAt      int64 `json:"validatedAt"`
	CodigoExpiresAt  int64 `json:"codigoExpiresAt"`
}

// NewMesaSession creates a session starting now with the fixed code window.
func NewMesaSession(mesa Mesa, now time.Time) MesaSession {
	ms := now.UnixMilli()
	return MesaSession{
		Mesa:             mesa,
		SessionStartTime: ms,
		ValidatedAt:      ms,
		CodigoExpiresAt:  ms + CodigoWindow.Milliseconds(),
	}
}

// Expired reports whether the code window has elapsed at the given time.
// Expiry is informational only: the client keeps the session until the
// backend rejects it with a 401.
func (s MesaSession) Expired(now time.Time) bool {
	return now.UnixMilli() >= s.CodigoExpiresAt
}
