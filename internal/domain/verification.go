package domain

// VerificationKind distingue el flujo pendiente de una sesión de verificación.
type VerificationKind string

const (
	VerificationNone         VerificationKind = ""
	VerificationRegistration VerificationKind = "registration"
	VerificationReset        VerificationKind = "reset"
)

// PendingVerification es el estado efímero de un registro o reset pendiente,
// correlacionado con una sesión de navegador y protegido por un código de
// un solo uso. Solo un flujo puede estar pendiente a la vez por sesión.
type PendingVerification struct {
	Kind           VerificationKind `json:"kind"`
	Code           string           `json:"code"`
	Email          string           `json:"email"`
	Username       string           `json:"username,omitempty"`
	HashedPassword string           `json:"hashed_password,omitempty"`
}
