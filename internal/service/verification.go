package service

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"

	"streamwatch/internal/domain"
)

var (
	ErrNoPending    = errors.New("no pending verification")
	ErrCodeMismatch = errors.New("verification code mismatch")
)

const pendingTTL = 10 * time.Minute

// VerificationService administra el estado pendiente de registro o reset por
// sesión de navegador. Solo un flujo puede estar pendiente a la vez: Begin
// sobreescribe cualquier estado anterior.
type VerificationService struct {
	store VerificationStore
	ttl   time.Duration
}

func NewVerificationService(store VerificationStore) *VerificationService {
	if store == nil {
		store = NewMemoryVerificationStore()
	}
	return &VerificationService{
		store: store,
		ttl:   pendingTTL,
	}
}

// Begin genera un código de 4 dígitos, lo adjunta al estado pendiente y lo
// guarda bajo la sesión dada. Devuelve el código para ser enviado por correo.
func (s *VerificationService) Begin(sessionID string, pending domain.PendingVerification) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", errors.New("session id is required")
	}
	if pending.Kind != domain.VerificationRegistration && pending.Kind != domain.VerificationReset {
		return "", errors.New("unknown verification kind")
	}
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	pending.Code = code
	if err := s.store.Put(sessionID, pending, s.ttl); err != nil {
		return "", err
	}
	return code, nil
}

// CurrentKind informa qué flujo está pendiente para la sesión, si alguno.
func (s *VerificationService) CurrentKind(sessionID string) domain.VerificationKind {
	pending, ok, err := s.store.Get(sessionID)
	if err != nil || !ok {
		return domain.VerificationNone
	}
	return pending.Kind
}

// Peek devuelve el estado pendiente sin consumirlo.
func (s *VerificationService) Peek(sessionID string) (domain.PendingVerification, bool) {
	pending, ok, err := s.store.Get(sessionID)
	if err != nil || !ok {
		return domain.PendingVerification{}, false
	}
	return pending, true
}

// CheckAndConsume compara el código enviado con el pendiente. Un código
// incorrecto descarta el estado pendiente: el flujo debe reiniciarse.
// Con código correcto, un registro pendiente se consume de inmediato; un
// reset queda pendiente como autorización del paso de nueva contraseña.
func (s *VerificationService) CheckAndConsume(sessionID, submitted string) (domain.PendingVerification, error) {
	pending, ok, err := s.store.Get(sessionID)
	if err != nil {
		return domain.PendingVerification{}, err
	}
	if !ok {
		return domain.PendingVerification{}, ErrNoPending
	}
	submitted = strings.TrimSpace(submitted)
	if !codesEqual(submitted, pending.Code) {
		_ = s.store.Delete(sessionID)
		return domain.PendingVerification{}, ErrCodeMismatch
	}
	if pending.Kind == domain.VerificationRegistration {
		if err := s.store.Delete(sessionID); err != nil {
			return domain.PendingVerification{}, err
		}
	}
	return pending, nil
}

// Clear descarta el estado pendiente de la sesión.
func (s *VerificationService) Clear(sessionID string) error {
	return s.store.Delete(sessionID)
}

func generateCode() (string, error) {
	// Uniforme sobre 1000..9999.
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()+1000), nil
}

func codesEqual(submitted, stored string) bool {
	if !isValidCode(submitted) || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(stored)) == 1
}

func isValidCode(code string) bool {
	if len(code) != 4 {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
