package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"streamwatch/internal/domain"
	"streamwatch/internal/email"
	"streamwatch/internal/repository"
)

var (
	ErrUsernameTaken      = errors.New("username already registered")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("malformed email address")
	ErrInvalidPassword    = errors.New("password must be 8-20 characters")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrEmailNotFound      = errors.New("email not registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailSendFailure   = errors.New("email send failed")
)

// AuthService orquesta registro, verificación por código, login y reset de
// contraseña sobre el repositorio de usuarios y la sesión de verificación.
type AuthService struct {
	logger   *zap.Logger
	users    repository.UserRepository
	sender   email.Sender
	verifier *VerificationService
	tokens   *TokenService
}

func NewAuthService(logger *zap.Logger, users repository.UserRepository, sender email.Sender, verifier *VerificationService, tokens *TokenService) *AuthService {
	return &AuthService{
		logger:   logger,
		users:    users,
		sender:   sender,
		verifier: verifier,
		tokens:   tokens,
	}
}

// Register valida los datos, deja el registro pendiente de verificación y
// envía el código por correo. No escribe en la base hasta que el código
// correcto se confirme.
func (s *AuthService) Register(ctx context.Context, sessionID, emailAddr, username, password string) error {
	emailAddr = normalizeEmail(emailAddr)
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if emailAddr == "" || username == "" {
		return ErrInvalidCredentials
	}
	if !isValidEmail(emailAddr) {
		return ErrInvalidEmail
	}
	if !isPasswordValid(password) {
		return ErrInvalidPassword
	}

	taken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return err
	}
	if taken {
		return ErrUsernameTaken
	}
	taken, err = s.users.ExistsByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailTaken
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	code, err := s.verifier.Begin(sessionID, domain.PendingVerification{
		Kind:           domain.VerificationRegistration,
		Email:          emailAddr,
		Username:       username,
		HashedPassword: string(hashBytes),
	})
	if err != nil {
		return err
	}

	if err := s.sendCode(ctx, sessionID, emailAddr, code); err != nil {
		return err
	}

	s.logger.Info("registration pending verification",
		zap.String("username", username),
		zap.String("email", emailAddr),
	)
	return nil
}

// RequestReset deja un reset de contraseña pendiente para un correo ya
// registrado y envía el código.
func (s *AuthService) RequestReset(ctx context.Context, sessionID, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrEmailNotFound
	}

	if _, err := s.users.GetByEmail(ctx, emailAddr); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEmailNotFound
		}
		return err
	}

	code, err := s.verifier.Begin(sessionID, domain.PendingVerification{
		Kind:  domain.VerificationReset,
		Email: emailAddr,
	})
	if err != nil {
		return err
	}

	if err := s.sendCode(ctx, sessionID, emailAddr, code); err != nil {
		return err
	}

	s.logger.Info("password reset pending verification", zap.String("email", emailAddr))
	return nil
}

// VerifyCode consume el código enviado. Para un registro pendiente compromete
// el usuario y emite el token; para un reset deja la sesión como autorización
// del paso de nueva contraseña y devuelve token vacío.
func (s *AuthService) VerifyCode(ctx context.Context, sessionID, code string) (domain.VerificationKind, string, error) {
	pending, err := s.verifier.CheckAndConsume(sessionID, code)
	if err != nil {
		return domain.VerificationNone, "", err
	}

	if pending.Kind == domain.VerificationReset {
		return domain.VerificationReset, "", nil
	}

	user := domain.User{
		Username:       pending.Username,
		Email:          pending.Email,
		HashedPassword: pending.HashedPassword,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Alguien ganó la carrera entre el chequeo y el commit.
			return domain.VerificationNone, "", ErrUsernameTaken
		}
		return domain.VerificationNone, "", err
	}

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		return domain.VerificationNone, "", err
	}

	s.logger.Info("new user registered",
		zap.String("username", user.Username),
		zap.String("email", user.Email),
	)
	return domain.VerificationRegistration, token, nil
}

// PendingKind informa qué flujo espera código para la sesión dada.
func (s *AuthService) PendingKind(sessionID string) domain.VerificationKind {
	return s.verifier.CurrentKind(sessionID)
}

// ConfirmReset reemplaza la contraseña del correo autorizado por el código y
// limpia la sesión pendiente.
func (s *AuthService) ConfirmReset(ctx context.Context, sessionID, newPassword, confirm string) error {
	pending, ok := s.verifier.Peek(sessionID)
	if !ok || pending.Kind != domain.VerificationReset {
		return ErrNoPending
	}
	// Misma normalización que Register y Login.
	newPassword = strings.TrimSpace(newPassword)
	confirm = strings.TrimSpace(confirm)
	if newPassword != confirm {
		return ErrPasswordMismatch
	}
	if !isPasswordValid(newPassword) {
		return ErrInvalidPassword
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordByEmail(ctx, pending.Email, string(hashBytes)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEmailNotFound
		}
		return err
	}
	if err := s.verifier.Clear(sessionID); err != nil {
		return err
	}

	s.logger.Info("password reset completed", zap.String("email", pending.Email))
	return nil
}

// Login verifica credenciales y emite un bearer token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		return "", err
	}

	s.logger.Info("user logged in", zap.String("username", user.Username))
	return token, nil
}

func (s *AuthService) sendCode(ctx context.Context, sessionID, emailAddr, code string) error {
	if s.sender == nil {
		_ = s.verifier.Clear(sessionID)
		return ErrEmailSendFailure
	}
	if err := s.sender.SendVerificationCode(ctx, emailAddr, code); err != nil {
		s.logger.Warn("send verification code failed", zap.Error(err), zap.String("email", emailAddr))
		_ = s.verifier.Clear(sessionID)
		return ErrEmailSendFailure
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	// Sin display name: solo la forma addr-spec.
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func isPasswordValid(password string) bool {
	return len(password) >= 8 && len(password) <= 20
}
