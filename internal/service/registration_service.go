package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

// User-facing messages of the registration and login flows.
const (
	MessageRequiredFields      = "please fill in all required fields"
	MessagePasswordTooShort    = "password must be at least 6 characters long"
	MessageMissingDocuments    = "missing student documents"
	MessageLoginFieldsRequired = "please enter both email and password"
	MessageRegistrationSuccess = "Registration successful! Redirecting..."
	MessageLoginSuccess        = "Login successful! Redirecting..."
	MessageSignOutFailed       = "Error signing out. Please try again."
)

const minPasswordLength = 6

type credentialGateway interface {
	CreateAccount(ctx context.Context, email, password string) (*models.AuthSession, error)
	SignIn(ctx context.Context, email, password string) (*models.AuthSession, error)
	SignOut(ctx context.Context, uid string) error
}

type profileWriter interface {
	Create(ctx context.Context, profile *models.UserProfile) error
}

type documentUploader interface {
	Enqueue(ctx context.Context, upload DocumentUpload) error
}

// RegistrationService orchestrates account creation, profile write and document uploads.
type RegistrationService struct {
	gateway   credentialGateway
	profiles  profileWriter
	uploads   documentUploader
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(gateway credentialGateway, profiles profileWriter, uploads documentUploader, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RegistrationService{
		gateway:   gateway,
		profiles:  profiles,
		uploads:   uploads,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// StudentIDFor derives a student id from the last six digits of the Unix millisecond time.
func StudentIDFor(ts time.Time) string {
	return fmt.Sprintf("STU%06d", ts.UnixMilli()%1000000)
}

// Register validates the form, creates the account, writes the profile and schedules document uploads.
func (s *RegistrationService) Register(ctx context.Context, req dto.RegistrationRequest) (*dto.RegistrationResult, error) {
	req = trimRegistration(req)
	if err := s.validateRegistration(req); err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateAccount(ctx, req.Email, req.Password)
	if err != nil {
		s.metrics.RecordRegistration(req.Role, OutcomeFailure)
		s.logger.Warn("account creation failed", zap.String("role", string(req.Role)), zap.Error(err))
		return nil, registrationFailure(err)
	}

	createdAt := s.now()
	profile := &models.UserProfile{
		UID:       session.UID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     normaliseEmail(req.Email),
		Identity:  req.Identity,
		Phone:     req.Phone,
		Address:   req.Address,
		Role:      req.Role,
		CreatedAt: createdAt,
	}
	if req.Role == models.RoleStudent {
		profile.StudentID = StudentIDFor(createdAt)
	}

	if err := s.profiles.Create(ctx, profile); err != nil {
		s.metrics.RecordRegistration(req.Role, OutcomeFailure)
		s.logger.Error("profile write failed after account creation", zap.String("uid", session.UID), zap.Error(err))
		return nil, appErrors.CloneWrap(appErrors.ErrProfileWrite, err, "Registration failed. "+appErrors.ErrProfileWrite.Message)
	}

	if req.Role == models.RoleStudent {
		s.scheduleUploads(ctx, session.UID, req.Attachments)
	}

	s.metrics.RecordRegistration(req.Role, OutcomeSuccess)
	s.logger.Info("registration completed", zap.String("uid", session.UID), zap.String("role", string(req.Role)))

	return &dto.RegistrationResult{
		UID:       session.UID,
		StudentID: profile.StudentID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		Message:   MessageRegistrationSuccess,
	}, nil
}

// Login signs the account in. Routing follows from the session observer.
func (s *RegistrationService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Password = strings.TrimSpace(req.Password)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.CloneWrap(appErrors.ErrValidation, err, MessageLoginFieldsRequired)
	}

	session, err := s.gateway.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		s.metrics.RecordLogin(providerCode(err))
		return nil, loginFailure(err)
	}

	s.metrics.RecordLogin(OutcomeSuccess)
	return &dto.LoginResult{
		UID:       session.UID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		Message:   MessageLoginSuccess,
	}, nil
}

// Logout signs the account out.
func (s *RegistrationService) Logout(ctx context.Context, uid string) error {
	if err := s.gateway.SignOut(ctx, uid); err != nil {
		s.logger.Warn("sign out failed", zap.String("uid", uid), zap.Error(err))
		return appErrors.CloneWrap(appErrors.ErrCredential, err, MessageSignOutFailed)
	}
	return nil
}

func (s *RegistrationService) validateRegistration(req dto.RegistrationRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.CloneWrap(appErrors.ErrValidation, err, MessageRequiredFields)
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		return appErrors.Clone(appErrors.ErrValidation, MessagePasswordTooShort)
	}
	if req.Role == models.RoleStudent {
		for _, kind := range models.StudentDocumentKinds {
			if attachment, ok := req.Attachments[kind]; !ok || len(attachment.Data) == 0 {
				return appErrors.Clone(appErrors.ErrValidation, MessageMissingDocuments)
			}
		}
	}
	return nil
}

func (s *RegistrationService) scheduleUploads(ctx context.Context, uid string, attachments map[models.DocumentKind]dto.Attachment) {
	if s.uploads == nil {
		s.logger.Warn("no document uploader configured, skipping student documents", zap.String("uid", uid))
		return
	}
	for _, kind := range models.StudentDocumentKinds {
		upload := DocumentUpload{UID: uid, Kind: kind, Attachment: attachments[kind]}
		if err := s.uploads.Enqueue(ctx, upload); err != nil {
			s.metrics.RecordUpload(kind, OutcomeFailure)
			s.logger.Error("failed to schedule document upload", zap.String("uid", uid), zap.String("kind", string(kind)), zap.Error(err))
		}
	}
}

func trimRegistration(req dto.RegistrationRequest) dto.RegistrationRequest {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	req.Password = strings.TrimSpace(req.Password)
	req.Identity = strings.TrimSpace(req.Identity)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Address = strings.TrimSpace(req.Address)
	return req
}

func providerCode(err error) string {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Code
	}
	return CodeInternal
}

func registrationFailure(err error) *appErrors.Error {
	const prefix = "Registration failed. "
	var perr *ProviderError
	if !errors.As(err, &perr) {
		return appErrors.CloneWrap(appErrors.ErrCredential, err, prefix+err.Error())
	}
	switch perr.Code {
	case CodeEmailInUse:
		return appErrors.CloneWrap(appErrors.ErrEmailInUse, err, prefix+"An account with this email already exists.")
	case CodeWeakPassword:
		return appErrors.CloneWrap(appErrors.ErrWeakPassword, err, prefix+"Password is too weak. Please choose a stronger password.")
	case CodeInvalidEmail:
		return appErrors.CloneWrap(appErrors.ErrInvalidEmail, err, prefix+"Invalid email address format.")
	default:
		return appErrors.CloneWrap(appErrors.ErrCredential, err, prefix+perr.Message)
	}
}

func loginFailure(err error) *appErrors.Error {
	const prefix = "Login failed. "
	var perr *ProviderError
	if !errors.As(err, &perr) {
		return appErrors.CloneWrap(appErrors.ErrCredential, err, prefix+err.Error())
	}
	switch perr.Code {
	case CodeUserNotFound:
		return appErrors.CloneWrap(appErrors.ErrUserNotFound, err, prefix+"No account found with this email address. Please register first.")
	case CodeWrongPassword, CodeInvalidCredential:
		return appErrors.CloneWrap(appErrors.ErrInvalidCredential, err, prefix+"Incorrect email or password. Please check your credentials.")
	case CodeInvalidEmail:
		return appErrors.CloneWrap(appErrors.ErrInvalidEmail, err, prefix+"Invalid email address format.")
	case CodeTooManyRequests:
		return appErrors.CloneWrap(appErrors.ErrRateLimited, err, prefix+"Too many failed attempts. Please try again later.")
	default:
		return appErrors.CloneWrap(appErrors.ErrCredential, err, prefix+perr.Message)
	}
}
