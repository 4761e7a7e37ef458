package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type mockGateway struct {
	session      *models.AuthSession
	createErr    error
	signInErr    error
	signOutErr   error
	createCalls  int
	signInCalls  int
	signOutCalls int
}

func (m *mockGateway) CreateAccount(ctx context.Context, email, password string) (*models.AuthSession, error) {
	m.createCalls++
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.session, nil
}

func (m *mockGateway) SignIn(ctx context.Context, email, password string) (*models.AuthSession, error) {
	m.signInCalls++
	if m.signInErr != nil {
		return nil, m.signInErr
	}
	return m.session, nil
}

func (m *mockGateway) SignOut(ctx context.Context, uid string) error {
	m.signOutCalls++
	return m.signOutErr
}

type mockProfileWriter struct {
	err      error
	profiles []*models.UserProfile
}

func (m *mockProfileWriter) Create(ctx context.Context, profile *models.UserProfile) error {
	if m.err != nil {
		return m.err
	}
	copied := *profile
	m.profiles = append(m.profiles, &copied)
	return nil
}

type mockUploader struct {
	mu      sync.Mutex
	err     error
	uploads []DocumentUpload
}

func (m *mockUploader) Enqueue(ctx context.Context, upload DocumentUpload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, upload)
	return m.err
}

func requireAppError(t *testing.T, err error, code string) *appErrors.Error {
	t.Helper()
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func studentAttachments() map[models.DocumentKind]dto.Attachment {
	return map[models.DocumentKind]dto.Attachment{
		models.DocumentIDCopy:     {FileName: "id.pdf", Data: []byte("%PDF-1.4 id")},
		models.DocumentBirthCert:  {FileName: "birth.pdf", Data: []byte("%PDF-1.4 birth")},
		models.DocumentClinicCard: {FileName: "clinic.pdf", Data: []byte("%PDF-1.4 clinic")},
	}
}

func validRegistration(role models.UserRole) dto.RegistrationRequest {
	req := dto.RegistrationRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@school.test",
		Password:  "secret1",
		Identity:  "9001015009087",
		Phone:     "0820000000",
		Address:   "1 Analytical Way",
		Role:      role,
	}
	if role == models.RoleStudent {
		req.Attachments = studentAttachments()
	}
	return req
}

func newTestRegistration() (*RegistrationService, *mockGateway, *mockProfileWriter, *mockUploader) {
	gateway := &mockGateway{session: &models.AuthSession{UID: "u1", Email: "ada@school.test", Token: "token", ExpiresAt: time.Now().Add(time.Hour)}}
	profiles := &mockProfileWriter{}
	uploads := &mockUploader{}
	svc := NewRegistrationService(gateway, profiles, uploads, nil, nil, nil)
	return svc, gateway, profiles, uploads
}

func TestRegisterStoresNormalisedEmailOnProfile(t *testing.T) {
	svc, _, profiles, _ := newTestRegistration()
	req := validRegistration(models.RoleTeacher)
	req.Email = "  Ada@School.TEST "

	_, err := svc.Register(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, profiles.profiles, 1)
	assert.Equal(t, "ada@school.test", profiles.profiles[0].Email)
}

func TestRegisterValidationMakesNoCollaboratorCalls(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*dto.RegistrationRequest)
		message string
	}{
		{"missing first name", func(r *dto.RegistrationRequest) { r.FirstName = "" }, MessageRequiredFields},
		{"blank address", func(r *dto.RegistrationRequest) { r.Address = "   " }, MessageRequiredFields},
		{"missing role", func(r *dto.RegistrationRequest) { r.Role = "" }, MessageRequiredFields},
		{"short password", func(r *dto.RegistrationRequest) { r.Password = "12345" }, MessagePasswordTooShort},
		{"missing clinic card", func(r *dto.RegistrationRequest) { delete(r.Attachments, models.DocumentClinicCard) }, MessageMissingDocuments},
		{"empty birth certificate", func(r *dto.RegistrationRequest) {
			r.Attachments[models.DocumentBirthCert] = dto.Attachment{FileName: "birth.pdf"}
		}, MessageMissingDocuments},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, gateway, profiles, uploads := newTestRegistration()
			req := validRegistration(models.RoleStudent)
			tc.mutate(&req)

			result, err := svc.Register(context.Background(), req)

			assert.Nil(t, result)
			appErr := requireAppError(t, err, appErrors.ErrValidation.Code)
			assert.Equal(t, tc.message, appErr.Message)
			assert.Zero(t, gateway.createCalls)
			assert.Empty(t, profiles.profiles)
			assert.Empty(t, uploads.uploads)
		})
	}
}

func TestRegisterNonStudent(t *testing.T) {
	svc, gateway, profiles, uploads := newTestRegistration()

	result, err := svc.Register(context.Background(), validRegistration(models.RoleTeacher))

	require.NoError(t, err)
	assert.Equal(t, "u1", result.UID)
	assert.Empty(t, result.StudentID)
	assert.Equal(t, MessageRegistrationSuccess, result.Message)
	assert.Equal(t, 1, gateway.createCalls)
	require.Len(t, profiles.profiles, 1)
	assert.Equal(t, models.RoleTeacher, profiles.profiles[0].Role)
	assert.Empty(t, profiles.profiles[0].StudentID)
	assert.Empty(t, uploads.uploads)
}

func TestRegisterStudentWritesProfileAndSchedulesUploads(t *testing.T) {
	svc, _, profiles, uploads := newTestRegistration()
	svc.now = func() time.Time { return time.UnixMilli(1760000123456).UTC() }

	req := validRegistration(models.RoleStudent)
	req.FirstName = "  Ada "
	result, err := svc.Register(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "STU123456", result.StudentID)
	require.Len(t, profiles.profiles, 1)
	written := profiles.profiles[0]
	assert.Equal(t, "u1", written.UID)
	assert.Equal(t, "Ada", written.FirstName)
	assert.Equal(t, "STU123456", written.StudentID)
	assert.Empty(t, written.Documents)

	require.Len(t, uploads.uploads, 3)
	for i, kind := range models.StudentDocumentKinds {
		assert.Equal(t, kind, uploads.uploads[i].Kind)
		assert.Equal(t, "u1", uploads.uploads[i].UID)
	}
}

func TestRegisterStudentUploadFailureKeepsResult(t *testing.T) {
	svc, _, profiles, uploads := newTestRegistration()
	uploads.err = errors.New("queue stopped")

	result, err := svc.Register(context.Background(), validRegistration(models.RoleStudent))

	require.NoError(t, err)
	assert.Equal(t, MessageRegistrationSuccess, result.Message)
	assert.Len(t, profiles.profiles, 1)
	assert.Len(t, uploads.uploads, 3)
}

func TestRegisterUnknownRoleIsStored(t *testing.T) {
	svc, _, profiles, uploads := newTestRegistration()

	_, err := svc.Register(context.Background(), validRegistration(models.UserRole("Janitor")))

	require.NoError(t, err)
	require.Len(t, profiles.profiles, 1)
	assert.Equal(t, models.UserRole("Janitor"), profiles.profiles[0].Role)
	assert.Empty(t, uploads.uploads)
}

func TestRegisterCredentialErrors(t *testing.T) {
	cases := []struct {
		code     string
		wantCode string
		message  string
	}{
		{CodeEmailInUse, appErrors.ErrEmailInUse.Code, "Registration failed. An account with this email already exists."},
		{CodeWeakPassword, appErrors.ErrWeakPassword.Code, "Registration failed. Password is too weak. Please choose a stronger password."},
		{CodeInvalidEmail, appErrors.ErrInvalidEmail.Code, "Registration failed. Invalid email address format."},
		{CodeInternal, appErrors.ErrCredential.Code, "Registration failed. backend offline"},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			svc, gateway, profiles, uploads := newTestRegistration()
			gateway.createErr = providerError(tc.code, "backend offline", nil)

			_, err := svc.Register(context.Background(), validRegistration(models.RoleStudent))

			appErr := requireAppError(t, err, tc.wantCode)
			assert.Equal(t, tc.message, appErr.Message)
			assert.Empty(t, profiles.profiles)
			assert.Empty(t, uploads.uploads)
		})
	}
}

func TestRegisterProfileWriteFailure(t *testing.T) {
	svc, gateway, profiles, uploads := newTestRegistration()
	profiles.err = errors.New("document store unavailable")

	_, err := svc.Register(context.Background(), validRegistration(models.RoleStudent))

	requireAppError(t, err, appErrors.ErrProfileWrite.Code)
	assert.Equal(t, 1, gateway.createCalls)
	assert.Empty(t, uploads.uploads)
}

func TestLogin(t *testing.T) {
	svc, gateway, _, _ := newTestRegistration()

	result, err := svc.Login(context.Background(), dto.LoginRequest{Email: "ada@school.test", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", result.UID)
	assert.Equal(t, "token", result.Token)
	assert.Equal(t, 1, gateway.signInCalls)
}

func TestLoginRequiresBothFields(t *testing.T) {
	svc, gateway, _, _ := newTestRegistration()

	_, err := svc.Login(context.Background(), dto.LoginRequest{Email: "ada@school.test", Password: "   "})

	appErr := requireAppError(t, err, appErrors.ErrValidation.Code)
	assert.Equal(t, MessageLoginFieldsRequired, appErr.Message)
	assert.Zero(t, gateway.signInCalls)
}

func TestLoginCredentialErrors(t *testing.T) {
	cases := map[string]string{
		CodeUserNotFound:      appErrors.ErrUserNotFound.Code,
		CodeWrongPassword:     appErrors.ErrInvalidCredential.Code,
		CodeInvalidCredential: appErrors.ErrInvalidCredential.Code,
		CodeInvalidEmail:      appErrors.ErrInvalidEmail.Code,
		CodeTooManyRequests:   appErrors.ErrRateLimited.Code,
		CodeInternal:          appErrors.ErrCredential.Code,
	}

	for code, want := range cases {
		t.Run(code, func(t *testing.T) {
			svc, gateway, _, _ := newTestRegistration()
			gateway.signInErr = providerError(code, "provider says no", nil)

			_, err := svc.Login(context.Background(), dto.LoginRequest{Email: "ada@school.test", Password: "secret1"})

			appErr := requireAppError(t, err, want)
			assert.Contains(t, appErr.Message, "Login failed. ")
		})
	}
}

func TestLogout(t *testing.T) {
	svc, gateway, _, _ := newTestRegistration()
	require.NoError(t, svc.Logout(context.Background(), "u1"))

	gateway.signOutErr = errors.New("boom")
	err := svc.Logout(context.Background(), "u1")
	appErr := requireAppError(t, err, appErrors.ErrCredential.Code)
	assert.Equal(t, MessageSignOutFailed, appErr.Message)
	assert.Equal(t, 2, gateway.signOutCalls)
}

func TestStudentIDFor(t *testing.T) {
	assert.Equal(t, "STU000042", StudentIDFor(time.UnixMilli(1760000000042)))
	assert.Regexp(t, `^STU\d{6}$`, StudentIDFor(time.Now()))
}
