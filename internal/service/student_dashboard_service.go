package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/repository"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/export"
)

// ReportFilename is the attachment name of the student summary report.
const ReportFilename = "student-report.pdf"

type dashboardCache interface {
	CurrentUser(ctx context.Context, uid string) (*models.UserProfile, bool, error)
	SetCurrentUser(ctx context.Context, profile *models.UserProfile) error
}

type feedbackAppender interface {
	Append(ctx context.Context, entry *models.FeedbackEntry) (string, error)
}

type reportRenderer interface {
	Render(report export.Report) ([]byte, error)
}

// StudentDashboardService serves the data behind the student dashboard.
type StudentDashboardService struct {
	profiles  profileReader
	cache     dashboardCache
	feedback  feedbackAppender
	renderer  reportRenderer
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewStudentDashboardService constructs a StudentDashboardService.
func NewStudentDashboardService(profiles profileReader, cache dashboardCache, feedback feedbackAppender, renderer reportRenderer, validate *validator.Validate, logger *zap.Logger) *StudentDashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if renderer == nil {
		renderer = export.NewPDFExporter()
	}
	return &StudentDashboardService{
		profiles:  profiles,
		cache:     cache,
		feedback:  feedback,
		renderer:  renderer,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Profile returns the signed-in student's profile. The store is authoritative because
// background uploads merge documents after sign-in; the session cache only covers store outages.
func (s *StudentDashboardService) Profile(ctx context.Context, uid string) (*models.UserProfile, error) {
	profile, err := s.profiles.FindByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, appErrors.CloneWrap(appErrors.ErrProfileNotFound, err, "")
		}
		if cached := s.cachedProfile(ctx, uid); cached != nil {
			s.logger.Warn("profile store unavailable, serving cached profile", zap.String("uid", uid), zap.Error(err))
			return ensureStudent(cached)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error loading profile data. Please try again.")
	}

	if s.cache != nil {
		if err := s.cache.SetCurrentUser(ctx, profile); err != nil {
			s.logger.Warn("failed to cache current user", zap.String("uid", uid), zap.Error(err))
		}
	}
	return ensureStudent(profile)
}

func (s *StudentDashboardService) cachedProfile(ctx context.Context, uid string) *models.UserProfile {
	if s.cache == nil {
		return nil
	}
	cached, ok, err := s.cache.CurrentUser(ctx, uid)
	if err != nil {
		s.logger.Warn("session cache unavailable", zap.String("uid", uid), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return cached
}

// SubmitFeedback appends a feedback entry authored by the student.
func (s *StudentDashboardService) SubmitFeedback(ctx context.Context, uid string, req dto.FeedbackRequest) (*dto.FeedbackResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.CloneWrap(appErrors.ErrValidation, err, "please fill in all feedback fields")
	}

	profile, err := s.Profile(ctx, uid)
	if err != nil {
		return nil, err
	}

	now := s.now()
	entry := &models.FeedbackEntry{
		StudentName:       profile.FullName(),
		TeacherName:       req.TeacherName,
		Message:           req.Message,
		BehaviorRating:    req.BehaviorRating,
		PerformanceRating: req.PerformanceRating,
		StudentID:         uid,
		Timestamp:         now,
		Date:              now.Format("2006-01-02"),
	}
	id, err := s.feedback.Append(ctx, entry)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error submitting feedback. Please try again.")
	}

	return &dto.FeedbackResult{ID: id, Message: "Feedback submitted successfully!"}, nil
}

// Report renders the student's summary report as a PDF.
func (s *StudentDashboardService) Report(ctx context.Context, uid string) ([]byte, error) {
	profile, err := s.Profile(ctx, uid)
	if err != nil {
		return nil, err
	}

	studentID := profile.StudentID
	if studentID == "" {
		studentID = "N/A"
	}
	report := export.Report{
		Title: "Summary Report for " + profile.FullName(),
		Fields: []export.Field{
			{Label: "Student ID", Value: studentID},
			{Label: "Email", Value: profile.Email},
			{Label: "Phone", Value: profile.Phone},
			{Label: "Address", Value: profile.Address},
			{Label: "Registered", Value: profile.CreatedAt.Format("2006-01-02")},
		},
		Table:  export.Dataset{Headers: []string{"Document", "File", "Uploaded"}},
		Footer: "Generated on " + s.now().Format("2006-01-02"),
	}
	for _, kind := range models.StudentDocumentKinds {
		row := map[string]string{"Document": string(kind), "File": "missing", "Uploaded": "-"}
		if ref, ok := profile.Documents[kind]; ok {
			row["File"] = ref.FileName
			row["Uploaded"] = ref.UploadedAt.Format("2006-01-02")
		}
		report.Table.Rows = append(report.Table.Rows, row)
	}

	data, err := s.renderer.Render(report)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	return data, nil
}

func ensureStudent(profile *models.UserProfile) (*models.UserProfile, error) {
	if models.DestinationForRole(profile.Role).Destination != models.DestinationStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student dashboard is only available to students")
	}
	return profile, nil
}
