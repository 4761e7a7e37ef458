package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/repository"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/response"
)

// ContextProfileKey holds the profile loaded while checking roles.
const ContextProfileKey = "currentProfile"

type profileLookup interface {
	FindByUID(ctx context.Context, uid string) (*models.UserProfile, error)
}

// RequireDestination allows the request through only when the caller's role routes to dest.
// Roles live on the profile, not in the token, so the profile is read per request.
func RequireDestination(profiles profileLookup, dest models.Destination) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		claims, ok := claimsValue.(*models.SessionClaims)
		if !exists || !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		profile, err := profiles.FindByUID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrDocumentNotFound) {
				response.Error(c, appErrors.CloneWrap(appErrors.ErrProfileNotFound, err, ""))
			} else {
				response.Error(c, err)
			}
			c.Abort()
			return
		}

		if models.DestinationForRole(profile.Role).Destination != dest {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}

		c.Set(ContextProfileKey, profile)
		c.Next()
	}
}
