package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"clubportal/internal/domain/entity"
	"clubportal/internal/domain/repository"
)

// StaffMiddleware restricts the messaging surface to provisioned portal
// staff (admins and trainers) and stashes the resolved profile for handlers.
type StaffMiddleware struct {
	userRepo repository.UserRepository
}

func NewStaffMiddleware(userRepo repository.UserRepository) *StaffMiddleware {
	return &StaffMiddleware{
		userRepo: userRepo,
	}
}

func (m *StaffMiddleware) StaffOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		uid, ok := c.Get("uid").(string)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
		}

		user, err := m.userRepo.GetByID(c.Request().Context(), uid)
		if err != nil {
			return echo.NewHTTPError(http.StatusForbidden, "No portal profile for this account")
		}

		if user.Role != entity.RoleAdmin && user.Role != entity.RoleTrainer {
			return echo.NewHTTPError(http.StatusForbidden, "Staff privileges required")
		}

		c.Set("profile", user)

		return next(c)
	}
}
