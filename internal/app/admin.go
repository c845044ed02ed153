package app

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"troffee-marketplace-client/internal/adapters/gateway"
	"troffee-marketplace-client/internal/domain/shared"
	"troffee-marketplace-client/internal/ports/inbound"
)

// AdminService implements the administrator console use cases: user
// management and the registration approval workflow (new accounts wait in
// the waiting room until approved).
type AdminService struct {
	gw     *gateway.Gateway
	logger zerolog.Logger
}

type AdminServiceParams struct {
	Gateway *gateway.Gateway
	Logger  zerolog.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(params AdminServiceParams) *AdminService {
	return &AdminService{
		gw:     params.Gateway,
		logger: params.Logger.With().Str("component", "admin_service").Logger(),
	}
}

// Users lists accounts, optionally narrowed to pending registrations or by
// active state.
func (s *AdminService) Users(ctx context.Context, f inbound.UserFilter) ([]shared.User, error) {
	query := url.Values{}
	if f.Pending != nil {
		query.Set("pending", boolParam(*f.Pending))
	}
	if f.Active != nil {
		query.Set("is_active", boolParam(*f.Active))
	}

	var users []shared.User
	if _, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "auth/admin/users/",
		Query:  query,
	}, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUser diffs the edit buffer against the original and submits only
// the changed fields.
func (s *AdminService) UpdateUser(ctx context.Context, original, edited shared.User) (shared.User, error) {
	payload := diffUser(original, edited)
	if len(payload) == 0 {
		return original, shared.ErrNothingToUpdate
	}

	var updated shared.User
	if _, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodPatch,
		Path:   fmt.Sprintf("auth/admin/users/%d/", original.ID),
		JSON:   payload,
	}, &updated); err != nil {
		return shared.User{}, err
	}
	return updated, nil
}

// DeleteUser removes an account.
func (s *AdminService) DeleteUser(ctx context.Context, id int64) error {
	_, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("auth/admin/users/%d/", id),
	}, nil)
	return err
}

// Approve activates a pending registration.
func (s *AdminService) Approve(ctx context.Context, id int64) error {
	return s.registrationAction(ctx, id, "approve", nil)
}

// Deny rejects a pending registration.
func (s *AdminService) Deny(ctx context.Context, id int64) error {
	return s.registrationAction(ctx, id, "deny", nil)
}

// RequestChanges sends a pending registration back to the applicant with a
// note.
func (s *AdminService) RequestChanges(ctx context.Context, id int64, note string) error {
	return s.registrationAction(ctx, id, "request_changes", map[string]string{"note": note})
}

func (s *AdminService) registrationAction(ctx context.Context, id int64, action string, body any) error {
	if _, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("auth/admin/users/%d/%s/", id, action),
		JSON:   body,
	}, nil); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", id).Str("action", action).Msg("Registration action applied")
	return nil
}

func boolParam(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
