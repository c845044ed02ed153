package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"troffee-marketplace-client/internal/adapters/gateway"
	"troffee-marketplace-client/internal/domain/shared"
	"troffee-marketplace-client/internal/ports/inbound"
	"troffee-marketplace-client/internal/ports/outbound"
)

// AccountService implements the session and profile use cases.
type AccountService struct {
	gw     *gateway.Gateway
	store  outbound.TokenStore
	logger zerolog.Logger
}

type AccountServiceParams struct {
	Gateway *gateway.Gateway
	Store   outbound.TokenStore
	Logger  zerolog.Logger
}

// NewAccountService creates a new account service
func NewAccountService(params AccountServiceParams) *AccountService {
	return &AccountService{
		gw:     params.Gateway,
		store:  params.Store,
		logger: params.Logger.With().Str("component", "account_service").Logger(),
	}
}

type loginResponse struct {
	Access   string `json:"access"`
	Refresh  string `json:"refresh"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Login obtains a token pair, stores the session and enriches it with the
// full profile. Any previous session is destroyed first so a stale refresh
// token cannot shadow a credential failure.
func (s *AccountService) Login(ctx context.Context, username, password string) (shared.Session, error) {
	if err := s.store.Clear(); err != nil {
		return shared.Session{}, err
	}

	var resp loginResponse
	_, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "auth/login/",
		JSON:   map[string]string{"username": username, "password": password},
	}, &resp)
	if err != nil {
		s.logger.Warn().Err(err).Str("username", username).Msg("Login failed")
		return shared.Session{}, err
	}

	session := shared.Session{
		Access:  resp.Access,
		Refresh: resp.Refresh,
		User: shared.User{
			ID:       resp.UserID,
			Username: resp.Username,
			Email:    resp.Email,
		},
	}
	if err := s.store.SetSession(session); err != nil {
		return shared.Session{}, err
	}

	// The login payload carries identity only; the profile endpoint fills
	// in the rest (staff flag, seller/bidder ids, profile fields).
	user, err := s.Profile(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Profile fetch after login failed")
		return session, nil
	}
	session.User = user
	if err := s.store.SetSession(session); err != nil {
		return shared.Session{}, err
	}

	s.logger.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("Logged in")
	return session, nil
}

// Register submits a registration. New accounts land in the waiting room
// until an administrator approves them; field errors surface joined as
// "field: msg1, msg2".
func (s *AccountService) Register(ctx context.Context, form inbound.RegistrationForm) error {
	_, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "auth/register/",
		JSON:   form,
	}, nil)
	if err != nil {
		return err
	}
	s.logger.Info().Str("username", form.Username).Msg("Registration submitted, awaiting approval")
	return nil
}

// Profile fetches the authenticated user's profile.
func (s *AccountService) Profile(ctx context.Context) (shared.User, error) {
	var user shared.User
	if _, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "auth/profile/",
	}, &user); err != nil {
		return shared.User{}, err
	}
	return user, nil
}

// UpdateProfile diffs the edit buffer against the original and submits only
// the changed fields.
func (s *AccountService) UpdateProfile(ctx context.Context, original, edited shared.User) (shared.User, error) {
	payload := diffUser(original, edited)
	if len(payload) == 0 {
		return original, shared.ErrNothingToUpdate
	}

	var updated shared.User
	if _, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodPatch,
		Path:   "auth/profile/",
		JSON:   payload,
	}, &updated); err != nil {
		return shared.User{}, err
	}

	session := s.store.Session()
	session.User = updated
	if err := s.store.SetSession(session); err != nil {
		return shared.User{}, err
	}
	return updated, nil
}

// UploadProfileImage submits a new profile image as multipart form data.
func (s *AccountService) UploadProfileImage(ctx context.Context, filename string, data []byte) error {
	form, err := gateway.NewFormBuilder().
		File("profile_image", filename, data).
		Build()
	if err != nil {
		return err
	}
	if _, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodPut,
		Path:   "auth/profile/image/",
		Form:   form,
	}, nil); err != nil {
		return fmt.Errorf("profile image upload failed: %w", err)
	}
	return nil
}

// Logout destroys the stored session. The backend is never called; token
// invalidation is its own concern.
func (s *AccountService) Logout() error {
	if err := s.store.Clear(); err != nil {
		return err
	}
	s.logger.Info().Msg("Logged out")
	return nil
}

func diffUser(original, edited shared.User) map[string]any {
	payload := map[string]any{}
	if edited.Email != original.Email {
		payload["email"] = edited.Email
	}
	if edited.FirstName != original.FirstName {
		payload["first_name"] = edited.FirstName
	}
	if edited.LastName != original.LastName {
		payload["last_name"] = edited.LastName
	}

	var origProfile, editProfile shared.Profile
	if original.Profile != nil {
		origProfile = *original.Profile
	}
	if edited.Profile != nil {
		editProfile = *edited.Profile
	}
	profile := map[string]any{}
	for _, f := range []struct {
		name     string
		from, to string
	}{
		{"bio", origProfile.Bio, editProfile.Bio},
		{"phone_number", origProfile.PhoneNumber, editProfile.PhoneNumber},
		{"date_of_birth", origProfile.DateOfBirth, editProfile.DateOfBirth},
		{"address_line1", origProfile.AddressLine1, editProfile.AddressLine1},
		{"address_line2", origProfile.AddressLine2, editProfile.AddressLine2},
		{"city", origProfile.City, editProfile.City},
		{"state", origProfile.State, editProfile.State},
		{"postal_code", origProfile.PostalCode, editProfile.PostalCode},
		{"country", origProfile.Country, editProfile.Country},
	} {
		if f.from != f.to {
			profile[f.name] = f.to
		}
	}
	if len(profile) > 0 {
		payload["profile"] = profile
	}
	return payload
}
