package shared

import (
	"encoding/json"
	"time"
)

// Profile holds the extended user profile fields served by the backend
type Profile struct {
	ProfileImage    string `json:"profile_image,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
	Bio             string `json:"bio,omitempty"`
	PhoneNumber     string `json:"phone_number,omitempty"`
	DateOfBirth     string `json:"date_of_birth,omitempty"`
	AFM             string `json:"afm,omitempty"`
	AddressLine1    string `json:"address_line1,omitempty"`
	AddressLine2    string `json:"address_line2,omitempty"`
	City            string `json:"city,omitempty"`
	State           string `json:"state,omitempty"`
	PostalCode      string `json:"postal_code,omitempty"`
	Country         string `json:"country,omitempty"`
}

// User represents an authenticated user in the system
type User struct {
	ID         int64    `json:"id"`
	Username   string   `json:"username"`
	Email      string   `json:"email,omitempty"`
	FirstName  string   `json:"first_name,omitempty"`
	LastName   string   `json:"last_name,omitempty"`
	DateJoined string   `json:"date_joined,omitempty"`
	SellerID   *int64   `json:"seller_id,omitempty"`
	BidderID   *int64   `json:"bidder_id,omitempty"`
	IsActive   bool     `json:"is_active"`
	IsStaff    bool     `json:"is_staff"`
	Profile    *Profile `json:"profile,omitempty"`
}

// Session is the stored access/refresh token pair plus the logged-in user.
// The access token is replaced in place on refresh; the whole session is
// destroyed on logout or refresh failure.
type Session struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    User   `json:"user"`
}

// Authenticated reports whether the session carries an access token.
func (s Session) Authenticated() bool {
	return s.Access != ""
}

// UserRef is a tolerant reference to a user. The backend serializes the
// sender/recipient of a message either as a bare numeric id or as an object
// carrying one of user_id/userID/id.
type UserRef struct {
	ID       int64
	Username string
}

func (r *UserRef) UnmarshalJSON(data []byte) error {
	var id int64
	if err := json.Unmarshal(data, &id); err == nil {
		r.ID = id
		return nil
	}

	var obj struct {
		UserID   *int64 `json:"user_id"`
		UserIDCC *int64 `json:"userID"`
		ID       *int64 `json:"id"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		// Unknown shape: leave the reference zero-valued rather than fail
		// the whole payload.
		return nil
	}
	switch {
	case obj.UserID != nil:
		r.ID = *obj.UserID
	case obj.UserIDCC != nil:
		r.ID = *obj.UserIDCC
	case obj.ID != nil:
		r.ID = *obj.ID
	}
	r.Username = obj.Username
	return nil
}

func (r UserRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ID)
}

// ReadFlag is the tolerant decoding of the backend's is_read field. The
// serializer has emitted true/false, 0/1 and null for it at various points;
// a missing field decodes as the zero value. Anything that is not an
// affirmative true/non-zero counts as unread.
type ReadFlag struct {
	read bool
}

// ReadTrue is the flag value for a message that has been read.
var ReadTrue = ReadFlag{read: true}

// Value reports whether the message has been read.
func (f ReadFlag) Value() bool { return f.read }

func (f *ReadFlag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		f.read = b
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		f.read = n != 0
		return nil
	}
	// null or an unknown shape: unread by default
	f.read = false
	return nil
}

func (f ReadFlag) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.read)
}

// Timestamp tolerates both RFC 3339 strings and null/absent values.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil || s == nil || *s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		// Django also emits timestamps without a zone designator.
		parsed, err = time.Parse("2006-01-02T15:04:05.999999", *s)
		if err != nil {
			t.Time = time.Time{}
			return nil
		}
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}
