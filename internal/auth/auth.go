// Package auth turns a bearer credential into a verified caller identity.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any credential that does not verify.
var ErrInvalidToken = errors.New("invalid token")

// Role is the caller's platform role.
type Role string

const (
	RoleVoter     Role = "voter"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// Approval is an organizer's vetting state. Only approved organizers may
// create events or withdraw earnings.
type Approval string

const (
	ApprovalPending  Approval = "pending"
	ApprovalApproved Approval = "approved"
	ApprovalRejected Approval = "rejected"
)

// Identity is a verified caller.
type Identity struct {
	UserID            string
	Email             string
	Role              Role
	OrganizerApproval Approval
}

// ApprovedOrganizer reports whether the caller may act as an organizer.
func (id Identity) ApprovedOrganizer() bool {
	return id.Role == RoleOrganizer && id.OrganizerApproval == ApprovalApproved
}

type claims struct {
	UserID   string   `json:"user_id"`
	Email    string   `json:"email"`
	Role     Role     `json:"role"`
	Approval Approval `json:"organizer_approval,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 tokens issued by the session provider.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier builds a Verifier. issuer may be empty to skip the iss check.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Verifier{secret: []byte(secret), issuer: issuer}, nil
}

// Verify parses and validates raw and returns the identity it carries.
func (v *Verifier) Verify(raw string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	userID := c.UserID
	if userID == "" {
		userID = c.Subject
	}
	if userID == "" {
		return Identity{}, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	switch c.Role {
	case RoleVoter, RoleOrganizer, RoleAdmin:
	default:
		return Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, c.Role)
	}
	return Identity{
		UserID:            userID,
		Email:             c.Email,
		Role:              c.Role,
		OrganizerApproval: c.Approval,
	}, nil
}

// Sign issues a token for id valid for ttl. Used by operators and tests to
// mint credentials against the shared secret.
func (v *Verifier) Sign(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID:   id.UserID,
		Email:    id.Email,
		Role:     id.Role,
		Approval: id.OrganizerApproval,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(v.secret)
}
