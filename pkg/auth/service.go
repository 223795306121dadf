package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AgentIDHeader carries the caller's agent id when header trust is enabled.
const AgentIDHeader = "X-Agent-ID"

// Common authentication errors.
var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
	ErrInvalidSubject       = errors.New("token subject is not an agent id")
)

// AuthService defines the interface for authentication operations.
type AuthService interface {
	// ValidateRequest authenticates the request and returns the agent id.
	// Claims are nil when the identity came from the trusted header.
	ValidateRequest(r *http.Request) (uuid.UUID, *Claims, error)
}

type authService struct {
	validator   TokenValidator
	trustHeader bool
	logger      *zap.Logger
}

// NewAuthService creates an AuthService. With trustHeader set the
// X-Agent-ID header is accepted without a token; local development only.
func NewAuthService(validator TokenValidator, trustHeader bool, logger *zap.Logger) AuthService {
	return &authService{
		validator:   validator,
		trustHeader: trustHeader,
		logger:      logger,
	}
}

func (s *authService) ValidateRequest(r *http.Request) (uuid.UUID, *Claims, error) {
	if s.trustHeader {
		if raw := r.Header.Get(AgentIDHeader); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return uuid.Nil, nil, ErrInvalidSubject
			}
			return id, nil, nil
		}
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		s.logger.Debug("No token found in request",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method))
		return uuid.Nil, nil, ErrMissingAuthorization
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		s.logger.Debug("Invalid Authorization header format",
			zap.String("path", r.URL.Path))
		return uuid.Nil, nil, ErrInvalidAuthFormat
	}

	if s.validator == nil {
		return uuid.Nil, nil, ErrMissingAuthorization
	}

	claims, err := s.validator.ValidateToken(parts[1])
	if err != nil {
		s.logger.Debug("JWT validation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path))
		return uuid.Nil, nil, err
	}

	agentID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, nil, ErrInvalidSubject
	}

	return agentID, claims, nil
}

// Ensure authService implements AuthService at compile time.
var _ AuthService = (*authService)(nil)
