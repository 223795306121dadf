package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corretorconnect/match-engine/pkg/testhelpers"
)

// mockValidator is a mock implementation of TokenValidator for testing.
type mockValidator struct {
	claims *Claims
	err    error
	token  string
}

func (m *mockValidator) ValidateToken(tokenString string) (*Claims, error) {
	m.token = tokenString
	if m.err != nil {
		return nil, m.err
	}
	return m.claims, nil
}

func claimsFor(subject string) *Claims {
	c := &Claims{}
	c.Subject = subject
	return c
}

func TestAuthService_ValidateRequest_BearerToken(t *testing.T) {
	agentID := uuid.New()
	validator := &mockValidator{claims: claimsFor(agentID.String())}
	service := NewAuthService(validator, false, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/matches", nil)
	req.Header.Set("Authorization", "Bearer my-jwt-token")

	got, claims, err := service.ValidateRequest(req)
	if err != nil {
		t.Fatalf("ValidateRequest failed: %v", err)
	}
	if got != agentID {
		t.Errorf("expected agent %s, got %s", agentID, got)
	}
	if claims == nil {
		t.Error("expected claims")
	}
	if validator.token != "my-jwt-token" {
		t.Errorf("expected token 'my-jwt-token', got %q", validator.token)
	}
}

func TestAuthService_ValidateRequest_RealToken(t *testing.T) {
	agentID := uuid.New()
	service := NewAuthService(NewHMACValidator(testSecret, ""), false, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/matches", nil)
	req.Header.Set("Authorization", testhelpers.GenerateTestJWTWithBearer(testSecret, agentID.String(), ""))

	got, _, err := service.ValidateRequest(req)
	if err != nil {
		t.Fatalf("ValidateRequest failed: %v", err)
	}
	if got != agentID {
		t.Errorf("expected agent %s, got %s", agentID, got)
	}
}

func TestAuthService_ValidateRequest_Errors(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		validator *mockValidator
		wantErr   error
	}{
		{
			name:      "missing header",
			validator: &mockValidator{},
			wantErr:   ErrMissingAuthorization,
		},
		{
			name:      "wrong scheme",
			header:    "Basic dXNlcjpwYXNz",
			validator: &mockValidator{},
			wantErr:   ErrInvalidAuthFormat,
		},
		{
			name:      "extra parts",
			header:    "Bearer a b",
			validator: &mockValidator{},
			wantErr:   ErrInvalidAuthFormat,
		},
		{
			name:      "subject is not a uuid",
			header:    "Bearer token",
			validator: &mockValidator{claims: claimsFor("central")},
			wantErr:   ErrInvalidSubject,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewAuthService(tt.validator, false, zap.NewNop())
			req := httptest.NewRequest(http.MethodGet, "/api/matches", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			_, _, err := service.ValidateRequest(req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAuthService_ValidateRequest_ValidatorError(t *testing.T) {
	validatorErr := errors.New("token validation failed: signature is invalid")
	service := NewAuthService(&mockValidator{err: validatorErr}, false, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/matches", nil)
	req.Header.Set("Authorization", "Bearer bad")

	if _, _, err := service.ValidateRequest(req); !errors.Is(err, validatorErr) {
		t.Errorf("expected validator error, got %v", err)
	}
}

func TestAuthService_TrustedHeader(t *testing.T) {
	agentID := uuid.New()

	t.Run("header accepted when trusted", func(t *testing.T) {
		service := NewAuthService(nil, true, zap.NewNop())
		req := httptest.NewRequest(http.MethodGet, "/api/matches", nil)
		req.Header.Set(AgentIDHeader, agentID.String())

		got, claims, err := service.ValidateRequest(req)
		if err != nil {
			t.Fatalf("ValidateRequest failed: %v", err)
		}
		if got != agentID {
			t.Errorf("expected agent %s, got %s", agentID, got)
		}
		if claims != nil {
			t.Error("expected no claims for header identity")
		}
	})

	t.Run("header ignored when not trusted", func(t *testing.T) {
		service := NewAuthService(&mockValidator{}, false, zap.NewNop())
		req := httptest.NewRequest(http.MethodGet, "/api/matches", nil)
		req.Header.Set(AgentIDHeader, agentID.String())

		if _, _, err := service.ValidateRequest(req); !errors.Is(err, ErrMissingAuthorization) {
			t.Errorf("expected ErrMissingAuthorization, got %v", err)
		}
	})

	t.Run("malformed header", func(t *testing.T) {
		service := NewAuthService(nil, true, zap.NewNop())
		req := httptest.NewRequest(http.MethodGet, "/api/matches", nil)
		req.Header.Set(AgentIDHeader, "not-a-uuid")

		if _, _, err := service.ValidateRequest(req); !errors.Is(err, ErrInvalidSubject) {
			t.Errorf("expected ErrInvalidSubject, got %v", err)
		}
	})

	t.Run("no header and no validator", func(t *testing.T) {
		service := NewAuthService(nil, true, zap.NewNop())
		req := httptest.NewRequest(http.MethodGet, "/api/matches", nil)
		req.Header.Set("Authorization", "Bearer token")

		if _, _, err := service.ValidateRequest(req); !errors.Is(err, ErrMissingAuthorization) {
			t.Errorf("expected ErrMissingAuthorization, got %v", err)
		}
	})
}
