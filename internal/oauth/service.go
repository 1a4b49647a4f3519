// Package oauth implements the authorization-code grant on top of the
// ephemeral code manager: the code is a single-use ephemeral code whose
// metadata carries the bound client, redirect URI, scopes, and state.
package oauth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"loginus/internal/audit"
	auditdomain "loginus/internal/audit/domain"
	codedomain "loginus/internal/code/domain"
	codeservice "loginus/internal/code/service"
	"loginus/internal/errs"
	"loginus/internal/security"
)

// CodeManager is the ephemeral code surface the grant flow needs.
type CodeManager interface {
	Issue(ctx context.Context, purpose codedomain.Purpose, subject string, ttl time.Duration, metadata map[string]string) (*codeservice.Issued, error)
	ConsumeOnce(ctx context.Context, purpose codedomain.Purpose, value string) (*codedomain.Code, error)
}

// Token is the response of a successful code exchange.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	Scope       string
}

// Service issues authorization codes and exchanges them for access tokens.
type Service struct {
	codes  CodeManager
	tokens *security.TokenProvider
	audits audit.AuditLogger
}

// NewService returns an oauth Service. audits may be nil to drop audit events.
func NewService(codes CodeManager, tokens *security.TokenProvider, audits audit.AuditLogger) *Service {
	if audits == nil {
		audits = audit.Nop{}
	}
	return &Service{codes: codes, tokens: tokens, audits: audits}
}

// Authorize issues a short-lived single-use authorization code for the user,
// bound to the client and redirect URI. The code value goes back to the
// client via the redirect; only its hash is stored.
func (s *Service) Authorize(ctx context.Context, userID, clientID, redirectURI string, scopes []string, state string) (string, error) {
	if userID == "" || clientID == "" || redirectURI == "" {
		return "", fmt.Errorf("%w: user, client, and redirect URI are required", errs.ErrConflict)
	}
	issued, err := s.codes.Issue(ctx, codedomain.PurposeOAuthAuthorization, userID, 0, map[string]string{
		"client_id":    clientID,
		"redirect_uri": redirectURI,
		"scope":        strings.Join(scopes, " "),
		"state":        state,
		"user_id":      userID,
	})
	if err != nil {
		return "", err
	}
	s.audits.LogEvent(ctx, userID, "oauth.authorize", "clients/"+clientID, auditdomain.ResultSuccess, "")
	return issued.Value, nil
}

// Exchange redeems the authorization code for an access token. The code is
// consumed exactly once: a concurrent or repeated exchange of the same code
// fails with NotFound. The presenting client and redirect URI must match the
// ones the code was issued to, per RFC 6749 §4.1.3.
func (s *Service) Exchange(ctx context.Context, code, clientID, redirectURI string) (*Token, error) {
	c, err := s.codes.ConsumeOnce(ctx, codedomain.PurposeOAuthAuthorization, code)
	if err != nil {
		return nil, err
	}
	userID := c.Metadata["user_id"]
	if c.Metadata["client_id"] != clientID || c.Metadata["redirect_uri"] != redirectURI {
		s.audits.LogEvent(ctx, userID, "oauth.exchange", "clients/"+clientID, auditdomain.ResultFailure, "client binding mismatch")
		return nil, fmt.Errorf("%w: code was not issued to this client and redirect URI", errs.ErrForbidden)
	}

	var scopes []string
	if sc := c.Metadata["scope"]; sc != "" {
		scopes = strings.Fields(sc)
	}
	accessToken, _, expiresAt, err := s.tokens.IssueAccess(userID, clientID, scopes)
	if err != nil {
		return nil, err
	}
	s.audits.LogEvent(ctx, userID, "oauth.exchange", "clients/"+clientID, auditdomain.ResultSuccess, "")
	return &Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		Scope:       strings.Join(scopes, " "),
	}, nil
}
