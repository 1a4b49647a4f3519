package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	codedomain "loginus/internal/code/domain"
	codeservice "loginus/internal/code/service"
	"loginus/internal/errs"
	"loginus/internal/security"
)

// fakeCodeManager honors single-use consumption under a mutex, matching the
// real manager's compare-and-swap guarantee.
type fakeCodeManager struct {
	mu    sync.Mutex
	codes map[string]*codedomain.Code // keyed by plaintext value
}

func newFakeCodeManager() *fakeCodeManager {
	return &fakeCodeManager{codes: make(map[string]*codedomain.Code)}
}

func (f *fakeCodeManager) Issue(_ context.Context, purpose codedomain.Purpose, subject string, _ time.Duration, metadata map[string]string) (*codeservice.Issued, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	value := hex.EncodeToString(b)
	f.codes[value] = &codedomain.Code{
		ID:       value[:8],
		Purpose:  purpose,
		Subject:  subject,
		Status:   codedomain.StatusPending,
		Metadata: metadata,
	}
	return &codeservice.Issued{ID: value[:8], Value: value}, nil
}

func (f *fakeCodeManager) ConsumeOnce(_ context.Context, purpose codedomain.Purpose, value string) (*codedomain.Code, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.codes[value]
	if !ok || c.Purpose != purpose || c.Status != codedomain.StatusPending {
		return nil, fmt.Errorf("%w: code unknown or already consumed", errs.ErrNotFound)
	}
	c.Status = codedomain.StatusUsed
	cp := *c
	return &cp, nil
}

func newTestService(t *testing.T) (*Service, *fakeCodeManager) {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatal(err)
	}
	codes := newFakeCodeManager()
	return NewService(codes, tokens, nil), codes
}

func TestAuthorizeThenExchange(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, err := svc.Authorize(ctx, "u1", "web", "https://app/cb", []string{"profile", "email"}, "xyz")
	if err != nil {
		t.Fatal(err)
	}
	tok, err := svc.Exchange(ctx, code, "web", "https://app/cb")
	if err != nil {
		t.Fatal(err)
	}
	if tok.TokenType != "Bearer" || tok.Scope != "profile email" {
		t.Fatalf("token = %+v", tok)
	}

	tokens, _ := security.NewTestTokenProvider()
	userID, clientID, scope, err := tokens.ValidateAccess(tok.AccessToken)
	if err != nil {
		t.Fatalf("minted token invalid: %v", err)
	}
	if userID != "u1" || clientID != "web" || scope != "profile email" {
		t.Fatalf("claims = %q %q %q", userID, clientID, scope)
	}
}

func TestExchangeRejectsClientBindingMismatch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, err := svc.Authorize(ctx, "u1", "web", "https://app/cb", nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Exchange(ctx, code, "other-client", "https://app/cb"); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("wrong client: want ErrForbidden, got %v", err)
	}
}

func TestExchangeIsSingleUse(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, err := svc.Authorize(ctx, "u1", "web", "https://app/cb", nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Exchange(ctx, code, "web", "https://app/cb"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Exchange(ctx, code, "web", "https://app/cb"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("second exchange: want ErrNotFound, got %v", err)
	}
}

func TestConcurrentExchangeExactlyOneSucceeds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, err := svc.Authorize(ctx, "u1", "web", "https://app/cb", nil, "")
	if err != nil {
		t.Fatal(err)
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Exchange(ctx, code, "web", "https://app/cb")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else if !errors.Is(err, errs.ErrNotFound) {
			t.Fatalf("unexpected error class: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1", successes)
	}
}
