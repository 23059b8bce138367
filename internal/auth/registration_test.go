package auth

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestRegister_AdminKindsAreActive(t *testing.T) {
	for _, role := range []Role{RoleSuperAdmin, RoleAdmin} {
		t.Run(string(role), func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			reg := Registration{Email: "Boss@Example.com", Password: "x", Profile: Profile{"firstName": "B"}}

			res, err := env.svc.Register(ctx, role, reg)
			if err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			if res.PreAuth != nil {
				t.Error("admin kinds must not receive a pre-auth token")
			}
			if res.Principal == nil || !res.Principal.IsVerified || res.Principal.VerifiedAt == nil {
				t.Fatalf("Principal = %+v, want verified", res.Principal)
			}

			stored := env.principal(t, role, "boss@example.com")
			if !stored.IsVerified || stored.OTP != "" {
				t.Errorf("stored = %+v, want verified without challenge", stored)
			}

			if _, err := env.svc.Register(ctx, role, reg); !errors.Is(err, ErrAlreadyExists) {
				t.Errorf("second Register() error = %v, want ErrAlreadyExists", err)
			}

			env.svc.Wait()
			if env.mailer.count() != 0 {
				t.Errorf("sent %d mails, want 0", env.mailer.count())
			}
		})
	}
}

func TestRegister_OTPKindsArePending(t *testing.T) {
	for _, role := range []Role{RoleRetailer, RoleCustomer} {
		t.Run(string(role), func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()

			res, err := env.svc.Register(ctx, role, customerRegistration("new@example.com"))
			if err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			if res.Principal != nil {
				t.Error("pending registration must not return a principal")
			}
			if res.PreAuth == nil {
				t.Fatal("expected a pre-auth token")
			}

			claims, err := env.svc.Tokens().Verify(res.PreAuth.Value)
			if err != nil {
				t.Fatalf("Verify(preauth) error = %v", err)
			}
			if claims.Role != role || claims.Kind != TokenPreAuth || claims.Email != "new@example.com" {
				t.Errorf("claims = %+v", claims)
			}

			stored := env.principal(t, role, "new@example.com")
			if stored.IsVerified {
				t.Error("principal should be unverified")
			}
			code, err := strconv.Atoi(stored.OTP)
			if err != nil || code < 100000 || code > 999999 {
				t.Errorf("stored OTP = %q, want 6-digit integer", stored.OTP)
			}
			if want := env.clock.Now().Add(2 * time.Minute); stored.OTPExpiry == nil || !stored.OTPExpiry.Equal(want) {
				t.Errorf("OTPExpiry = %v, want %v", stored.OTPExpiry, want)
			}

			env.svc.Wait()
			if mail := env.mailer.last(t); mail.To != "new@example.com" || mail.Code != stored.OTP {
				t.Errorf("mail = %+v, want code %s to new@example.com", mail, stored.OTP)
			}
		})
	}
}

func TestRegister_RetryOverwritesChallengeOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Register(ctx, RoleCustomer, customerRegistration("retry@example.com")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	first := env.principal(t, RoleCustomer, "retry@example.com")

	env.clock.Advance(30 * time.Second)
	retry := Registration{Email: "retry@example.com", Password: "Other1pass", Profile: Profile{"fullName": "Someone Else"}}
	if _, err := env.svc.Register(ctx, RoleCustomer, retry); err != nil {
		t.Fatalf("retry Register() error = %v", err)
	}
	second := env.principal(t, RoleCustomer, "retry@example.com")

	if second.ID != first.ID {
		t.Errorf("ID changed from %s to %s; record was recreated", first.ID, second.ID)
	}
	if second.PasswordHash != first.PasswordHash {
		t.Error("password hash must not change on retry")
	}
	if second.Profile["fullName"] != "Grace Hopper" {
		t.Errorf("profile changed on retry: %v", second.Profile)
	}
	if !second.OTPExpiry.After(*first.OTPExpiry) {
		t.Error("retry should issue a later expiry")
	}

	if n, _ := env.store(t, RoleCustomer).Count(ctx); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestRegister_VerifiedEmailExists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	verifyCustomer(t, env, "done@example.com")

	_, err := env.svc.Register(ctx, RoleCustomer, customerRegistration("done@example.com"))
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("Register() error = %v, want ErrAlreadyExists", err)
	}
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Register(ctx, RoleRetailer, customerRegistration("race@example.com"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Register() error = %v", err)
		}
	}
	if count, _ := env.store(t, RoleRetailer).Count(ctx); count != 1 {
		t.Errorf("Count() = %d, want exactly one record", count)
	}
}

func TestRegister_MailFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.err = errors.New("smtp down")

	if _, err := env.svc.Register(context.Background(), RoleCustomer, customerRegistration("a@example.com")); err != nil {
		t.Fatalf("Register() error = %v, want nil despite mail failure", err)
	}
	env.svc.Wait()

	if !env.events.has(ActionMailDispatch, OutcomeFailure) {
		t.Errorf("events = %v, want a failed mail_dispatch", env.events.actions())
	}
}

// verifyCustomer registers and verifies a customer, returning its session.
func verifyCustomer(t *testing.T, env *testEnv, email string) *Session {
	t.Helper()
	ctx := context.Background()

	if _, err := env.svc.Register(ctx, RoleCustomer, customerRegistration(email)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	p := env.principal(t, RoleCustomer, email)

	session, err := env.svc.VerifyOTP(ctx, RoleCustomer, p, p.OTP)
	if err != nil {
		t.Fatalf("VerifyOTP() error = %v", err)
	}
	return session
}

func TestVerifyOTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session := verifyCustomer(t, env, "v@example.com")

	access, err := env.svc.Tokens().Verify(session.Access.Value)
	if err != nil || access.Kind != TokenAccess || access.Role != RoleCustomer {
		t.Errorf("access claims = %+v, %v", access, err)
	}
	refresh, err := env.svc.Tokens().Verify(session.Refresh.Value)
	if err != nil || refresh.Kind != TokenRefresh {
		t.Errorf("refresh claims = %+v, %v", refresh, err)
	}

	p := env.principal(t, RoleCustomer, "v@example.com")
	if !p.IsVerified || p.VerifiedAt == nil || p.OTP != "" || p.OTPExpiry != nil {
		t.Errorf("principal after verify = %+v", p)
	}

	if _, err := env.svc.VerifyOTP(ctx, RoleCustomer, p, "123456"); !errors.Is(err, ErrAlreadyVerified) {
		t.Errorf("second VerifyOTP() error = %v, want ErrAlreadyVerified", err)
	}
}

func TestVerifyOTP_InvalidLeavesStateUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		advance time.Duration
		code    func(stored string) string
	}{
		{"wrong code", 0, func(stored string) string {
			if stored == "100000" {
				return "100001"
			}
			return "100000"
		}},
		{"exactly at expiry", 2 * time.Minute, func(stored string) string { return stored }},
		{"after expiry", 3 * time.Minute, func(stored string) string { return stored }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()

			if _, err := env.svc.Register(ctx, RoleRetailer, customerRegistration("r@example.com")); err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			before := env.principal(t, RoleRetailer, "r@example.com")
			env.clock.Advance(tt.advance)

			_, err := env.svc.VerifyOTP(ctx, RoleRetailer, before, tt.code(before.OTP))
			if !errors.Is(err, ErrInvalidOTP) {
				t.Fatalf("VerifyOTP() error = %v, want ErrInvalidOTP", err)
			}

			after := env.principal(t, RoleRetailer, "r@example.com")
			if after.IsVerified || after.OTP != before.OTP {
				t.Errorf("state changed: before=%+v after=%+v", before, after)
			}
		})
	}
}

func TestResendOTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Register(ctx, RoleCustomer, customerRegistration("c@example.com")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	// The registration mail must land before the resend so ordering is fixed.
	env.svc.Wait()
	first := env.principal(t, RoleCustomer, "c@example.com")

	env.clock.Advance(time.Minute)
	if err := env.svc.ResendOTP(ctx, RoleCustomer, first); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("ResendOTP() inside window error = %v, want ErrCooldownActive", err)
	}

	env.clock.Advance(time.Minute)
	if err := env.svc.ResendOTP(ctx, RoleCustomer, first); err != nil {
		t.Fatalf("ResendOTP() after expiry error = %v", err)
	}
	env.svc.Wait()

	second := env.principal(t, RoleCustomer, "c@example.com")
	if n := env.mailer.count(); n != 2 {
		t.Fatalf("mails sent = %d, want 2 (registration, resend)", n)
	}
	if mail := env.mailer.last(t); mail.Code != second.OTP {
		t.Errorf("mailed code %s, stored %s", mail.Code, second.OTP)
	}
	if !second.OTPExpiry.Equal(env.clock.Now().Add(2 * time.Minute)) {
		t.Errorf("OTPExpiry = %v, want now+2m", second.OTPExpiry)
	}
	if second.OTP != first.OTP {
		if _, err := env.svc.VerifyOTP(ctx, RoleCustomer, second, first.OTP); !errors.Is(err, ErrInvalidOTP) {
			t.Errorf("old code error = %v, want ErrInvalidOTP", err)
		}
	}
	if _, err := env.svc.VerifyOTP(ctx, RoleCustomer, second, second.OTP); err != nil {
		t.Errorf("new code VerifyOTP() error = %v", err)
	}

	verified := env.principal(t, RoleCustomer, "c@example.com")
	if err := env.svc.ResendOTP(ctx, RoleCustomer, verified); !errors.Is(err, ErrAlreadyVerified) {
		t.Errorf("ResendOTP() verified error = %v, want ErrAlreadyVerified", err)
	}
}
