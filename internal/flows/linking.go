package flows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/identity"
)

// LinkingMetrics carries metric IDs needed by linking flows.
type LinkingMetrics struct {
	LinkRequired     int
	LinkSuccess      int
	LinkFailure      int
	AccountConverted int
}

// LinkingEvents carries audit event names used by linking flows.
type LinkingEvents struct {
	LinkRequired     string
	LinkSuccess      string
	LinkFailure      string
	AccountConverted string
}

// LinkingErrors carries host-level sentinel errors used by linking flows.
type LinkingErrors struct {
	EngineNotReady  error
	InvalidPassword error
	InvalidEmail    error
}

// LinkingDeps captures identity-linking dependencies.
type LinkingDeps struct {
	FindAccountsByEmail    func(context.Context, string) ([]identity.Account, error)
	UpsertAccount          func(context.Context, identity.Account) error
	SignInWithPassword     func(context.Context, string, string) (*identity.ProviderSession, error)
	SignUp                 func(context.Context, string, string, map[string]any) (*identity.ProviderUser, error)
	UpdateIdentityMetadata func(context.Context, map[string]any) error
	ValidatePassword       func(string) error
	ReauthFailed           ReauthFunc

	Now       func() time.Time
	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics LinkingMetrics
	Events  LinkingEvents
	Errors  LinkingErrors
}

func (d *LinkingDeps) defaults() {
	d.Now = defaultNow(d.Now)
	if d.MetricInc == nil {
		d.MetricInc = noopMetric
	}
	if d.EmitAudit == nil {
		d.EmitAudit = noopAudit
	}
	if d.Warn == nil {
		d.Warn = noopWarn
	}
}

// RunResolveLinking decides whether an attempt with method should log in,
// register, or require explicit linking. Lookup failures resolve to register.
func RunResolveLinking(ctx context.Context, email string, method identity.AuthMethod, deps LinkingDeps) identity.LinkDecision {
	deps.defaults()
	email = identity.NormalizeEmail(email)

	register := identity.LinkDecision{Action: identity.ActionRegister, NewAuthMethod: method}
	if deps.FindAccountsByEmail == nil || email == "" {
		return register
	}

	accounts, err := deps.FindAccountsByEmail(ctx, email)
	if err != nil {
		deps.Warn("account linking lookup failed", "email", email, "error", err)
		return register
	}
	if len(accounts) == 0 {
		return register
	}

	for i := range accounts {
		if accounts[i].HasMethod(method) {
			existing := accounts[i]
			return identity.LinkDecision{
				Action:        identity.ActionLogin,
				ExistingUser:  &existing,
				NewAuthMethod: method,
			}
		}
	}

	existing := linkTarget(accounts)
	deps.MetricInc(deps.Metrics.LinkRequired)
	deps.EmitAudit(ctx, deps.Events.LinkRequired, true, email, nil, func() map[string]string {
		return map[string]string{"method": string(method), "account_id": existing.ID}
	})
	return identity.LinkDecision{
		Action:        identity.ActionLinkRequired,
		ExistingUser:  &existing,
		NewAuthMethod: method,
		Message:       fmt.Sprintf("An account with %s already exists. Would you like to link your %s account?", email, method),
	}
}

// linkTarget prefers the password-bearing account.
func linkTarget(accounts []identity.Account) identity.Account {
	for _, a := range accounts {
		if a.HasMethod(identity.MethodEmail) {
			return a
		}
	}
	return accounts[0]
}

// RunLinkSocialAccount re-authenticates the existing identity with password
// and attaches method to it. Re-authentication failure returns
// the ReauthFailed mapping of the provider error and mutates nothing.
func RunLinkSocialAccount(ctx context.Context, email, password string, method identity.AuthMethod, socialData map[string]any, deps LinkingDeps) (*identity.ProviderUser, error) {
	deps.defaults()
	if deps.SignInWithPassword == nil || deps.UpdateIdentityMetadata == nil {
		return nil, deps.Errors.EngineNotReady
	}
	email = identity.NormalizeEmail(email)

	sess, err := deps.SignInWithPassword(ctx, email, password)
	if err != nil || sess == nil {
		failure := reauthFailure(deps.ReauthFailed, deps.Errors.InvalidPassword, err)
		deps.MetricInc(deps.Metrics.LinkFailure)
		deps.EmitAudit(ctx, deps.Events.LinkFailure, false, email, failure, func() map[string]string {
			return map[string]string{"method": string(method), "reason": "reauthentication_failed"}
		})
		return nil, failure
	}

	methods := appendMethod(metadataMethods(sess.User.Metadata), method)
	patch := map[string]any{"authMethods": methodStrings(methods)}
	patch[string(method)+"_linked"] = true
	patch[string(method)+"_data"] = socialData
	if err := deps.UpdateIdentityMetadata(ctx, patch); err != nil {
		deps.MetricInc(deps.Metrics.LinkFailure)
		deps.EmitAudit(ctx, deps.Events.LinkFailure, false, email, err, func() map[string]string {
			return map[string]string{"method": string(method), "reason": "metadata_update_failed"}
		})
		return nil, err
	}

	syncProfileMethods(ctx, email, method, deps)

	user := sess.User
	user.Metadata = mergeMetadata(user.Metadata, patch)
	deps.MetricInc(deps.Metrics.LinkSuccess)
	deps.EmitAudit(ctx, deps.Events.LinkSuccess, true, email, nil, func() map[string]string {
		return map[string]string{"method": string(method)}
	})
	return &user, nil
}

// syncProfileMethods records the linked method on the backend account so the
// next resolution returns login. Failures are logged only.
func syncProfileMethods(ctx context.Context, email string, method identity.AuthMethod, deps LinkingDeps) {
	if deps.FindAccountsByEmail == nil || deps.UpsertAccount == nil {
		return
	}
	accounts, err := deps.FindAccountsByEmail(ctx, email)
	if err != nil || len(accounts) == 0 {
		if err != nil {
			deps.Warn("linked method profile sync lookup failed", "email", email, "error", err)
		}
		return
	}
	target := linkTarget(accounts)
	if target.HasMethod(method) {
		return
	}
	target.AuthMethods = appendMethod(target.AuthMethods, method)
	if err := deps.UpsertAccount(ctx, target); err != nil {
		deps.Warn("linked method profile sync failed", "email", email, "account_id", target.ID, "error", err)
	}
}

// RunConvertToEmailPassword creates a separate password-based identity seeded
// from profile. The social identity is left untouched.
func RunConvertToEmailPassword(ctx context.Context, profile identity.SocialProfile, newPassword string, deps LinkingDeps) (*identity.ProviderUser, error) {
	deps.defaults()
	if deps.SignUp == nil {
		return nil, deps.Errors.EngineNotReady
	}

	email := identity.NormalizeEmail(profile.Email)
	if email == "" {
		return nil, deps.Errors.InvalidEmail
	}
	if deps.ValidatePassword != nil {
		if err := deps.ValidatePassword(newPassword); err != nil {
			return nil, err
		}
	}

	username := profile.Username
	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}
	metadata := map[string]any{
		"username":       username,
		"authMethods":    []string{string(identity.MethodEmail), string(profile.Provider)},
		"converted_from": string(profile.Provider),
		"social_data":    profile.Metadata,
	}

	user, err := deps.SignUp(ctx, email, newPassword, metadata)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.AccountConverted, false, email, err, nil)
		return nil, err
	}

	deps.MetricInc(deps.Metrics.AccountConverted)
	deps.EmitAudit(ctx, deps.Events.AccountConverted, true, email, nil, func() map[string]string {
		return map[string]string{"converted_from": string(profile.Provider)}
	})
	return user, nil
}

func metadataMethods(metadata map[string]any) []identity.AuthMethod {
	raw, ok := metadata["authMethods"]
	if !ok {
		return []identity.AuthMethod{identity.MethodEmail}
	}
	var out []identity.AuthMethod
	switch v := raw.(type) {
	case []string:
		for _, s := range v {
			out = append(out, identity.AuthMethod(s))
		}
	case []any:
		for _, s := range v {
			if str, ok := s.(string); ok {
				out = append(out, identity.AuthMethod(str))
			}
		}
	case []identity.AuthMethod:
		out = append(out, v...)
	}
	if len(out) == 0 {
		return []identity.AuthMethod{identity.MethodEmail}
	}
	return out
}

func appendMethod(methods []identity.AuthMethod, m identity.AuthMethod) []identity.AuthMethod {
	out := append([]identity.AuthMethod(nil), methods...)
	for _, cur := range out {
		if cur == m {
			return out
		}
	}
	return append(out, m)
}

func methodStrings(methods []identity.AuthMethod) []string {
	out := make([]string, len(methods))
	for i, m := range methods {
		out[i] = string(m)
	}
	return out
}

func mergeMetadata(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
