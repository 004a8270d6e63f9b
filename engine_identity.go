package goGuard

import (
	"context"
	"strings"

	"github.com/MrEthical07/goGuard/autherr"
	"github.com/MrEthical07/goGuard/identity"
	internalflows "github.com/MrEthical07/goGuard/internal/flows"
)

const reauthFailedMessage = "Password verification failed. Please try again."

var errEmailMissing = autherr.New(autherr.CodeInvalidEmail, "Email is required", nil)

// reauthFailed classifies a failed password re-check. Credential rejections
// become invalid_password; any other cause keeps its own code.
func (e *Engine) reauthFailed(cause error) error {
	if cause != nil {
		ae := autherr.Parse(cause)
		switch ae.Code {
		case autherr.CodeWrongPassword, autherr.CodeInvalidPassword, autherr.CodeUserNotFound:
		default:
			return ae
		}
	}
	ae := autherr.Wrap(autherr.CodeInvalidPassword, reauthFailedMessage, nil, cause)
	ae.Timestamp = e.now().UTC()
	return ae
}

func (e *Engine) linkingFlowDeps() internalflows.LinkingDeps {
	deps := internalflows.LinkingDeps{
		ValidatePassword: e.config.Validation.validatePassword,
		ReauthFailed:     e.reauthFailed,
		Now:              e.clock.Now,
		MetricInc:        func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit:        e.emitAudit,
		Warn:             e.warn,
		Metrics: internalflows.LinkingMetrics{
			LinkRequired:     int(MetricLinkRequired),
			LinkSuccess:      int(MetricLinkSuccess),
			LinkFailure:      int(MetricLinkFailure),
			AccountConverted: int(MetricAccountConverted),
		},
		Events: internalflows.LinkingEvents{
			LinkRequired:     auditEventLinkRequired,
			LinkSuccess:      auditEventLinkSuccess,
			LinkFailure:      auditEventLinkFailure,
			AccountConverted: auditEventAccountConverted,
		},
		Errors: internalflows.LinkingErrors{
			EngineNotReady:  ErrEngineNotReady,
			InvalidPassword: autherr.ErrInvalidPassword,
			InvalidEmail:    errEmailMissing,
		},
	}
	if e.provider != nil {
		deps.SignInWithPassword = e.provider.SignInWithPassword
		deps.SignUp = e.provider.SignUp
		deps.UpdateIdentityMetadata = e.provider.UpdateIdentityMetadata
	}
	if e.profiles != nil {
		deps.FindAccountsByEmail = e.profiles.FindAccountsByEmail
		deps.UpsertAccount = e.profiles.UpsertAccount
	}
	return deps
}

// warn adapts key/value pairs from the flow packages onto the logger.
func (e *Engine) warn(msg string, kv ...any) {
	e.logger.Warn().Fields(kv).Msg(msg)
}

// ResolveLinking describes the resolvelinking operation and its observable behavior.
//
// ResolveLinking decides whether an attempt with method for email should log
// in, register, or ask the user to link identities. Without a profile store,
// or when the lookup fails, the decision is register.
func (e *Engine) ResolveLinking(ctx context.Context, email string, method identity.AuthMethod) identity.LinkDecision {
	return internalflows.RunResolveLinking(ctx, email, method, e.linkingFlowDeps())
}

// LinkSocialAccount re-authenticates the password identity of email and
// attaches method to it. A rejected password mutates nothing.
func (e *Engine) LinkSocialAccount(ctx context.Context, email, password string, method identity.AuthMethod, socialData map[string]any) (*identity.ProviderUser, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}
	user, err := internalflows.RunLinkSocialAccount(ctx, email, password, method, socialData, e.linkingFlowDeps())
	if err != nil {
		return nil, e.fail(ctx, "link_account", identity.NormalizeEmail(email), err)
	}
	return user, nil
}

// ConvertToEmailPassword creates a separate password identity seeded from a
// social profile. The social identity is not modified.
func (e *Engine) ConvertToEmailPassword(ctx context.Context, profile identity.SocialProfile, newPassword string) (*identity.ProviderUser, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}
	user, err := internalflows.RunConvertToEmailPassword(ctx, profile, newPassword, e.linkingFlowDeps())
	if err != nil {
		return nil, e.fail(ctx, "convert_account", identity.NormalizeEmail(profile.Email), err)
	}
	return user, nil
}

func supportedOAuthProvider(p identity.AuthMethod) bool {
	return p == identity.MethodGoogle || p == identity.MethodGitHub
}

// BeginOAuth returns the provider URL the user agent must be redirected to.
// The callback lands on OAuth.RedirectURL.
func (e *Engine) BeginOAuth(ctx context.Context, provider identity.AuthMethod) (string, error) {
	if e == nil || e.provider == nil {
		return "", ErrEngineNotReady
	}
	if !supportedOAuthProvider(provider) {
		return "", ErrUnsupportedProvider
	}
	url, err := e.provider.BeginOAuth(ctx, provider, e.config.OAuth.RedirectURL)
	if err != nil {
		return "", e.fail(ctx, "oauth_begin", "", err)
	}
	return url, nil
}

// CompleteOAuth describes the completeoauth operation and its observable behavior.
//
// CompleteOAuth exchanges the callback code, resolves identity linking for
// the returned profile and, when the decision is login or register, starts a
// session. A new account is upserted into the profile store when
// OAuth.SyncProfileOnCallback is set; a failed sync keeps the session and
// sets Warning.
func (e *Engine) CompleteOAuth(ctx context.Context, provider identity.AuthMethod, code, state string) (*OAuthOutcome, error) {
	if e == nil || e.oauth == nil {
		return nil, ErrEngineNotReady
	}
	if !supportedOAuthProvider(provider) {
		return nil, ErrUnsupportedProvider
	}

	result, err := e.oauth.CompleteOAuth(ctx, provider, code, state)
	if err == nil && (result == nil || result.Session.Token == "") {
		err = autherr.New(autherr.CodeUnknown, "The identity provider did not return a session.", nil)
	}
	if err != nil {
		ae := e.fail(ctx, "oauth_callback", "", err)
		e.emitAudit(ctx, auditEventOAuthCallback, false, "", ae, func() map[string]string {
			return map[string]string{"provider": string(provider)}
		})
		return nil, ae
	}

	profile := result.Profile
	if profile.Provider == "" {
		profile.Provider = provider
	}
	email := identity.NormalizeEmail(profile.Email)
	if email == "" {
		email = identity.NormalizeEmail(result.Session.User.Email)
	}

	out := &OAuthOutcome{Profile: profile}
	out.Decision = internalflows.RunResolveLinking(ctx, email, provider, e.linkingFlowDeps())
	if out.Decision.Action == identity.ActionLinkRequired {
		e.emitAudit(ctx, auditEventOAuthCallback, false, email, ErrLinkRequired, func() map[string]string {
			return map[string]string{"provider": string(provider), "action": string(out.Decision.Action)}
		})
		return out, nil
	}

	snap, err := e.startSession(ctx, email, result.Session.Token, result.Session.ExpiresIn)
	if err != nil {
		return nil, err
	}
	out.Session = &snap
	e.metricInc(MetricLoginSuccess)

	if out.Decision.Action == identity.ActionRegister && e.profiles != nil && e.config.OAuth.SyncProfileOnCallback {
		if err := e.profiles.UpsertAccount(ctx, e.oauthAccount(result, profile, email)); err != nil {
			e.logger.Warn().Err(err).Str("email", email).Msg("profile sync after oauth failed")
			out.Warning = "Session created but account sync failed"
		}
	}

	e.emitAudit(ctx, auditEventOAuthCallback, true, email, nil, func() map[string]string {
		return map[string]string{"provider": string(provider), "action": string(out.Decision.Action)}
	})
	return out, nil
}

func (e *Engine) oauthAccount(result *identity.OAuthResult, profile identity.SocialProfile, email string) identity.Account {
	username := profile.Username
	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}
	id := result.Session.User.ID
	if id == "" {
		id = profile.Subject
	}
	return identity.Account{
		ID:          id,
		Email:       email,
		Username:    username,
		Image:       profile.AvatarURL,
		AuthMethods: []identity.AuthMethod{profile.Provider},
		CreatedAt:   e.now().UTC(),
	}
}
