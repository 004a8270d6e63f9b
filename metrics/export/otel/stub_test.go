package otel

import (
	"context"

	"github.com/MrEthical07/goGuard/identity"
)

type stubProvider struct{}

func (stubProvider) GetCurrentSession(context.Context) (*identity.ProviderSession, error) {
	return nil, nil
}

func (stubProvider) SignInWithPassword(context.Context, string, string) (*identity.ProviderSession, error) {
	return nil, nil
}

func (stubProvider) SignUp(context.Context, string, string, map[string]any) (*identity.ProviderUser, error) {
	return nil, nil
}

func (stubProvider) BeginOAuth(context.Context, identity.AuthMethod, string) (string, error) {
	return "", nil
}

func (stubProvider) UpdateIdentityMetadata(context.Context, map[string]any) error { return nil }

func (stubProvider) ResetPasswordEmail(context.Context, string, string) error { return nil }
