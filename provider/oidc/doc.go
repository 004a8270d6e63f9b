// Package oidc completes social sign-in for goGuard with golang.org/x/oauth2
// and, for OpenID Connect providers, github.com/coreos/go-oidc/v3 ID-token
// verification.
//
// A Client holds one Provider per auth method. BeginOAuth issues the
// authorization URL with a one-time state, a nonce and a PKCE challenge;
// CompleteOAuth redeems the code, checks the state and returns the social
// profile together with the provider session. Use Client with
// Builder.WithOAuthCallback, and Attach to route IdentityProvider.BeginOAuth
// through it.
package oidc
