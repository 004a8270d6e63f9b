// Package identity defines the account model shared by the linking resolver
// and the duplicate-account merger, and the collaborator interfaces through
// which goGuard reaches the identity provider and the backend profile store.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrAccountNotFound is returned by a ProfileStore when an account id is unknown.
var ErrAccountNotFound = errors.New("account not found")

// AuthMethod is a credential class through which a user can authenticate.
type AuthMethod string

const (
	MethodEmail  AuthMethod = "email"
	MethodGoogle AuthMethod = "google"
	MethodGitHub AuthMethod = "github"
)

// ContentType names a class of user-owned backend content.
type ContentType string

const (
	ContentArticles      ContentType = "articles"
	ContentComments      ContentType = "comments"
	ContentBookmarks     ContentType = "bookmarks"
	ContentRelationships ContentType = "relationships"
)

// TransferableContent lists content types moved during a merge, in order.
var TransferableContent = []ContentType{
	ContentArticles,
	ContentComments,
	ContentBookmarks,
	ContentRelationships,
}

// Account is a backend profile record.
type Account struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	Username    string       `json:"username,omitempty"`
	Bio         string       `json:"bio,omitempty"`
	Image       string       `json:"image,omitempty"`
	Location    string       `json:"location,omitempty"`
	Website     string       `json:"website,omitempty"`
	AuthMethods []AuthMethod `json:"authMethods"`

	ArticlesCount  int `json:"totalArticlesCount"`
	CommentsCount  int `json:"totalCommentsCount"`
	LikesReceived  int `json:"totalLikesReceived"`
	FollowersCount int `json:"followersCount"`
	FollowingCount int `json:"followingCount"`

	CreatedAt  time.Time  `json:"createdAt"`
	MergedAt   *time.Time `json:"mergedAt,omitempty"`
	MergedFrom string     `json:"mergedFrom,omitempty"`
}

// HasMethod reports whether m is among the account's auth methods.
func (a Account) HasMethod(m AuthMethod) bool {
	for _, cur := range a.AuthMethods {
		if cur == m {
			return true
		}
	}
	return false
}

// NormalizeEmail lowercases and trims an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ProviderUser is the identity provider's view of a user.
type ProviderUser struct {
	ID       string
	Email    string
	Provider string
	Metadata map[string]any
}

// ProviderSession is a session issued by the identity provider. A zero
// ExpiresIn means the provider did not report a lifetime.
type ProviderSession struct {
	Token     string
	ExpiresIn time.Duration
	User      ProviderUser
}

// SocialProfile is the profile returned by a social provider after OAuth.
type SocialProfile struct {
	Provider  AuthMethod
	Subject   string
	Email     string
	Username  string
	FullName  string
	AvatarURL string
	Metadata  map[string]any
}

// OAuthResult is the outcome of completing an OAuth redirect.
type OAuthResult struct {
	Profile SocialProfile
	Session ProviderSession
}

// IdentityProvider verifies credentials and issues sessions.
type IdentityProvider interface {
	GetCurrentSession(ctx context.Context) (*ProviderSession, error)
	SignInWithPassword(ctx context.Context, email, password string) (*ProviderSession, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*ProviderUser, error)
	BeginOAuth(ctx context.Context, provider AuthMethod, redirectURL string) (string, error)
	UpdateIdentityMetadata(ctx context.Context, patch map[string]any) error
	ResetPasswordEmail(ctx context.Context, email, redirectURL string) error
}

// OAuthCallback completes an OAuth redirect started by BeginOAuth.
type OAuthCallback interface {
	CompleteOAuth(ctx context.Context, provider AuthMethod, code, state string) (*OAuthResult, error)
}

// ProfileStore owns backend account records and content ownership.
type ProfileStore interface {
	FindAccountsByEmail(ctx context.Context, email string) ([]Account, error)
	UpsertAccount(ctx context.Context, account Account) error
	DeleteAccount(ctx context.Context, id string) error
	TransferContentOwnership(ctx context.Context, content ContentType, fromID, toID string) error
}
