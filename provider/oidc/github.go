package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/goGuard/identity"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubAPI is the public REST root.
const GitHubAPI = "https://api.github.com"

// GitHub configures GitHub sign-in. GitHub issues no ID token, so the
// profile comes from the REST API at apiURL (GitHubAPI when empty).
func GitHub(clientID, clientSecret, apiURL string) *Provider {
	return &Provider{
		Method: identity.MethodGitHub,
		OAuth2: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		FetchProfile: GitHubProfile(apiURL),
	}
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	Bio       string `json:"bio"`
	Location  string `json:"location"`
	Blog      string `json:"blog"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GitHubProfile reads /user and, when the public email is hidden,
// the primary verified address from /user/emails.
func GitHubProfile(apiURL string) ProfileFetcher {
	if apiURL == "" {
		apiURL = GitHubAPI
	}
	apiURL = strings.TrimRight(apiURL, "/")

	return func(ctx context.Context, token *oauth2.Token) (identity.SocialProfile, error) {
		hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

		var u githubUser
		if err := getJSON(ctx, hc, apiURL+"/user", &u); err != nil {
			return identity.SocialProfile{}, err
		}
		email := u.Email
		if email == "" {
			var emails []githubEmail
			if err := getJSON(ctx, hc, apiURL+"/user/emails", &emails); err != nil {
				return identity.SocialProfile{}, err
			}
			for _, e := range emails {
				if e.Primary && e.Verified {
					email = e.Email
					break
				}
			}
		}

		return identity.SocialProfile{
			Subject:   strconv.FormatInt(u.ID, 10),
			Email:     identity.NormalizeEmail(email),
			Username:  u.Login,
			FullName:  u.Name,
			AvatarURL: u.AvatarURL,
			Metadata: map[string]any{
				"bio":      u.Bio,
				"location": u.Location,
				"website":  u.Blog,
			},
		}, nil
	}
}

func getJSON(ctx context.Context, hc *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("github api %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github api %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
