package oauth

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/oauth2"

	"github.com/diewo77/portail-cabinet/internal/models"
)

// Profile is the account identity shown in the settings page.
type Profile struct {
	Email string
	Name  string
}

// Provider describes one external OAuth application.
type Provider struct {
	Key        string
	Endpoint   oauth2.Endpoint
	Scopes     []string
	AuthParams []oauth2.AuthCodeOption
	ProfileURL string
	// DecodeProfile parses the body returned by ProfileURL.
	DecodeProfile func(body []byte) (Profile, error)
}

// Credentials are the client registration of a Provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

func (c Credentials) configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURI != ""
}

// Microsoft returns the identity platform v2 provider used for OneDrive.
func Microsoft(tenant, graphBaseURL string) Provider {
	if tenant == "" {
		tenant = "common"
	}
	base := "https://login.microsoftonline.com/" + tenant + "/oauth2/v2.0"
	return Provider{
		Key: models.ServiceOneDrive,
		Endpoint: oauth2.Endpoint{
			AuthURL:   base + "/authorize",
			TokenURL:  base + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes:     []string{"offline_access", "User.Read", "Files.ReadWrite.All"},
		AuthParams: []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("prompt", "select_account")},
		ProfileURL: strings.TrimRight(graphBaseURL, "/") + "/me",
		DecodeProfile: func(body []byte) (Profile, error) {
			var me struct {
				DisplayName       string `json:"displayName"`
				Mail              string `json:"mail"`
				UserPrincipalName string `json:"userPrincipalName"`
			}
			if err := json.Unmarshal(body, &me); err != nil {
				return Profile{}, fmt.Errorf("decode graph profile: %w", err)
			}
			email := me.Mail
			if email == "" {
				email = me.UserPrincipalName
			}
			return Profile{Email: email, Name: me.DisplayName}, nil
		},
	}
}

// Google returns the provider used for Google Calendar.
func Google() Provider {
	return Provider{
		Key: models.ServiceGoogleCalendar,
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL:  "https://oauth2.googleapis.com/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{
			"https://www.googleapis.com/auth/calendar",
			"https://www.googleapis.com/auth/userinfo.email",
		},
		// A refresh token is only returned on offline access with a fresh consent.
		AuthParams: []oauth2.AuthCodeOption{oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")},
		ProfileURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		DecodeProfile: func(body []byte) (Profile, error) {
			var info struct {
				Email string `json:"email"`
				Name  string `json:"name"`
			}
			if err := json.Unmarshal(body, &info); err != nil {
				return Profile{}, fmt.Errorf("decode google profile: %w", err)
			}
			return Profile{Email: info.Email, Name: info.Name}, nil
		},
	}
}
