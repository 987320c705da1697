package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"

	"github.com/diewo77/portail-cabinet/auth"
	"github.com/diewo77/portail-cabinet/internal/models"
	"github.com/diewo77/portail-cabinet/validation"
)

// TOTPIssuer is shown by authenticator apps next to the account name.
const TOTPIssuer = "Portail Cabinet"

// dummyHash keeps the timing of unknown-email logins close to a real check.
var dummyHash = sync.OnceValue(func() string {
	h, _ := hashPassword("portail-cabinet")
	return h
})

// Account is the logged-in identity behind a session, whichever the realm.
type Account struct {
	Realm  auth.Realm     `json:"realm"`
	Admin  *models.Admin  `json:"admin,omitempty"`
	Client *models.Client `json:"client,omitempty"`
}

// ID is the account id within its realm.
func (a *Account) ID() uint {
	if a.Admin != nil {
		return a.Admin.ID
	}
	return a.Client.ID
}

func (a *Account) model() any {
	if a.Admin != nil {
		return a.Admin
	}
	return a.Client
}

func (a *Account) email() string {
	if a.Admin != nil {
		return a.Admin.Email
	}
	return a.Client.Email
}

func (a *Account) hash() string {
	if a.Admin != nil {
		return a.Admin.Password
	}
	return a.Client.Password
}

func (a *Account) active() bool {
	if a.Admin != nil {
		return a.Admin.IsActive
	}
	return a.Client.IsActive
}

func (a *Account) twoFactor() (secret string, enabled bool) {
	if a.Admin != nil {
		return a.Admin.TwoFactorSecret, a.Admin.TwoFactorEnabled
	}
	return a.Client.TwoFactorSecret, a.Client.TwoFactorEnabled
}

// LoginResult tells the handler which session to open.
type LoginResult struct {
	Account           *Account
	TwoFactorRequired bool
}

// TwoFactorSetup is returned once, when a secret is generated.
type TwoFactorSetup struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauth_url"`
}

// AuthService checks credentials and manages the TOTP second factor of both
// realms.
type AuthService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{db: db, now: time.Now}
}

func (s *AuthService) find(ctx context.Context, realm auth.Realm, where string, arg any) (*Account, error) {
	tx := s.db.WithContext(ctx)
	switch realm {
	case auth.RealmAdmin:
		var a models.Admin
		if err := tx.Where(where, arg).First(&a).Error; err != nil {
			return nil, err
		}
		return &Account{Realm: realm, Admin: &a}, nil
	case auth.RealmClient:
		var c models.Client
		if err := tx.Where(where, arg).First(&c).Error; err != nil {
			return nil, err
		}
		return &Account{Realm: realm, Client: &c}, nil
	}
	return nil, ErrNotFound
}

// Me loads the account behind a session.
func (s *AuthService) Me(ctx context.Context, realm auth.Realm, id uint) (*Account, error) {
	return s.find(ctx, realm, "id = ?", id)
}

// Login checks an email and password. Unknown emails and wrong passwords are
// both ErrInvalidCredentials; a disabled account is ErrAccountInactive.
func (s *AuthService) Login(ctx context.Context, realm auth.Realm, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	v := make(validation.Violations)
	validation.Required("email", email, v)
	validation.Required("password", password, v)
	if err := invalid(v); err != nil {
		return nil, err
	}
	acc, err := s.find(ctx, realm, "LOWER(email) = ?", email)
	if errors.Is(err, ErrNotFound) {
		checkPassword(dummyHash(), password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !checkPassword(acc.hash(), password) {
		return nil, ErrInvalidCredentials
	}
	if !acc.active() {
		return nil, ErrAccountInactive
	}
	if _, enabled := acc.twoFactor(); enabled {
		return &LoginResult{Account: acc, TwoFactorRequired: true}, nil
	}
	if err := s.touch(ctx, acc); err != nil {
		return nil, err
	}
	return &LoginResult{Account: acc}, nil
}

func (s *AuthService) touch(ctx context.Context, acc *Account) error {
	now := s.now()
	if acc.Admin != nil {
		acc.Admin.LastLoginAt = &now
	} else {
		acc.Client.LastLoginAt = &now
	}
	return s.db.WithContext(ctx).Model(acc.model()).Update("last_login_at", now).Error
}

func (s *AuthService) validCode(secret, code string) bool {
	code = strings.ReplaceAll(strings.TrimSpace(code), " ", "")
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, s.now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// VerifyTwoFactor completes a pending login.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, realm auth.Realm, id uint, code string) (*Account, error) {
	acc, err := s.Me(ctx, realm, id)
	if err != nil {
		return nil, err
	}
	if !acc.active() {
		return nil, ErrAccountInactive
	}
	secret, enabled := acc.twoFactor()
	if !enabled {
		return nil, ErrTwoFactorNotSetup
	}
	if !s.validCode(secret, code) {
		return nil, ErrInvalidTOTP
	}
	if err := s.touch(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// SetupTwoFactor stores a fresh secret. The factor stays disabled until
// EnableTwoFactor sees a valid code for it.
func (s *AuthService) SetupTwoFactor(ctx context.Context, realm auth.Realm, id uint) (*TwoFactorSetup, error) {
	acc, err := s.Me(ctx, realm, id)
	if err != nil {
		return nil, err
	}
	key, err := totp.Generate(totp.GenerateOpts{Issuer: TOTPIssuer, AccountName: acc.email()})
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(acc.model()).Updates(map[string]any{
		"two_factor_secret":  key.Secret(),
		"two_factor_enabled": false,
	}).Error; err != nil {
		return nil, err
	}
	return &TwoFactorSetup{Secret: key.Secret(), URL: key.URL()}, nil
}

func (s *AuthService) EnableTwoFactor(ctx context.Context, realm auth.Realm, id uint, code string) error {
	acc, err := s.Me(ctx, realm, id)
	if err != nil {
		return err
	}
	secret, _ := acc.twoFactor()
	if secret == "" {
		return ErrTwoFactorNotSetup
	}
	if !s.validCode(secret, code) {
		return ErrInvalidTOTP
	}
	return s.db.WithContext(ctx).Model(acc.model()).Update("two_factor_enabled", true).Error
}

// DisableTwoFactor needs a current code so a stolen session cannot drop the factor.
func (s *AuthService) DisableTwoFactor(ctx context.Context, realm auth.Realm, id uint, code string) error {
	acc, err := s.Me(ctx, realm, id)
	if err != nil {
		return err
	}
	secret, enabled := acc.twoFactor()
	if !enabled {
		return ErrTwoFactorNotSetup
	}
	if !s.validCode(secret, code) {
		return ErrInvalidTOTP
	}
	return s.db.WithContext(ctx).Model(acc.model()).Updates(map[string]any{
		"two_factor_secret":  "",
		"two_factor_enabled": false,
	}).Error
}

// ChangePassword replaces the password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, realm auth.Realm, id uint, current, next string) error {
	v := make(validation.Violations)
	validation.Required("current_password", current, v)
	validation.Required("password", next, v)
	validation.MinLen("password", next, MinPasswordLength, v)
	if err := invalid(v); err != nil {
		return err
	}
	acc, err := s.Me(ctx, realm, id)
	if err != nil {
		return err
	}
	if !checkPassword(acc.hash(), current) {
		return ErrInvalidPassword
	}
	hash, err := hashPassword(next)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(acc.model()).Update("password", hash).Error
}

// Active reports whether the session's account still exists and is enabled.
func (s *AuthService) Active(ctx context.Context, realm auth.Realm, id uint) bool {
	acc, err := s.Me(ctx, realm, id)
	return err == nil && acc.active()
}
