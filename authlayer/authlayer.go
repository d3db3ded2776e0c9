// Package authlayer is a small HTTP client for the Google Identity Toolkit
// API, which backs banter's accounts.
//
// Identity Toolkit is the account service behind Firebase Authentication.
// The operations here are the client-side ones (password sign-in, anonymous
// sign-in, profile updates); credential issuance, token refresh, and session
// persistence all stay on the server side of this API.
package authlayer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the production Identity Toolkit endpoint.
const DefaultBaseURL = "https://identitytoolkit.googleapis.com"

var (
	ErrEmailExists     = errors.New("an account already exists for this email")
	ErrEmailNotFound   = errors.New("no account exists for this email")
	ErrInvalidPassword = errors.New("wrong password")
	ErrWeakPassword    = errors.New("password is too weak")
	ErrUserDisabled    = errors.New("this account has been disabled")
	ErrTokenExpired    = errors.New("credential has expired; sign in again")
)

// errForCode maps Identity Toolkit error codes to sentinel errors.  The
// server sometimes appends detail after the code ("WEAK_PASSWORD : ..."), so
// codes are matched by prefix.
var errForCode = map[string]error{
	"EMAIL_EXISTS":              ErrEmailExists,
	"EMAIL_NOT_FOUND":           ErrEmailNotFound,
	"INVALID_PASSWORD":          ErrInvalidPassword,
	"WEAK_PASSWORD":             ErrWeakPassword,
	"USER_DISABLED":             ErrUserDisabled,
	"CREDENTIAL_TOO_OLD":        ErrTokenExpired,
	"TOKEN_EXPIRED":             ErrTokenExpired,
	"INVALID_LOGIN_CREDENTIALS": ErrInvalidPassword,
}

// Session is the identity returned by a successful sign-in or sign-up.
type Session struct {
	UID          string
	Email        string
	DisplayName  string
	PhotoURL     string
	IDToken      string
	RefreshToken string
	Expires      time.Time
}

// Client provides functions for interacting with the Identity Toolkit API.
type Client struct {
	Client  *http.Client
	BaseURL string
	APIKey  string
}

// New creates a new Client.  baseURL may be empty, in which case
// DefaultBaseURL is used.
func New(client *http.Client, baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		Client:  client,
		BaseURL: baseURL,
		APIKey:  apiKey,
	}
}

type accountsRequest struct {
	Email             string `json:"email,omitempty"`
	Password          string `json:"password,omitempty"`
	IDToken           string `json:"idToken,omitempty"`
	DisplayName       string `json:"displayName,omitempty"`
	PhotoURL          string `json:"photoUrl,omitempty"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type accountsResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// doPost calls one accounts:* verb with a JSON body.
func (c *Client) doPost(ctx context.Context, verb string, request *accountsRequest, target *accountsResponse) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("while marshaling request: %w", err)
	}

	endpoint := c.BaseURL + "/v1/accounts:" + verb + "?key=" + url.QueryEscape(c.APIKey)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("while making request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("while calling accounts:%s: %w", verb, err)
	}
	defer resp.Body.Close()

	respBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("while reading body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		errResp := &errorResponse{}
		if err := json.Unmarshal(respBody, errResp); err != nil || errResp.Error.Message == "" {
			return fmt.Errorf("bad status code %d from accounts:%s", resp.StatusCode, verb)
		}
		for code, sentinel := range errForCode {
			if strings.HasPrefix(errResp.Error.Message, code) {
				return sentinel
			}
		}
		return fmt.Errorf("accounts:%s failed: %s", verb, errResp.Error.Message)
	}

	if err := json.Unmarshal(respBody, target); err != nil {
		return fmt.Errorf("while unmarshaling body: %w", err)
	}

	return nil
}

func sessionFromResponse(resp *accountsResponse) *Session {
	session := &Session{
		UID:          resp.LocalID,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		PhotoURL:     resp.PhotoURL,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
	}
	if seconds, err := strconv.Atoi(resp.ExpiresIn); err == nil {
		session.Expires = time.Now().Add(time.Duration(seconds) * time.Second)
	}
	return session
}

// SignUp registers a new email/password account and returns its session.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	resp := &accountsResponse{}
	err := c.doPost(ctx, "signUp", &accountsRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}, resp)
	if err != nil {
		return nil, fmt.Errorf("while signing up: %w", err)
	}
	return sessionFromResponse(resp), nil
}

// SignUpAnonymous creates an anonymous account and returns its session.
func (c *Client) SignUpAnonymous(ctx context.Context) (*Session, error) {
	resp := &accountsResponse{}
	err := c.doPost(ctx, "signUp", &accountsRequest{ReturnSecureToken: true}, resp)
	if err != nil {
		return nil, fmt.Errorf("while signing up anonymously: %w", err)
	}
	return sessionFromResponse(resp), nil
}

// SignInWithPassword signs into an existing account.  It also serves as
// reauthentication: signing in again with the current password mints a fresh
// credential for sensitive operations like email changes.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	resp := &accountsResponse{}
	err := c.doPost(ctx, "signInWithPassword", &accountsRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}, resp)
	if err != nil {
		return nil, fmt.Errorf("while signing in: %w", err)
	}
	return sessionFromResponse(resp), nil
}

// UpdateProfile sets the display name and/or photo URL on the account behind
// idToken.  Empty fields are left unchanged.
func (c *Client) UpdateProfile(ctx context.Context, idToken, displayName, photoURL string) error {
	resp := &accountsResponse{}
	err := c.doPost(ctx, "update", &accountsRequest{
		IDToken:     idToken,
		DisplayName: displayName,
		PhotoURL:    photoURL,
	}, resp)
	if err != nil {
		return fmt.Errorf("while updating profile: %w", err)
	}
	return nil
}

// UpdateEmail changes the email of the account behind idToken.  The token
// must be freshly minted or the server rejects the change with
// ErrTokenExpired.
func (c *Client) UpdateEmail(ctx context.Context, idToken, email string) error {
	resp := &accountsResponse{}
	err := c.doPost(ctx, "update", &accountsRequest{
		IDToken: idToken,
		Email:   email,
	}, resp)
	if err != nil {
		return fmt.Errorf("while updating email: %w", err)
	}
	return nil
}
