package banter

import (
	"context"
	"fmt"

	"banter/authlayer"
	"banter/dbtypes"

	"cloud.google.com/go/firestore"
)

// CreateAccount registers a new email/password account, gives it the default
// profile, writes its user document, and joins it to the default server.
//
// The steps are sequential writes to independent backends.  A failure partway
// through leaves the earlier steps committed: the account can exist without a
// user document, or with a document but outside the default server.  Callers
// get the step's error and can retry the remainder.
func (c *Client) CreateAccount(ctx context.Context, email, password, username string) error {
	session, err := c.auth.SignUp(ctx, email, password)
	if err != nil {
		return fmt.Errorf("while registering account: %w", err)
	}

	if err := c.auth.UpdateProfile(ctx, session.IDToken, username, c.opts.DefaultAvatarURL); err != nil {
		return fmt.Errorf("while setting initial profile: %w", err)
	}
	session.DisplayName = username
	session.PhotoURL = c.opts.DefaultAvatarURL
	c.setSession(session)

	user := &dbtypes.User{
		Username: username,
		Avatar:   c.opts.DefaultAvatarURL,
		Tag:      defaultTag,
		About:    "",
		Banner:   c.opts.DefaultBanner,
		Email:    email,
		Theme:    defaultTheme,
	}
	if err := c.db.CreateUser(ctx, session.UID, user); err != nil {
		return fmt.Errorf("while writing user document: %w", err)
	}

	if err := c.JoinServer(ctx, c.opts.DefaultServerID); err != nil {
		return fmt.Errorf("while joining default server: %w", err)
	}

	return nil
}

// SignIn authenticates an existing account and makes it the active session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*dbtypes.User, error) {
	session, err := c.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("while signing in: %w", err)
	}
	c.setSession(session)

	return &dbtypes.User{
		ID:       session.UID,
		Username: session.DisplayName,
		Avatar:   session.PhotoURL,
		Email:    session.Email,
	}, nil
}

// SignInAsGuest creates an anonymous account with the guest profile, writes
// its user document, and joins it to the default server.  Same partial-failure
// behavior as CreateAccount.
func (c *Client) SignInAsGuest(ctx context.Context) error {
	session, err := c.auth.SignUpAnonymous(ctx)
	if err != nil {
		return fmt.Errorf("while creating guest session: %w", err)
	}

	if err := c.auth.UpdateProfile(ctx, session.IDToken, c.opts.GuestName, c.opts.GuestAvatarURL); err != nil {
		return fmt.Errorf("while setting guest profile: %w", err)
	}
	session.DisplayName = c.opts.GuestName
	session.PhotoURL = c.opts.GuestAvatarURL
	c.setSession(session)

	user := &dbtypes.User{
		Username: c.opts.GuestName,
		Avatar:   c.opts.GuestAvatarURL,
		Tag:      defaultTag,
		About:    "",
		Banner:   c.opts.DefaultBanner,
		Email:    "",
		Theme:    defaultTheme,
	}
	if err := c.db.CreateUser(ctx, session.UID, user); err != nil {
		return fmt.Errorf("while writing guest user document: %w", err)
	}

	if err := c.JoinServer(ctx, c.opts.DefaultServerID); err != nil {
		return fmt.Errorf("while joining default server: %w", err)
	}

	return nil
}

// LogOut drops the active session.  The Identity Toolkit tokens simply stop
// being used; there is no server-side session to tear down.
func (c *Client) LogOut() {
	c.setSession(nil)
}

// reauthenticate mints a fresh credential for the signed-in user by signing
// in again with the supplied password.  Sensitive account mutations require
// a recent credential.
func (c *Client) reauthenticate(ctx context.Context, password string) (*authlayer.Session, error) {
	session, err := c.currentSession()
	if err != nil {
		return nil, err
	}
	if session.Email == "" {
		return nil, ErrNoEmail
	}

	fresh, err := c.auth.SignInWithPassword(ctx, session.Email, password)
	if err != nil {
		return nil, fmt.Errorf("while reauthenticating: %w", err)
	}

	return fresh, nil
}

// ChangeUsername updates the display name on the auth record and mirrors the
// change into the user document.  Requires the current password to mint a
// fresh credential first.
func (c *Client) ChangeUsername(ctx context.Context, newUsername, password string) error {
	fresh, err := c.reauthenticate(ctx, password)
	if err != nil {
		return err
	}

	if err := c.auth.UpdateProfile(ctx, fresh.IDToken, newUsername, ""); err != nil {
		return fmt.Errorf("while updating display name: %w", err)
	}

	if err := c.db.UpdateUser(ctx, fresh.UID, []firestore.Update{{Path: "username", Value: newUsername}}); err != nil {
		return fmt.Errorf("while mirroring username into user document: %w", err)
	}

	fresh.DisplayName = newUsername
	c.setSession(fresh)

	return nil
}

// ChangeEmail updates the email on the auth record and mirrors the change
// into the user document.  Requires the current password to mint a fresh
// credential first.
func (c *Client) ChangeEmail(ctx context.Context, newEmail, password string) error {
	fresh, err := c.reauthenticate(ctx, password)
	if err != nil {
		return err
	}

	if err := c.auth.UpdateEmail(ctx, fresh.IDToken, newEmail); err != nil {
		return fmt.Errorf("while updating email: %w", err)
	}

	if err := c.db.UpdateUser(ctx, fresh.UID, []firestore.Update{{Path: "email", Value: newEmail}}); err != nil {
		return fmt.Errorf("while mirroring email into user document: %w", err)
	}

	fresh.Email = newEmail
	c.setSession(fresh)

	return nil
}
