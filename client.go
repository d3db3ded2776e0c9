// Package banter is the data-access layer for the banter chat application.
// It translates application intents (create an account, join a server, post a
// message) into calls against three backend services: a Firestore document
// store, the Identity Toolkit account service, and a GCS image bucket.
//
// The layer is deliberately thin.  It holds no state beyond the current
// sign-in session and a handle to each backend client, performs no caching or
// retries, and multi-document flows have no cross-step atomicity: if step N+1
// of a flow fails, steps 1..N stay committed.  Every operation reports its
// outcome through an explicit error return.
package banter

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"banter/authlayer"
	"banter/dbtypes"

	"cloud.google.com/go/firestore"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotSignedIn    = errors.New("no user is signed in")
	ErrServerNotFound = errors.New("invalid server ID or link")
	ErrNoEmail        = errors.New("signed-in user has no email")
)

// Database is the document-store surface the facade needs.  *dblayer.DB
// satisfies it.
type Database interface {
	CreateUser(ctx context.Context, uid string, user *dbtypes.User) error
	UpdateUser(ctx context.Context, uid string, updates []firestore.Update) error
	CreateServer(ctx context.Context, server *dbtypes.Server) (string, error)
	GetServer(ctx context.Context, serverID string) (*dbtypes.Server, bool, error)
	UpdateServer(ctx context.Context, serverID string, updates []firestore.Update) error
	AddChannel(ctx context.Context, serverID string, channel *dbtypes.Channel) (string, error)
	PutMember(ctx context.Context, serverID, userID string, member *dbtypes.Member) error
	UpdateMember(ctx context.Context, serverID, userID string, updates []firestore.Update) error
	PutUserServerIndex(ctx context.Context, userID, serverID string) error
	AddMessage(ctx context.Context, serverID, channelID string, message *dbtypes.Message) (string, error)
	UpdateMessage(ctx context.Context, serverID, channelID, messageID string, updates []firestore.Update) error
}

// Authenticator is the account-service surface the facade needs.
// *authlayer.Client satisfies it.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string) (*authlayer.Session, error)
	SignUpAnonymous(ctx context.Context) (*authlayer.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*authlayer.Session, error)
	UpdateProfile(ctx context.Context, idToken, displayName, photoURL string) error
	UpdateEmail(ctx context.Context, idToken, email string) error
}

// ImageStore is the blob-store surface the facade needs.  *imagestore.Store
// satisfies it.
type ImageStore interface {
	UploadAvatar(ctx context.Context, userID string, r io.Reader) (string, error)
	UploadAvatarPreview(ctx context.Context, userID string, r io.Reader) (string, error)
	UploadServerImage(ctx context.Context, serverID string, r io.Reader) (string, error)
	UploadServerImagePreview(ctx context.Context, userID string, r io.Reader) (string, error)
	UploadMessageImage(ctx context.Context, serverID, messageID, filename string, r io.Reader) (string, error)
}

// DefaultServerID is the global chat server that every new account joins.
const DefaultServerID = "ke6NqegIvJEOa9cLzUEp"

const (
	defaultAvatarURL = "https://firebasestorage.googleapis.com/v0/b/banter-69832.appspot.com/o/assets%2FdefaultAvatar.svg?alt=media&token=2cd07b3e-6ee1-4682-8246-57bb20bc0d1f"
	defaultBanner    = "#7CC6FE"
	defaultTag       = "0000"
	defaultTheme     = "dark"
	guestName        = "Guest"
)

// Options carries the application defaults baked into new accounts and
// servers.  Zero fields fall back to the production values.
type Options struct {
	// DefaultServerID is the server every new account joins on creation.
	DefaultServerID string

	// DefaultAvatarURL is assigned to new accounts.
	DefaultAvatarURL string

	// GuestAvatarURL is assigned to guest sign-ins.
	GuestAvatarURL string

	// DefaultBanner is the profile banner color for new accounts.
	DefaultBanner string

	// GuestName is the display name for guest sign-ins.
	GuestName string
}

func (o Options) withDefaults() Options {
	if o.DefaultServerID == "" {
		o.DefaultServerID = DefaultServerID
	}
	if o.DefaultAvatarURL == "" {
		o.DefaultAvatarURL = defaultAvatarURL
	}
	if o.GuestAvatarURL == "" {
		o.GuestAvatarURL = o.DefaultAvatarURL
	}
	if o.DefaultBanner == "" {
		o.DefaultBanner = defaultBanner
	}
	if o.GuestName == "" {
		o.GuestName = guestName
	}
	return o
}

// Client is the facade over the backend services.  It is constructed with its
// collaborators injected rather than reaching for package-level handles, so
// callers (and tests) control exactly which backends it talks to.
type Client struct {
	db     Database
	auth   Authenticator
	images ImageStore
	opts   Options

	mu      sync.Mutex
	session *authlayer.Session

	// uploads supervises background message-image uploads.  See
	// Client.Close.
	uploads errgroup.Group

	now func() time.Time
}

// New creates a Client over the given backends.
func New(db Database, auth Authenticator, images ImageStore, opts Options) *Client {
	return &Client{
		db:     db,
		auth:   auth,
		images: images,
		opts:   opts.withDefaults(),
		now:    time.Now,
	}
}

// Close waits for background uploads to drain and reports the first upload
// failure, if any.
func (c *Client) Close() error {
	return c.uploads.Wait()
}

// CurrentUser returns a copy of the active session, or nil if no user is
// signed in.
func (c *Client) CurrentUser() *authlayer.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	session := *c.session
	return &session
}

func (c *Client) setSession(session *authlayer.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = session
}

// currentSession returns a copy of the active session, or ErrNotSignedIn.
func (c *Client) currentSession() (*authlayer.Session, error) {
	session := c.CurrentUser()
	if session == nil {
		return nil, ErrNotSignedIn
	}
	return session, nil
}
