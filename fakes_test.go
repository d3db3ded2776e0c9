package banter

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"time"

	"banter/authlayer"
	"banter/dbtypes"

	"cloud.google.com/go/firestore"
)

// fakeDB is an in-memory Database that records every partial update it is
// asked to perform, so tests can assert exactly which writes an operation
// issued.
type fakeDB struct {
	users       map[string]*dbtypes.User
	servers     map[string]*dbtypes.Server
	channels    map[string][]*dbtypes.Channel
	members     map[string]*dbtypes.Member
	serverIndex map[string]bool
	messages    map[string]*dbtypes.Message

	userUpdates    map[string][][]firestore.Update
	serverUpdates  map[string][][]firestore.Update
	memberUpdates  map[string][][]firestore.Update
	messageUpdates map[string][][]firestore.Update

	createUserErr error

	nextID int
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		users:          map[string]*dbtypes.User{},
		servers:        map[string]*dbtypes.Server{},
		channels:       map[string][]*dbtypes.Channel{},
		members:        map[string]*dbtypes.Member{},
		serverIndex:    map[string]bool{},
		messages:       map[string]*dbtypes.Message{},
		userUpdates:    map[string][][]firestore.Update{},
		serverUpdates:  map[string][][]firestore.Update{},
		memberUpdates:  map[string][][]firestore.Update{},
		messageUpdates: map[string][][]firestore.Update{},
	}
}

func (f *fakeDB) genID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%04d", prefix, f.nextID)
}

func (f *fakeDB) CreateUser(ctx context.Context, uid string, user *dbtypes.User) error {
	if f.createUserErr != nil {
		return f.createUserErr
	}
	stored := *user
	stored.ID = uid
	f.users[uid] = &stored
	return nil
}

func (f *fakeDB) UpdateUser(ctx context.Context, uid string, updates []firestore.Update) error {
	f.userUpdates[uid] = append(f.userUpdates[uid], updates)
	return nil
}

func (f *fakeDB) CreateServer(ctx context.Context, server *dbtypes.Server) (string, error) {
	id := f.genID("srv")
	stored := *server
	stored.ID = id
	f.servers[id] = &stored
	server.ID = id
	return id, nil
}

func (f *fakeDB) GetServer(ctx context.Context, serverID string) (*dbtypes.Server, bool, error) {
	server, ok := f.servers[serverID]
	if !ok {
		return nil, false, nil
	}
	copied := *server
	return &copied, true, nil
}

func (f *fakeDB) UpdateServer(ctx context.Context, serverID string, updates []firestore.Update) error {
	server, ok := f.servers[serverID]
	if !ok {
		return fmt.Errorf("no server %q", serverID)
	}
	f.serverUpdates[serverID] = append(f.serverUpdates[serverID], updates)
	for _, update := range updates {
		switch update.Path {
		case "name":
			server.Name = update.Value.(string)
		case "img":
			server.Img = update.Value.(string)
		case "defaultChannel":
			server.DefaultChannel = update.Value.(string)
		case "contentFilter":
			server.ContentFilter = update.Value.(string)
		case "roles":
			server.Roles = update.Value.([]*dbtypes.Role)
		}
	}
	return nil
}

func (f *fakeDB) AddChannel(ctx context.Context, serverID string, channel *dbtypes.Channel) (string, error) {
	id := f.genID("chn")
	stored := *channel
	stored.ID = id
	f.channels[serverID] = append(f.channels[serverID], &stored)
	return id, nil
}

func (f *fakeDB) PutMember(ctx context.Context, serverID, userID string, member *dbtypes.Member) error {
	stored := *member
	f.members[serverID+"/"+userID] = &stored
	return nil
}

func (f *fakeDB) UpdateMember(ctx context.Context, serverID, userID string, updates []firestore.Update) error {
	member, ok := f.members[serverID+"/"+userID]
	if !ok {
		return fmt.Errorf("no member %q in server %q", userID, serverID)
	}
	f.memberUpdates[serverID+"/"+userID] = append(f.memberUpdates[serverID+"/"+userID], updates)
	for _, update := range updates {
		switch update.Path {
		case "serverOwner":
			member.ServerOwner = update.Value.(bool)
		case "roles":
			if update.Value == firestore.Delete {
				member.Roles = nil
			} else {
				member.Roles = update.Value.([]string)
			}
		}
	}
	return nil
}

func (f *fakeDB) PutUserServerIndex(ctx context.Context, userID, serverID string) error {
	f.serverIndex[userID+"/"+serverID] = true
	return nil
}

func (f *fakeDB) AddMessage(ctx context.Context, serverID, channelID string, message *dbtypes.Message) (string, error) {
	id := f.genID("msg")
	stored := *message
	stored.ID = id
	f.messages[serverID+"/"+channelID+"/"+id] = &stored
	return id, nil
}

func (f *fakeDB) UpdateMessage(ctx context.Context, serverID, channelID, messageID string, updates []firestore.Update) error {
	message, ok := f.messages[serverID+"/"+channelID+"/"+messageID]
	if !ok {
		return fmt.Errorf("no message %q", messageID)
	}
	f.messageUpdates[serverID+"/"+channelID+"/"+messageID] = append(f.messageUpdates[serverID+"/"+channelID+"/"+messageID], updates)
	for _, update := range updates {
		if update.Path == "image" {
			message.Image = update.Value.(string)
		}
	}
	return nil
}

type profileCall struct {
	idToken     string
	displayName string
	photoURL    string
}

type emailCall struct {
	idToken string
	email   string
}

// fakeAuth is an in-memory Authenticator.
type fakeAuth struct {
	uids      map[string]string
	passwords map[string]string

	profileCalls []profileCall
	emailCalls   []emailCall
	signInCalls  int

	signUpErr error

	nextUID int
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		uids:      map[string]string{},
		passwords: map[string]string{},
	}
}

func (f *fakeAuth) genSession(email string) *authlayer.Session {
	f.nextUID++
	uid := fmt.Sprintf("user%02d", f.nextUID)
	if email != "" {
		f.uids[email] = uid
	}
	return &authlayer.Session{
		UID:     uid,
		Email:   email,
		IDToken: "token-" + uid,
		Expires: time.Now().Add(time.Hour),
	}
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password string) (*authlayer.Session, error) {
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	if _, exists := f.uids[email]; exists {
		return nil, authlayer.ErrEmailExists
	}
	f.passwords[email] = password
	return f.genSession(email), nil
}

func (f *fakeAuth) SignUpAnonymous(ctx context.Context) (*authlayer.Session, error) {
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	return f.genSession(""), nil
}

func (f *fakeAuth) SignInWithPassword(ctx context.Context, email, password string) (*authlayer.Session, error) {
	f.signInCalls++
	want, ok := f.passwords[email]
	if !ok {
		return nil, authlayer.ErrEmailNotFound
	}
	if want != password {
		return nil, authlayer.ErrInvalidPassword
	}
	return &authlayer.Session{
		UID:     f.uids[email],
		Email:   email,
		IDToken: "fresh-token-" + f.uids[email],
		Expires: time.Now().Add(time.Hour),
	}, nil
}

func (f *fakeAuth) UpdateProfile(ctx context.Context, idToken, displayName, photoURL string) error {
	f.profileCalls = append(f.profileCalls, profileCall{idToken, displayName, photoURL})
	return nil
}

func (f *fakeAuth) UpdateEmail(ctx context.Context, idToken, email string) error {
	f.emailCalls = append(f.emailCalls, emailCall{idToken, email})
	return nil
}

// fakeImages is an in-memory ImageStore keyed by object path.
type fakeImages struct {
	uploads map[string][]byte

	uploadErr error
}

func newFakeImages() *fakeImages {
	return &fakeImages{uploads: map[string][]byte{}}
}

func (f *fakeImages) upload(object string, r io.Reader) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.uploads[object] = data
	return "https://img.example/" + object, nil
}

func (f *fakeImages) UploadAvatar(ctx context.Context, userID string, r io.Reader) (string, error) {
	return f.upload("users/"+userID+"/avatar", r)
}

func (f *fakeImages) UploadAvatarPreview(ctx context.Context, userID string, r io.Reader) (string, error) {
	return f.upload("temp/"+userID+"/avatar", r)
}

func (f *fakeImages) UploadServerImage(ctx context.Context, serverID string, r io.Reader) (string, error) {
	return f.upload("servers/"+serverID+"/image", r)
}

func (f *fakeImages) UploadServerImagePreview(ctx context.Context, userID string, r io.Reader) (string, error) {
	return f.upload("temp/"+userID+"/serverImage", r)
}

func (f *fakeImages) UploadMessageImage(ctx context.Context, serverID, messageID, filename string, r io.Reader) (string, error) {
	return f.upload("servers/"+serverID+"/messages/"+messageID+"/"+filename, r)
}

// updateRecord is a comparable projection of firestore.Update for use with
// cmp.Diff in assertions.
type updateRecord struct {
	Path  string
	Value interface{}
}

func recordUpdates(batches [][]firestore.Update) [][]updateRecord {
	var records [][]updateRecord
	for _, batch := range batches {
		var record []updateRecord
		for _, update := range batch {
			record = append(record, updateRecord{update.Path, update.Value})
		}
		records = append(records, record)
	}
	return records
}

// newTestClient wires a Client over fresh fakes, with the default server
// pre-seeded so join flows can succeed, and a fixed clock.
func newTestClient() (*Client, *fakeDB, *fakeAuth, *fakeImages) {
	db := newFakeDB()
	db.servers[DefaultServerID] = &dbtypes.Server{
		ID:   DefaultServerID,
		Name: "global chat",
	}

	auth := newFakeAuth()
	images := newFakeImages()

	client := New(db, auth, images, Options{})
	client.now = func() time.Time { return time.Unix(1700000000, 0).UTC() }

	return client, db, auth, images
}

// signInTestUser puts a ready-made session on the client without running a
// sign-up flow.
func signInTestUser(client *Client, uid, email string) *authlayer.Session {
	session := &authlayer.Session{
		UID:     uid,
		Email:   email,
		IDToken: "token-" + uid,
	}
	client.setSession(session)
	return session
}
