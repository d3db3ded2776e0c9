// Package dblayer packages up most actual firestore accesses.
//
// Documents are laid out as:
//
//	users/{uid}
//	users/{uid}/servers/{sid}
//	servers/{sid}
//	servers/{sid}/channels/{cid}
//	servers/{sid}/channels/{cid}/messages/{mid}
//	servers/{sid}/members/{uid}
//
// Each write here is atomic only for its own target document.  Flows that
// touch several documents are sequenced by the caller and have no cross-step
// atomicity.
package dblayer

import (
	"context"
	"fmt"

	"banter/dbtypes"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type DB struct {
	firestoreClient *firestore.Client
}

func New(firestoreClient *firestore.Client) *DB {
	return &DB{
		firestoreClient: firestoreClient,
	}
}

// CreateUser writes the profile document for uid, overwriting any existing
// profile.
func (db *DB) CreateUser(ctx context.Context, uid string, user *dbtypes.User) error {
	if _, err := db.firestoreClient.Collection("users").Doc(uid).Set(ctx, user); err != nil {
		return fmt.Errorf("while writing user %q: %w", uid, err)
	}
	return nil
}

// GetUser retrieves the profile document for uid.
//
// Returns the user, a "found" indicator, and an error.
func (db *DB) GetUser(ctx context.Context, uid string) (*dbtypes.User, bool, error) {
	docSnap, err := db.firestoreClient.Collection("users").Doc(uid).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("while retrieving user %q: %w", uid, err)
	}

	user := &dbtypes.User{}
	if err := docSnap.DataTo(user); err != nil {
		return nil, false, fmt.Errorf("while unmarshaling user %q: %w", uid, err)
	}
	user.ID = docSnap.Ref.ID

	return user, true, nil
}

func (db *DB) UpdateUser(ctx context.Context, uid string, updates []firestore.Update) error {
	if _, err := db.firestoreClient.Collection("users").Doc(uid).Update(ctx, updates); err != nil {
		return fmt.Errorf("while updating user %q: %w", uid, err)
	}
	return nil
}

// CreateServer creates a server document under a generated ID and returns
// that ID.
func (db *DB) CreateServer(ctx context.Context, server *dbtypes.Server) (string, error) {
	newServerRef := db.firestoreClient.Collection("servers").NewDoc()
	server.ID = newServerRef.ID
	if _, err := newServerRef.Create(ctx, server); err != nil {
		return "", fmt.Errorf("while creating server: %w", err)
	}
	return newServerRef.ID, nil
}

// GetServer retrieves the server document for serverID.
//
// Returns the server, a "found" indicator, and an error.
func (db *DB) GetServer(ctx context.Context, serverID string) (*dbtypes.Server, bool, error) {
	docSnap, err := db.firestoreClient.Collection("servers").Doc(serverID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("while retrieving server %q: %w", serverID, err)
	}

	server := &dbtypes.Server{}
	if err := docSnap.DataTo(server); err != nil {
		return nil, false, fmt.Errorf("while unmarshaling server %q: %w", serverID, err)
	}
	server.ID = docSnap.Ref.ID

	return server, true, nil
}

func (db *DB) UpdateServer(ctx context.Context, serverID string, updates []firestore.Update) error {
	if _, err := db.firestoreClient.Collection("servers").Doc(serverID).Update(ctx, updates); err != nil {
		return fmt.Errorf("while updating server %q: %w", serverID, err)
	}
	return nil
}

// AddChannel appends a channel to the server's channel sub-collection and
// returns the generated channel ID.
func (db *DB) AddChannel(ctx context.Context, serverID string, channel *dbtypes.Channel) (string, error) {
	channels := db.firestoreClient.Collection("servers").Doc(serverID).Collection("channels")
	newChannelRef := channels.NewDoc()
	channel.ID = newChannelRef.ID
	if _, err := newChannelRef.Create(ctx, channel); err != nil {
		return "", fmt.Errorf("while creating channel in server %q: %w", serverID, err)
	}
	return newChannelRef.ID, nil
}

// ListChannels returns every channel of a server.
func (db *DB) ListChannels(ctx context.Context, serverID string) ([]*dbtypes.Channel, error) {
	channels := []*dbtypes.Channel{}

	chanIter := db.firestoreClient.Collection("servers").Doc(serverID).Collection("channels").Documents(ctx)
	defer chanIter.Stop()
	for {
		chanSnapshot, err := chanIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while listing channels of server %q: %w", serverID, err)
		}

		channel := &dbtypes.Channel{}
		if err := chanSnapshot.DataTo(channel); err != nil {
			return nil, fmt.Errorf("while unmarshaling channel %q: %w", chanSnapshot.Ref.ID, err)
		}
		channel.ID = chanSnapshot.Ref.ID
		channels = append(channels, channel)
	}

	return channels, nil
}

// PutMember writes the forward half of the membership relation
// (servers/{sid}/members/{uid}).
func (db *DB) PutMember(ctx context.Context, serverID, userID string, member *dbtypes.Member) error {
	memberRef := db.firestoreClient.Collection("servers").Doc(serverID).Collection("members").Doc(userID)
	if _, err := memberRef.Set(ctx, member); err != nil {
		return fmt.Errorf("while writing member %q of server %q: %w", userID, serverID, err)
	}
	return nil
}

func (db *DB) UpdateMember(ctx context.Context, serverID, userID string, updates []firestore.Update) error {
	memberRef := db.firestoreClient.Collection("servers").Doc(serverID).Collection("members").Doc(userID)
	if _, err := memberRef.Update(ctx, updates); err != nil {
		return fmt.Errorf("while updating member %q of server %q: %w", userID, serverID, err)
	}
	return nil
}

// PutUserServerIndex writes the reverse half of the membership relation
// (users/{uid}/servers/{sid}), an empty placeholder document that makes a
// user's servers queryable without scanning every server.
func (db *DB) PutUserServerIndex(ctx context.Context, userID, serverID string) error {
	indexRef := db.firestoreClient.Collection("users").Doc(userID).Collection("servers").Doc(serverID)
	if _, err := indexRef.Set(ctx, map[string]interface{}{}); err != nil {
		return fmt.Errorf("while writing server index %q for user %q: %w", serverID, userID, err)
	}
	return nil
}

// ListMemberServerIDs returns the IDs of every server the user is a member
// of, read from the reverse-lookup index.
func (db *DB) ListMemberServerIDs(ctx context.Context, userID string) ([]string, error) {
	serverIDs := []string{}

	indexIter := db.firestoreClient.Collection("users").Doc(userID).Collection("servers").Documents(ctx)
	defer indexIter.Stop()
	for {
		indexSnapshot, err := indexIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while listing servers of user %q: %w", userID, err)
		}

		serverIDs = append(serverIDs, indexSnapshot.Ref.ID)
	}

	return serverIDs, nil
}

// AddMessage appends a message to a channel's message sub-collection and
// returns the generated message ID.
func (db *DB) AddMessage(ctx context.Context, serverID, channelID string, message *dbtypes.Message) (string, error) {
	messages := db.firestoreClient.Collection("servers").Doc(serverID).Collection("channels").Doc(channelID).Collection("messages")
	newMessageRef := messages.NewDoc()
	message.ID = newMessageRef.ID
	if _, err := newMessageRef.Create(ctx, message); err != nil {
		return "", fmt.Errorf("while creating message in channel %q of server %q: %w", channelID, serverID, err)
	}
	return newMessageRef.ID, nil
}

func (db *DB) UpdateMessage(ctx context.Context, serverID, channelID, messageID string, updates []firestore.Update) error {
	messageRef := db.firestoreClient.Collection("servers").Doc(serverID).Collection("channels").Doc(channelID).Collection("messages").Doc(messageID)
	if _, err := messageRef.Update(ctx, updates); err != nil {
		return fmt.Errorf("while updating message %q: %w", messageID, err)
	}
	return nil
}

// ListMessages returns a channel's messages in creation order.
func (db *DB) ListMessages(ctx context.Context, serverID, channelID string) ([]*dbtypes.Message, error) {
	messages := []*dbtypes.Message{}

	query := db.firestoreClient.Collection("servers").Doc(serverID).Collection("channels").Doc(channelID).Collection("messages").OrderBy("timestamp", firestore.Asc)
	msgIter := query.Documents(ctx)
	defer msgIter.Stop()
	for {
		msgSnapshot, err := msgIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while listing messages of channel %q: %w", channelID, err)
		}

		message := &dbtypes.Message{}
		if err := msgSnapshot.DataTo(message); err != nil {
			return nil, fmt.Errorf("while unmarshaling message %q: %w", msgSnapshot.Ref.ID, err)
		}
		message.ID = msgSnapshot.Ref.ID
		messages = append(messages, message)
	}

	return messages, nil
}
