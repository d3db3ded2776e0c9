package banter

import (
	"context"
	"fmt"
	"io"
	"reflect"

	"banter/dbtypes"

	"cloud.google.com/go/firestore"
)

// JoinServer makes the signed-in user a member of the server, writing both
// halves of the membership relation: the forward record under
// servers/{sid}/members and the reverse-lookup index under
// users/{uid}/servers.  A user is a member if and only if both exist.
//
// Returns ErrServerNotFound if the server does not exist; no membership
// record is written in that case.  The two halves are separate writes, so a
// crash between them can leave the relation half-written.
func (c *Client) JoinServer(ctx context.Context, serverID string) error {
	session, err := c.currentSession()
	if err != nil {
		return err
	}

	_, found, err := c.db.GetServer(ctx, serverID)
	if err != nil {
		return fmt.Errorf("while checking server %q: %w", serverID, err)
	}
	if !found {
		return ErrServerNotFound
	}

	if err := c.db.PutMember(ctx, serverID, session.UID, &dbtypes.Member{}); err != nil {
		return fmt.Errorf("while writing membership record: %w", err)
	}
	if err := c.db.PutUserServerIndex(ctx, session.UID, serverID); err != nil {
		return fmt.Errorf("while writing reverse membership index: %w", err)
	}

	return nil
}

// CreateServer creates a server with default settings, an optional image, a
// default "general" text channel, and the creator joined as owner.  Returns
// the new server's ID.
//
// This is six dependent writes with no compensation: a failure after the
// server document is created leaves a partially wired server behind.
func (c *Client) CreateServer(ctx context.Context, name, ownerID string, image io.Reader) (string, error) {
	server := &dbtypes.Server{
		Name:          name,
		IsPublic:      false,
		ContentFilter: "off",
		Roles:         []*dbtypes.Role{},
	}
	serverID, err := c.db.CreateServer(ctx, server)
	if err != nil {
		return "", fmt.Errorf("while creating server document: %w", err)
	}

	if image != nil {
		imageURL, err := c.images.UploadServerImage(ctx, serverID, image)
		if err != nil {
			return "", fmt.Errorf("while uploading server image: %w", err)
		}
		if err := c.db.UpdateServer(ctx, serverID, []firestore.Update{{Path: "img", Value: imageURL}}); err != nil {
			return "", fmt.Errorf("while persisting server image URL: %w", err)
		}
	}

	channelID, err := c.CreateChannel(ctx, serverID, "general", "text")
	if err != nil {
		return "", fmt.Errorf("while creating default channel: %w", err)
	}

	if err := c.UpdateDefaultChannel(ctx, serverID, channelID); err != nil {
		return "", err
	}

	if err := c.db.PutMember(ctx, serverID, ownerID, &dbtypes.Member{}); err != nil {
		return "", fmt.Errorf("while joining creator to server: %w", err)
	}
	if err := c.db.PutUserServerIndex(ctx, ownerID, serverID); err != nil {
		return "", fmt.Errorf("while writing creator's membership index: %w", err)
	}

	if err := c.SetServerOwner(ctx, serverID, ownerID); err != nil {
		return "", err
	}

	return serverID, nil
}

// CreateChannel appends a channel to the server and returns its ID.
func (c *Client) CreateChannel(ctx context.Context, serverID, name, channelType string) (string, error) {
	channelID, err := c.db.AddChannel(ctx, serverID, &dbtypes.Channel{Name: name, Type: channelType})
	if err != nil {
		return "", fmt.Errorf("while creating channel %q: %w", name, err)
	}
	return channelID, nil
}

// SetServerOwner flags a member as the server's owner.
func (c *Client) SetServerOwner(ctx context.Context, serverID, userID string) error {
	updates := []firestore.Update{{Path: "serverOwner", Value: true}}
	if err := c.db.UpdateMember(ctx, serverID, userID, updates); err != nil {
		return fmt.Errorf("while flagging server owner: %w", err)
	}
	return nil
}

// UpdateDefaultChannel points the server's defaultChannel at channelID.
func (c *Client) UpdateDefaultChannel(ctx context.Context, serverID, channelID string) error {
	updates := []firestore.Update{{Path: "defaultChannel", Value: channelID}}
	if err := c.db.UpdateServer(ctx, serverID, updates); err != nil {
		return fmt.Errorf("while setting default channel: %w", err)
	}
	return nil
}

// serverUpdates diffs the mutable attributes of two server snapshots and
// returns one targeted update per attribute that changed.  The role list is
// compared and rewritten as a whole.
func serverUpdates(newServer, oldServer *dbtypes.Server) []firestore.Update {
	var updates []firestore.Update
	if newServer.Img != oldServer.Img {
		updates = append(updates, firestore.Update{Path: "img", Value: newServer.Img})
	}
	if newServer.Name != oldServer.Name {
		updates = append(updates, firestore.Update{Path: "name", Value: newServer.Name})
	}
	if !reflect.DeepEqual(newServer.Roles, oldServer.Roles) {
		updates = append(updates, firestore.Update{Path: "roles", Value: newServer.Roles})
	}
	if newServer.ContentFilter != oldServer.ContentFilter {
		updates = append(updates, firestore.Update{Path: "contentFilter", Value: newServer.ContentFilter})
	}
	return updates
}

// SaveServerChanges reconciles a server document with an edited snapshot,
// writing only the fields that differ from the old snapshot.  Like
// SaveUserProfileChanges, it trusts the caller's snapshots.
func (c *Client) SaveServerChanges(ctx context.Context, newServer, oldServer *dbtypes.Server) error {
	for _, update := range serverUpdates(newServer, oldServer) {
		if err := c.db.UpdateServer(ctx, newServer.ID, []firestore.Update{update}); err != nil {
			return fmt.Errorf("while writing server field %q: %w", update.Path, err)
		}
	}
	return nil
}

// newServerRole builds the default role appended by CreateServerRole.  Its
// sort index is the current role count, placing it last.
func newServerRole(existing []*dbtypes.Role, roleID string) *dbtypes.Role {
	return &dbtypes.Role{
		RoleID:          roleID,
		Name:            "new role",
		Color:           "#99aab5",
		SeparateDisplay: false,
		Sort:            int64(len(existing)),
		ManageChannels:  false,
		ManageRoles:     false,
		ManageServer:    false,
	}
}

// CreateServerRole appends a role with default settings to the server's role
// list.  Firestore stores the list as a single field, so the whole list is
// rewritten; two concurrent appends are last-writer-wins.
func (c *Client) CreateServerRole(ctx context.Context, server *dbtypes.Server, newRoleID string) error {
	roles := append(append([]*dbtypes.Role{}, server.Roles...), newServerRole(server.Roles, newRoleID))

	updates := []firestore.Update{{Path: "roles", Value: roles}}
	if err := c.db.UpdateServer(ctx, server.ID, updates); err != nil {
		return fmt.Errorf("while appending server role: %w", err)
	}

	return nil
}

// memberRoleUpdates builds the write for a member's assigned roles.  An
// empty list deletes the field outright rather than writing an empty list,
// so "no roles assigned" and "roles field present but empty" stay
// distinguishable in storage.
func memberRoleUpdates(roleIDs []string) []firestore.Update {
	if len(roleIDs) == 0 {
		return []firestore.Update{{Path: "roles", Value: firestore.Delete}}
	}
	return []firestore.Update{{Path: "roles", Value: roleIDs}}
}

// SetServerRole sets a member's assigned role list.
func (c *Client) SetServerRole(ctx context.Context, serverID, userID string, roleIDs []string) error {
	if err := c.db.UpdateMember(ctx, serverID, userID, memberRoleUpdates(roleIDs)); err != nil {
		return fmt.Errorf("while setting member roles: %w", err)
	}
	return nil
}

// UploadServerImagePreview uploads a server image to the signed-in user's
// preview slot and returns its URL.
func (c *Client) UploadServerImagePreview(ctx context.Context, r io.Reader) (string, error) {
	session, err := c.currentSession()
	if err != nil {
		return "", err
	}
	return c.images.UploadServerImagePreview(ctx, session.UID, r)
}

// SaveServerImage uploads a server's image to its permanent path and
// persists the resulting URL into the server document.
func (c *Client) SaveServerImage(ctx context.Context, serverID string, r io.Reader) (string, error) {
	imageURL, err := c.images.UploadServerImage(ctx, serverID, r)
	if err != nil {
		return "", fmt.Errorf("while uploading server image: %w", err)
	}

	if err := c.db.UpdateServer(ctx, serverID, []firestore.Update{{Path: "img", Value: imageURL}}); err != nil {
		return "", fmt.Errorf("while persisting server image URL: %w", err)
	}

	return imageURL, nil
}
