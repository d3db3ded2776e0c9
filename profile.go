package banter

import (
	"context"
	"fmt"
	"io"

	"banter/dbtypes"

	"cloud.google.com/go/firestore"
)

// userProfileUpdates diffs the mutable profile attributes of two user
// snapshots and returns one targeted update per attribute that changed.
// Unchanged attributes generate no writes.
func userProfileUpdates(newUser, oldUser *dbtypes.User) []firestore.Update {
	var updates []firestore.Update
	if newUser.Avatar != oldUser.Avatar {
		updates = append(updates, firestore.Update{Path: "avatar", Value: newUser.Avatar})
	}
	if newUser.Banner != oldUser.Banner {
		updates = append(updates, firestore.Update{Path: "banner", Value: newUser.Banner})
	}
	if newUser.About != oldUser.About {
		updates = append(updates, firestore.Update{Path: "about", Value: newUser.About})
	}
	return updates
}

// SaveUserProfileChanges reconciles the signed-in user's document with an
// edited profile snapshot, writing only the fields that differ from the old
// snapshot.  An avatar change is also pushed to the auth record so the
// account's photo URL stays in sync.
//
// The diff trusts the caller's snapshots; nothing is re-read from the
// database first, so concurrent edits are last-writer-wins per field.
func (c *Client) SaveUserProfileChanges(ctx context.Context, newUser, oldUser *dbtypes.User) error {
	session, err := c.currentSession()
	if err != nil {
		return err
	}

	for _, update := range userProfileUpdates(newUser, oldUser) {
		if err := c.db.UpdateUser(ctx, session.UID, []firestore.Update{update}); err != nil {
			return fmt.Errorf("while writing profile field %q: %w", update.Path, err)
		}
	}

	if newUser.Avatar != oldUser.Avatar {
		if err := c.auth.UpdateProfile(ctx, session.IDToken, "", newUser.Avatar); err != nil {
			return fmt.Errorf("while updating auth profile photo: %w", err)
		}
	}

	return nil
}

// UpdateUserField sets a single field on the signed-in user's document.
func (c *Client) UpdateUserField(ctx context.Context, property string, value interface{}) error {
	session, err := c.currentSession()
	if err != nil {
		return err
	}

	if err := c.db.UpdateUser(ctx, session.UID, []firestore.Update{{Path: property, Value: value}}); err != nil {
		return fmt.Errorf("while updating user field %q: %w", property, err)
	}

	return nil
}

// UploadAvatarPreview uploads an avatar image to the signed-in user's
// preview slot and returns its URL.  Nothing is persisted to the user
// document; the preview is for client-side display before the user commits
// the change.
func (c *Client) UploadAvatarPreview(ctx context.Context, r io.Reader) (string, error) {
	session, err := c.currentSession()
	if err != nil {
		return "", err
	}
	return c.images.UploadAvatarPreview(ctx, session.UID, r)
}

// SaveAvatar uploads an avatar image to the signed-in user's permanent path
// and persists the resulting URL into both the user document and the auth
// record.
func (c *Client) SaveAvatar(ctx context.Context, r io.Reader) (string, error) {
	session, err := c.currentSession()
	if err != nil {
		return "", err
	}

	avatarURL, err := c.images.UploadAvatar(ctx, session.UID, r)
	if err != nil {
		return "", fmt.Errorf("while uploading avatar: %w", err)
	}

	if err := c.db.UpdateUser(ctx, session.UID, []firestore.Update{{Path: "avatar", Value: avatarURL}}); err != nil {
		return "", fmt.Errorf("while persisting avatar URL: %w", err)
	}

	if err := c.auth.UpdateProfile(ctx, session.IDToken, "", avatarURL); err != nil {
		return "", fmt.Errorf("while updating auth profile photo: %w", err)
	}

	return avatarURL, nil
}
