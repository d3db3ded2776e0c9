package banter

import (
	"context"
	"fmt"
	"io"

	"banter/dbtypes"

	"cloud.google.com/go/firestore"
	"github.com/golang/glog"
)

// messageDateFormat mirrors the date strings the web client renders.
const messageDateFormat = "Mon Jan 02 2006"

func (c *Client) newMessage(userID string) *dbtypes.Message {
	now := c.now()
	return &dbtypes.Message{
		UserID:    userID,
		Date:      now.Format(messageDateFormat),
		Timestamp: now.UnixMilli(),
		Edited:    false,
		Reactions: []*dbtypes.Reaction{},
	}
}

// CreateMessage appends a text message to a channel and returns its ID.
//
// If image is non-nil, the attachment is uploaded in the background, keyed by
// the new message's ID, and the message document is patched with the image
// URL once the upload resolves.  The message is therefore visible before its
// image; readers must tolerate the image field being briefly empty.  Upload
// failures are logged and surface through Client.Close.
func (c *Client) CreateMessage(ctx context.Context, serverID, channelID, userID, content string, image io.Reader, imageName string) (string, error) {
	message := c.newMessage(userID)
	message.Content = content

	messageID, err := c.db.AddMessage(ctx, serverID, channelID, message)
	if err != nil {
		return "", fmt.Errorf("while creating message: %w", err)
	}

	if image != nil {
		// The upload outlives the caller's request context.
		uploadCtx := context.WithoutCancel(ctx)
		c.uploads.Go(func() error {
			if err := c.UploadMessageImage(uploadCtx, serverID, channelID, messageID, imageName, image); err != nil {
				glog.Errorf("Background image upload for message %s failed: %v", messageID, err)
				return err
			}
			return nil
		})
	}

	return messageID, nil
}

// CreateGifMessage appends a message carrying an external video URL instead
// of text content or an uploaded image.
func (c *Client) CreateGifMessage(ctx context.Context, serverID, channelID, userID, videoURL string) (string, error) {
	message := c.newMessage(userID)
	message.Video = videoURL

	messageID, err := c.db.AddMessage(ctx, serverID, channelID, message)
	if err != nil {
		return "", fmt.Errorf("while creating gif message: %w", err)
	}

	return messageID, nil
}

// UploadMessageImage uploads a message attachment and patches the message
// document's image field with the resolved URL.
func (c *Client) UploadMessageImage(ctx context.Context, serverID, channelID, messageID, filename string, r io.Reader) error {
	imageURL, err := c.images.UploadMessageImage(ctx, serverID, messageID, filename, r)
	if err != nil {
		return fmt.Errorf("while uploading message image: %w", err)
	}

	updates := []firestore.Update{{Path: "image", Value: imageURL}}
	if err := c.db.UpdateMessage(ctx, serverID, channelID, messageID, updates); err != nil {
		return fmt.Errorf("while patching message image URL: %w", err)
	}

	return nil
}
