// bantertool is a utility program for poking at banter's backend data:
// creating accounts and servers, joining servers, and posting messages.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"banter"
	"banter/authlayer"
	"banter/dblayer"
	"banter/imagestore"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/golang/glog"
)

var (
	dataProject  = flag.String("data-project", "", "GCP project that contains the application state.")
	imageBucket  = flag.String("image-bucket", "", "GCS bucket that holds uploaded images.")
	identityHost = flag.String("identity-host", authlayer.DefaultBaseURL, "Base URL of the Identity Toolkit API.")
	apiKey       = flag.String("api-key", "", "Identity Toolkit API key.")

	email    = flag.String("email", "", "Account email.")
	password = flag.String("password", "", "Account password.")
	username = flag.String("username", "", "Display name for create-account.")

	serverName = flag.String("server-name", "", "Name for create-server.")
	serverID   = flag.String("server", "", "Server ID for join-server, post-message, and list verbs.")
	channelID  = flag.String("channel", "", "Channel ID for post-message and list-messages.")
	content    = flag.String("content", "", "Message text for post-message.")
	userID     = flag.String("user", "", "User ID for show-user and list-servers.")
)

func main() {
	flag.Parse()

	glog.Infof("flags:")
	glog.Infof("data-project: %v", *dataProject)
	glog.Infof("image-bucket: %v", *imageBucket)
	glog.Infof("identity-host: %v", *identityHost)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := do(ctx, flag.Arg(0)); err != nil {
		glog.Exitf("Error: %v", err)
	}

	glog.Flush()
}

func do(ctx context.Context, verb string) error {
	fstore, err := firestore.NewClient(ctx, *dataProject)
	if err != nil {
		return fmt.Errorf("while creating FireStore client: %w", err)
	}

	gcs, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("while creating GCS client: %w", err)
	}

	db := dblayer.New(fstore)

	client := banter.New(
		db,
		authlayer.New(http.DefaultClient, *identityHost, *apiKey),
		imagestore.New(gcs, *imageBucket),
		banter.Options{},
	)
	defer func() {
		if err := client.Close(); err != nil {
			glog.Errorf("Background upload failed: %v", err)
		}
	}()

	switch verb {
	case "create-account":
		if err := client.CreateAccount(ctx, *email, *password, *username); err != nil {
			return fmt.Errorf("while creating account: %w", err)
		}
		fmt.Fprintf(os.Stdout, "created account for %s\n", *email)
		return nil

	case "create-server":
		if err := signIn(ctx, client); err != nil {
			return err
		}
		id, err := client.CreateServer(ctx, *serverName, client.CurrentUser().UID, nil)
		if err != nil {
			return fmt.Errorf("while creating server: %w", err)
		}
		fmt.Fprintf(os.Stdout, "created server %s\n", id)
		return nil

	case "join-server":
		if err := signIn(ctx, client); err != nil {
			return err
		}
		if err := client.JoinServer(ctx, *serverID); err != nil {
			return fmt.Errorf("while joining server: %w", err)
		}
		fmt.Fprintf(os.Stdout, "joined server %s\n", *serverID)
		return nil

	case "post-message":
		if err := signIn(ctx, client); err != nil {
			return err
		}
		id, err := client.CreateMessage(ctx, *serverID, *channelID, client.CurrentUser().UID, *content, nil, "")
		if err != nil {
			return fmt.Errorf("while posting message: %w", err)
		}
		fmt.Fprintf(os.Stdout, "posted message %s\n", id)
		return nil

	case "show-user":
		user, found, err := db.GetUser(ctx, *userID)
		if err != nil {
			return fmt.Errorf("while retrieving user: %w", err)
		}
		if !found {
			return fmt.Errorf("no user %q", *userID)
		}
		fmt.Fprintf(os.Stdout, "%s#%s <%s> %q\n", user.Username, user.Tag, user.Email, user.About)
		return nil

	case "list-servers":
		serverIDs, err := db.ListMemberServerIDs(ctx, *userID)
		if err != nil {
			return fmt.Errorf("while listing servers: %w", err)
		}
		for _, id := range serverIDs {
			fmt.Fprintln(os.Stdout, id)
		}
		return nil

	case "list-channels":
		channels, err := db.ListChannels(ctx, *serverID)
		if err != nil {
			return fmt.Errorf("while listing channels: %w", err)
		}
		for _, channel := range channels {
			fmt.Fprintf(os.Stdout, "%s %s (%s)\n", channel.ID, channel.Name, channel.Type)
		}
		return nil

	case "list-messages":
		messages, err := db.ListMessages(ctx, *serverID, *channelID)
		if err != nil {
			return fmt.Errorf("while listing messages: %w", err)
		}
		for _, message := range messages {
			fmt.Fprintf(os.Stdout, "[%s] %s: %s%s%s\n", message.Date, message.UserID, message.Content, message.Image, message.Video)
		}
		return nil

	default:
		return fmt.Errorf("unknown verb %q; want create-account, create-server, join-server, post-message, show-user, list-servers, list-channels, or list-messages", verb)
	}
}

func signIn(ctx context.Context, client *banter.Client) error {
	if _, err := client.SignIn(ctx, *email, *password); err != nil {
		return fmt.Errorf("while signing in: %w", err)
	}
	return nil
}
