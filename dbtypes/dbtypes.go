// Package dbtypes defines the documents that banter stores in Firestore.
package dbtypes

// User is the profile document stored at users/{uid}.
//
// The tag is a 4-digit discriminator displayed next to the username.  It is
// currently the same placeholder for every account.
type User struct {
	ID string `firestore:"-"`

	Username string `firestore:"username"`
	Avatar   string `firestore:"avatar"`
	Tag      string `firestore:"tag"`
	About    string `firestore:"about"`
	Banner   string `firestore:"banner"`
	Email    string `firestore:"email"`
	Theme    string `firestore:"theme"`
}

// Role is embedded in a Server's ordered role list.  Members reference roles
// by RoleID, so renaming or recoloring a role never touches member documents.
type Role struct {
	RoleID          string `firestore:"roleID"`
	Name            string `firestore:"name"`
	Color           string `firestore:"color"`
	SeparateDisplay bool   `firestore:"separateDisplay"`
	Sort            int64  `firestore:"sort"`
	ManageChannels  bool   `firestore:"manageChannels"`
	ManageRoles     bool   `firestore:"manageRoles"`
	ManageServer    bool   `firestore:"manageServer"`
}

// Server is stored at servers/{sid}.  Channels, members, and messages live in
// sub-collections under it.
type Server struct {
	ID string `firestore:"-"`

	Name           string  `firestore:"name"`
	Img            string  `firestore:"img"`
	DefaultChannel string  `firestore:"defaultChannel"`
	IsPublic       bool    `firestore:"isPublic"`
	ContentFilter  string  `firestore:"contentFilter"`
	Roles          []*Role `firestore:"roles"`
}

// Channel is stored at servers/{sid}/channels/{cid}.
type Channel struct {
	ID string `firestore:"-"`

	Name string `firestore:"name"`
	Type string `firestore:"type"`
}

// Member is stored at servers/{sid}/members/{uid}.  Its existence is the
// membership relation; a zero Member marshals to an empty placeholder
// document.  The roles field is deleted outright, not written as an empty
// list, when a member has no roles assigned.
type Member struct {
	ServerOwner bool     `firestore:"serverOwner,omitempty"`
	Roles       []string `firestore:"roles,omitempty"`
}

// Reaction is one emoji reaction on a message, with the users who added it.
type Reaction struct {
	Emoji string   `firestore:"emoji"`
	Users []string `firestore:"users"`
}

// Message is stored at servers/{sid}/channels/{cid}/messages/{mid}.  Exactly
// one of Content, Image, or Video is expected to carry the payload, but
// nothing enforces that; a text message can gain an image after creation.
type Message struct {
	ID string `firestore:"-"`

	UserID    string      `firestore:"userID"`
	Content   string      `firestore:"content"`
	Image     string      `firestore:"image"`
	Video     string      `firestore:"video"`
	Date      string      `firestore:"date"`
	Timestamp int64       `firestore:"timestamp"`
	Edited    bool        `firestore:"edited"`
	Reactions []*Reaction `firestore:"reactions"`
}
