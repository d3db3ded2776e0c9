package imagestore

import "testing"

func TestObjectPaths(t *testing.T) {
	testCases := []struct {
		name string
		got  string
		want string
	}{
		{"Avatar", avatarPath("u1"), "users/u1/avatar"},
		{"AvatarPreview", avatarPreviewPath("u1"), "temp/u1/avatar"},
		{"ServerImage", serverImagePath("s1"), "servers/s1/image"},
		{"ServerImagePreview", serverImagePreviewPath("u1"), "temp/u1/serverImage"},
		{"MessageImage", messageImagePath("s1", "m1", "cat.png"), "servers/s1/messages/m1/cat.png"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("Got path %q, want %q", tc.got, tc.want)
			}
		})
	}
}

func TestPreviewPathIsStablePerUser(t *testing.T) {
	// The preview slot is a single fixed path per user per asset kind, so
	// repeated previews overwrite rather than accumulate.
	if avatarPreviewPath("u1") != avatarPreviewPath("u1") {
		t.Error("Expected the avatar preview path to be stable")
	}
	if avatarPreviewPath("u1") == avatarPreviewPath("u2") {
		t.Error("Expected preview paths to be scoped per user")
	}
	if avatarPreviewPath("u1") == serverImagePreviewPath("u1") {
		t.Error("Expected preview paths to be scoped per asset kind")
	}
}

func TestDownloadURL(t *testing.T) {
	store := New(nil, "banter-images")

	got := store.DownloadURL("servers/s1/messages/m1/cat 1.png")
	want := "https://storage.googleapis.com/banter-images/servers%2Fs1%2Fmessages%2Fm1%2Fcat%201.png"
	if got != want {
		t.Errorf("DownloadURL = %q, want %q", got, want)
	}
}
