package types

import "testing"

func TestFileTypeFromName(t *testing.T) {
	cases := []struct {
		name string
		want FileType
	}{
		{"report.pdf", FileTypeDocument},
		{"doc.txt", FileTypeDocument},
		{"pic.png", FileTypeImage},
		{"photo.JPG", FileTypeImage},
		{"clip.mp4", FileTypeVideo},
		{"song.mp3", FileTypeAudio},
		{"archive.zip", FileTypeOther},
		{"noextension", FileTypeOther},
		{"weird.", FileTypeOther},
	}

	for _, tc := range cases {
		if got := FileTypeFromName(tc.name); got != tc.want {
			t.Errorf("FileTypeFromName(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestRenameReclassifies(t *testing.T) {
	// Classification follows the current name, so an extension change on
	// rename moves the file between categories.
	if got := FileTypeFromName("pic.png"); got != FileTypeImage {
		t.Fatalf("expected image, got %q", got)
	}
	if got := FileTypeFromName("pic.mp4"); got != FileTypeVideo {
		t.Fatalf("expected video after extension change, got %q", got)
	}
	if got := FileTypeFromName("doc.pdf"); got != FileTypeDocument {
		t.Fatalf("expected document, got %q", got)
	}
}

func TestNormalizeFileName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"my holiday photo.png", "my_holiday_photo.png"},
		{"  spaced  ", "spaced"},
		{"plain.txt", "plain.txt"},
		{"dir/escape.txt", "escape.txt"},
		{`win\escape.txt`, "escape.txt"},
		{"..", ""},
		{"", ""},
	}

	for _, tc := range cases {
		if got := NormalizeFileName(tc.in); got != tc.want {
			t.Errorf("NormalizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFileURL(t *testing.T) {
	got := FileURL("user-1", "doc.pdf")
	if got != "/uploads/user-1/doc.pdf" {
		t.Errorf("unexpected url %q", got)
	}
}
