package attachments

import "testing"

func TestDownloadURL(t *testing.T) {
	got := DownloadURL("nemo.appspot.com", "images/u1/a b.png", "tok-1")
	want := "https://firebasestorage.googleapis.com/v0/b/nemo.appspot.com/o/images%2Fu1%2Fa%20b.png?alt=media&token=tok-1"
	if got != want {
		t.Fatalf("DownloadURL =\n %s\nwant\n %s", got, want)
	}
}
