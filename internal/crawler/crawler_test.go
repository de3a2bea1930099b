package crawler

import (
	"testing"
)

func TestHTTPStatusError_Message(t *testing.T) {
	err := httpStatusError{url: "https://example.com/missing", status: 404}
	want := "crawler: https://example.com/missing returned HTTP status 404"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
