package queue

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseFileReference(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		domain string
		want   RefKind
	}{
		{"storage URL", "https://res.cloudinary.com/demo/image/upload/photo.jpg", "cloudinary.com", KindRemoteURL},
		{"http storage URL", "http://cdn.cloudinary.com/x.jpg", "cloudinary.com", KindRemoteURL},
		{"URL without storage domain", "https://example.com/photo.jpg", "cloudinary.com", KindLocalPath},
		{"URL with no domain configured", "https://res.cloudinary.com/x.jpg", "", KindLocalPath},
		{"lookup id", "507f1f77bcf86cd799439011", "cloudinary.com", KindLookupID},
		{"uppercase lookup id", "507F1F77BCF86CD799439011", "", KindLookupID},
		{"too short hex", "507f1f77bcf86cd7994390", "", KindLocalPath},
		{"non-hex 24 chars", "507f1f77bcf86cd79943901z", "", KindLocalPath},
		{"local path", "/photos/event/img_0001.jpg", "cloudinary.com", KindLocalPath},
		{"relative path", "uploads/selfie.png", "", KindLocalPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := ParseFileReference(tt.raw, tt.domain)
			if ref.Kind != tt.want {
				t.Errorf("ParseFileReference(%q) kind = %d, want %d", tt.raw, ref.Kind, tt.want)
			}
		})
	}
}

func TestParseFileReferenceLowercasesLookupID(t *testing.T) {
	ref := ParseFileReference("507F1F77BCF86CD799439011", "")
	if ref.Raw != "507f1f77bcf86cd799439011" {
		t.Errorf("lookup id should be lowercased, got %q", ref.Raw)
	}
}

func testImageBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

func TestResolveLookupID(t *testing.T) {
	imageData := testImageBytes(t)
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		w.Write(imageData)
	}))
	defer server.Close()

	resolver := NewResolver(server.URL+"/api/images", 1920)
	ref := ParseFileReference("507f1f77bcf86cd799439011", "")

	data, err := resolver.Resolve(context.Background(), ref)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected image data")
	}
	if requestedPath != "/api/images/507f1f77bcf86cd799439011" {
		t.Errorf("unexpected lookup path %q", requestedPath)
	}
}

func TestResolveLookupUnreachable(t *testing.T) {
	// Port 1 should refuse connections.
	resolver := NewResolver("http://127.0.0.1:1/api/images", 1920)
	ref := ParseFileReference("507f1f77bcf86cd799439011", "")

	if _, err := resolver.Resolve(context.Background(), ref); err == nil {
		t.Fatal("expected error for unreachable lookup service")
	}
}

func TestResolveRemoteURL(t *testing.T) {
	imageData := testImageBytes(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(imageData)
	}))
	defer server.Close()

	resolver := NewResolver("", 1920)
	// Force the remote kind; the test server URL has no storage domain.
	ref := FileReference{Raw: server.URL + "/photo.jpg", Kind: KindRemoteURL}

	data, err := resolver.Resolve(context.Background(), ref)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected image data")
	}
}

func TestResolveRemoteErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	resolver := NewResolver("", 1920)
	ref := FileReference{Raw: server.URL + "/missing.jpg", Kind: KindRemoteURL}

	if _, err := resolver.Resolve(context.Background(), ref); err == nil {
		t.Fatal("expected error for 404 fetch")
	}
}

func TestResolveUndecodableRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>this is not an image</html>"))
	}))
	defer server.Close()

	resolver := NewResolver("", 1920)
	ref := FileReference{Raw: server.URL + "/page.html", Kind: KindRemoteURL}

	if _, err := resolver.Resolve(context.Background(), ref); err == nil {
		t.Fatal("expected decode error for non-image payload")
	}
}

func TestResolveMissingLocalFile(t *testing.T) {
	resolver := NewResolver("", 1920)
	ref := ParseFileReference("/nonexistent/path/img.jpg", "")

	if _, err := resolver.Resolve(context.Background(), ref); err == nil {
		t.Fatal("expected error for missing file")
	}
}
