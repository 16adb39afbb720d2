package publish

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

// pngHeader returns a PNG that declares the given size but carries no pixels.
func pngHeader(width, height uint32) []byte {
	var ihdr bytes.Buffer
	ihdr.WriteString("IHDR")
	_ = binary.Write(&ihdr, binary.BigEndian, width)
	_ = binary.Write(&ihdr, binary.BigEndian, height)
	ihdr.Write([]byte{8, 6, 0, 0, 0})

	var out bytes.Buffer
	out.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&out, binary.BigEndian, uint32(ihdr.Len()-4))
	out.Write(ihdr.Bytes())
	_ = binary.Write(&out, binary.BigEndian, crc32.ChecksumIEEE(ihdr.Bytes()))
	return out.Bytes()
}

func TestPrepareImageRejectsHugeDimensions(t *testing.T) {
	p := prepareImage(pngHeader(100000, 100000), "image/png")
	if !errors.Is(p.Err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", p.Err)
	}
}

func TestHTTPImageFetcherRefusesLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngHeader(1, 1))
	}))
	defer srv.Close()

	_, _, err := NewHTTPImageFetcher(0).Fetch(context.Background(), srv.URL+"/a.png")
	if !errors.Is(err, ErrBlockedHost) {
		t.Fatalf("expected ErrBlockedHost, got %v", err)
	}
}

func TestHTTPImageFetcherDecodesDataURI(t *testing.T) {
	data, ct, err := NewHTTPImageFetcher(0).Fetch(context.Background(), "data:image/png;base64,aGk=")
	if err != nil || ct != "image/png" || string(data) != "hi" {
		t.Fatalf("data=%q ct=%q err=%v", data, ct, err)
	}
}

func TestIsPublicIP(t *testing.T) {
	cases := map[string]bool{
		"8.8.8.8":         true,
		"2001:4860::8888": true,
		"127.0.0.1":       false,
		"10.1.2.3":        false,
		"192.168.0.10":    false,
		"169.254.169.254": false,
		"0.0.0.0":         false,
		"::1":             false,
		"fd00::1":         false,
	}
	for addr, want := range cases {
		if got := isPublicIP(net.ParseIP(addr)); got != want {
			t.Fatalf("isPublicIP(%s)=%v want %v", addr, got, want)
		}
	}
}
