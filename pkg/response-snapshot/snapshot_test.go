package snapshot

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestMarshalBodyIntact(t *testing.T) {
	response := "HTTP/1.1 200 OK\r\n" +
		"Server: Test\r\n" +
		"Content-Length: 16\r\n" +
		"\r\n" +
		"This is the body"

	res, err := http.ReadResponse(bufio.NewReader(strings.NewReader(response)), nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Marshal(res); err != nil {
		t.Fatalf("Error: %v", err)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if fmt.Sprintf("%s", body) != "This is the body" {
		t.Fatalf("Body: %s", body)
	}
}

func TestUnmarshalRestoresResponse(t *testing.T) {
	res := &http.Response{
		StatusCode:    201,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{},
		ContentLength: int64(len("payload")),
		Body:          io.NopCloser(strings.NewReader("payload")),
	}
	res.Header.Add("Content-Type", "text/test")

	bts, err := Marshal(res)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}

	req, _ := http.NewRequest("GET", "/stored", nil)
	restored, err := Unmarshal(bts, req)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if restored.StatusCode != 201 {
		t.Fatalf("Status code is %d", restored.StatusCode)
	}
	if ct := restored.Header.Get("Content-Type"); ct != "text/test" {
		t.Fatalf("Content-Type header is %s", ct)
	}
	if restored.Request != req {
		t.Fatal("Restored response not associated with request")
	}
	body, _ := io.ReadAll(restored.Body)
	if string(body) != "payload" {
		t.Fatalf("Body is %s", body)
	}
}
