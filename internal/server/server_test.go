package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AnyUserName/bulkimg/internal/catalog"
	"github.com/AnyUserName/bulkimg/internal/gateway"
	"github.com/AnyUserName/bulkimg/internal/pipeline"
)

var testEntries = catalog.Static{
	{ID: "u1", DisplayName: "Marina Tower"},
	{ID: "u2", DisplayName: "Creek Horizon"},
	{ID: "u3", DisplayName: "Downtown Views"},
}

func newTestServer(t *testing.T, apiKey string) (*httptest.Server, *gateway.Directory) {
	t.Helper()
	store := gateway.NewDirectory(t.TempDir(), "")
	var handler http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	store.PublicURL = srv.URL
	handler = New(testEntries, store, Options{APIKey: apiKey})
	t.Cleanup(srv.Close)
	return srv, store
}

func encodeImage(t *testing.T, format string, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 30, 120, 200, 255
	}
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	var err error
	if format == "png" {
		err = png.Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, nil)
	}
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// buildMultipartBody creates a multipart/form-data body with a single file field.
func buildMultipartBody(t *testing.T, fieldName, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(fieldName, filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(data)
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func postImage(t *testing.T, url, key string, data []byte) (int, gateway.UploadResponse) {
	t.Helper()
	body, ct := buildMultipartBody(t, "file", "image.jpg", data)
	req, _ := http.NewRequest(http.MethodPost, url, body)
	req.Header.Set("Content-Type", ct)
	if key != "" {
		req.Header.Set("x-api-key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out gateway.UploadResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, "")
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"ok"`) {
		t.Errorf("health = %d %s", resp.StatusCode, body)
	}
}

func TestListPagination(t *testing.T) {
	srv, _ := newTestServer(t, "")
	var got []building
	resp, err := http.Get(srv.URL + "/buildings/?skip=1&limit=1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].UUID != "u2" || got[0].HasImage || got[0].ImageURL != nil {
		t.Errorf("page = %+v", got)
	}
}

func TestUploadAndServe(t *testing.T) {
	srv, _ := newTestServer(t, "secret")
	jpg := encodeImage(t, "jpeg", 16, 16)

	status, out := postImage(t, srv.URL+"/buildings/u1/image", "secret", jpg)
	if status != http.StatusOK || !out.Success || out.ImageURL != srv.URL+"/small/u1.jpg" {
		t.Fatalf("upload = %d %+v", status, out)
	}

	resp, err := http.Get(out.ImageURL)
	if err != nil {
		t.Fatal(err)
	}
	served, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !bytes.Equal(served, jpg) {
		t.Errorf("served %d, %d bytes", resp.StatusCode, len(served))
	}

	status, out = postImage(t, srv.URL+"/buildings/u1/image", "secret", jpg)
	if status != http.StatusOK || !strings.Contains(out.ImageURL, "?v=") {
		t.Errorf("replacement = %d %+v", status, out)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/buildings/?limit=10", nil)
	req.Header.Set("x-api-key", "secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	var list []building
	_ = json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if len(list) != 3 || !list[0].HasImage || list[1].HasImage {
		t.Errorf("list = %+v", list)
	}
}

func TestUploadRejections(t *testing.T) {
	srv, _ := newTestServer(t, "secret")
	jpg := encodeImage(t, "jpeg", 8, 8)

	cases := []struct {
		name, path, key string
		data            []byte
		status          int
	}{
		{"no key", "/buildings/u1/image", "", jpg, http.StatusUnauthorized},
		{"unknown building", "/buildings/nope/image", "secret", jpg, http.StatusNotFound},
		{"png", "/buildings/u1/image", "secret", encodeImage(t, "png", 8, 8), http.StatusBadRequest},
		{"too large", "/buildings/u1/image", "secret", append(append([]byte{}, jpg...), make([]byte, gateway.DefaultMaxBytes)...), http.StatusBadRequest},
	}
	for _, c := range cases {
		status, out := postImage(t, srv.URL+c.path, c.key, c.data)
		if status != c.status || out.Success || out.Error == "" {
			t.Errorf("%s: %d %+v, want %d", c.name, status, out, c.status)
		}
	}

	resp, err := http.Get(srv.URL + "/small/u2.jpg")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing asset = %d", resp.StatusCode)
	}
}

// TestEndToEnd runs a whole session against the asset API: the catalog is
// fetched over HTTP, files are matched and transcoded, and uploads go through
// the HTTP gateway into the server's store.
func TestEndToEnd(t *testing.T) {
	srv, store := newTestServer(t, "secret")

	entries, err := catalog.NewClient(srv.URL, "secret", 0).Entries(context.Background())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	s := pipeline.NewSession(pipeline.Options{
		Catalog: entries,
		Gateway: gateway.NewHTTP(srv.URL, "secret"),
	})
	defer s.Close()

	items, rejected := s.Ingest([]pipeline.RawFile{
		{Name: "IMG_marina-tower.png", MIMEType: "image/png", Data: encodeImage(t, "png", 2400, 1200)},
		{Name: "creek_horizon_final.jpg", MIMEType: "image/jpeg", Data: encodeImage(t, "jpeg", 300, 200)},
		{Name: "unrelated.jpg", MIMEType: "image/jpeg", Data: encodeImage(t, "jpeg", 10, 10)},
		{Name: "notes.txt", MIMEType: "text/plain", Data: []byte("x")},
	})
	if len(items) != 3 || len(rejected) != 1 {
		t.Fatalf("ingest: %d items, %v", len(items), rejected)
	}

	if res, err := s.TranscodeAll(); err != nil || res.Failed != 0 {
		t.Fatalf("transcode: %+v %v", res, err)
	}
	res, err := s.UploadReady(context.Background())
	if err != nil || res.Succeeded != 2 || res.Failed != 0 {
		t.Fatalf("upload: %+v %v", res, err)
	}

	sum := s.Summarize()
	if sum.Uploaded != 2 || sum.Unmapped != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if !store.Exists("u1") || !store.Exists("u2") || store.Exists("u3") {
		t.Error("store contents wrong")
	}

	for _, it := range s.Items() {
		if it.Stage != pipeline.StageUploaded {
			continue
		}
		resp, err := http.Get(it.AssetURL)
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil || format != "jpeg" {
			t.Fatalf("%s: served %s, %v", it.FileName, format, err)
		}
		if cfg.Width > 1000 || cfg.Height > 1000 {
			t.Errorf("%s: %dx%d exceeds limit", it.FileName, cfg.Width, cfg.Height)
		}
	}
}
