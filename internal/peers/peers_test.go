package peers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestContentClientConvertAndUpload(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotForm = map[string]string{
			"user":             r.PostFormValue("user"),
			"action":           r.PostFormValue("action"),
			"range_id":         r.PostFormValue("range_id"),
			"description_file": r.PostFormValue("description_file"),
		}
		fmt.Fprint(w, `[{"status": "SUCCESS", "activity_id": "12,13"}]`)
	}))
	defer srv.Close()

	c := NewHTTPContentClient(srv.URL, "orchestrator", time.Second, nil)
	ids, err := c.ConvertAndUpload(context.Background(), "training_example.yml", 1)
	if err != nil {
		t.Fatalf("ConvertAndUpload: %v", err)
	}
	if len(ids) != 2 || ids[0] != "12" || ids[1] != "13" {
		t.Errorf("activity ids = %v, want [12 13]", ids)
	}
	if gotForm["action"] != ActionUploadContent {
		t.Errorf("action = %q, want %q", gotForm["action"], ActionUploadContent)
	}
	if gotForm["user"] != "orchestrator" || gotForm["range_id"] != "1" {
		t.Errorf("form = %v", gotForm)
	}
	if gotForm["description_file"] != "training_example.yml" {
		t.Errorf("description_file = %q", gotForm["description_file"])
	}
}

func TestContentClientUploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"status": "ERROR", "message": "LMS upload failed"}]`)
	}))
	defer srv.Close()

	c := NewHTTPContentClient(srv.URL, "orchestrator", time.Second, nil)
	_, err := c.ConvertAndUpload(context.Background(), "x.yml", 1)

	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
	if upstreamErr.Peer != PeerContent || upstreamErr.Op != ActionUploadContent {
		t.Errorf("err peer/op = %s/%s", upstreamErr.Peer, upstreamErr.Op)
	}
}

func TestContentClientRemove(t *testing.T) {
	var gotActivityID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotActivityID = r.PostFormValue("activity_id")
		fmt.Fprint(w, `[{"status": "SUCCESS"}]`)
	}))
	defer srv.Close()

	c := NewHTTPContentClient(srv.URL, "orchestrator", time.Second, nil)
	if err := c.Remove(context.Background(), 3, []string{"12", "13"}); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if gotActivityID != "12,13" {
		t.Errorf("activity_id = %q, want \"12,13\"", gotActivityID)
	}
}

func TestContentClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, `[{"status": "SUCCESS", "activity_id": "1"}]`)
	}))
	defer srv.Close()

	c := NewHTTPContentClient(srv.URL, "orchestrator", 20*time.Millisecond, nil)
	_, err := c.ConvertAndUpload(context.Background(), "x.yml", 1)

	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("err = %v, want UpstreamError on timeout", err)
	}
}

func TestRangeClientCreateRange(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotForm = map[string]string{
			"action":               r.PostFormValue("action"),
			"range_id":             r.PostFormValue("range_id"),
			"progression_scenario": r.PostFormValue("progression_scenario"),
		}
		fmt.Fprint(w, `[{"status": "SUCCESS", "range_id": "cr-2", "endpoints": ["172.16.1.7:22", "172.16.1.8:22"]}]`)
	}))
	defer srv.Close()

	c := NewHTTPRangeClient(srv.URL, "orchestrator", time.Second, nil)
	rangeID, endpoints, err := c.CreateRange(context.Background(), "range.yml", 2, "phishing-campaign")
	if err != nil {
		t.Fatalf("CreateRange: %v", err)
	}
	if rangeID != "cr-2" {
		t.Errorf("range id = %q, want cr-2", rangeID)
	}
	if len(endpoints) != 2 || endpoints[0] != "172.16.1.7:22" {
		t.Errorf("endpoints = %v", endpoints)
	}
	if gotForm["action"] != ActionInstantiateRange || gotForm["range_id"] != "2" {
		t.Errorf("form = %v", gotForm)
	}
	if gotForm["progression_scenario"] != "phishing-campaign" {
		t.Errorf("progression_scenario = %q", gotForm["progression_scenario"])
	}
}

func TestRangeClientCreateRangeFallsBackToRequestedID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"status": "SUCCESS"}]`)
	}))
	defer srv.Close()

	c := NewHTTPRangeClient(srv.URL, "orchestrator", time.Second, nil)
	rangeID, _, err := c.CreateRange(context.Background(), "range.yml", 5, "")
	if err != nil {
		t.Fatalf("CreateRange: %v", err)
	}
	if rangeID != "5" {
		t.Errorf("range id = %q, want the requested id echoed back", rangeID)
	}
}

func TestRangeClientDestroyRange(t *testing.T) {
	var gotRangeID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotRangeID = r.PostFormValue("range_id")
		fmt.Fprint(w, `[{"status": "SUCCESS"}]`)
	}))
	defer srv.Close()

	c := NewHTTPRangeClient(srv.URL, "orchestrator", time.Second, nil)
	if err := c.DestroyRange(context.Background(), "cr-2"); err != nil {
		t.Fatalf("DestroyRange: %v", err)
	}
	if gotRangeID != "cr-2" {
		t.Errorf("range_id = %q, want cr-2", gotRangeID)
	}
}

func TestRangeClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // immediately, so the address refuses connections

	c := NewHTTPRangeClient(srv.URL, "orchestrator", time.Second, nil)
	err := c.DestroyRange(context.Background(), "cr-1")

	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
	if upstreamErr.Peer != PeerInstantiation {
		t.Errorf("peer = %q, want %q", upstreamErr.Peer, PeerInstantiation)
	}
}

func TestParseEnvelope(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"success", `[{"status": "SUCCESS"}]`, false},
		{"error status", `[{"status": "ERROR", "message": "boom"}]`, true},
		{"empty array", `[]`, true},
		{"not json", `internal server error`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseEnvelope([]byte(tc.body))
			if (err != nil) != tc.wantErr {
				t.Errorf("parseEnvelope(%q) err = %v, wantErr = %v", tc.body, err, tc.wantErr)
			}
		})
	}
}
