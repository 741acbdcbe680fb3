package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	chdirTemp(t)
	cfg := defaultConfig()
	cfg.Users = append(cfg.Users, User{
		Username:     "viewer",
		PasswordHash: hashPassword("viewer"),
		Admin:        false,
	})
	cm := &ConfigManager{cfg: cfg, loaded: true}
	node, err := NewNode(cm)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	t.Cleanup(node.Close)
	s := NewServer(cm, node)
	srv := httptest.NewServer(s.routes())
	t.Cleanup(srv.Close)
	return s, srv
}

func login(t *testing.T, srv *httptest.Server, username, password string) *http.Cookie {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(srv.URL+"/api/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	t.Fatal("no session cookie in login response")
	return nil
}

func TestStatusRequiresAuth(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status without session = %d, want 401", resp.StatusCode)
	}
}

func TestLoginAndStatus(t *testing.T) {
	_, srv := newTestServer(t)
	cookie := login(t, srv, "admin", "admin")

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/status", nil)
	req.AddCookie(cookie)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got struct {
		Sent      int    `json:"sent"`
		Failed    int    `json:"failed"`
		UltraNode string `json:"node_ultra_name"`
		SoundNode string `json:"node_sound_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.UltraNode != "Ultrasonic_Sensor" || got.SoundNode != "Sound_Sensor_MAX4466" {
		t.Errorf("node names = %q / %q", got.UltraNode, got.SoundNode)
	}
	if got.Sent != 0 || got.Failed != 0 {
		t.Errorf("fresh node counters = %d/%d, want 0/0", got.Sent, got.Failed)
	}
}

func TestBadCredentials(t *testing.T) {
	_, srv := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "nope"})
	resp, err := http.Post(srv.URL+"/api/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", resp.StatusCode)
	}
}

func TestConfigPutRequiresAdmin(t *testing.T) {
	_, srv := newTestServer(t)
	cookie := login(t, srv, "viewer", "viewer")

	body := bytes.NewReader([]byte(`{"tz_region":"Europe/Berlin"}`))
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/config", body)
	req.AddCookie(cookie)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("non-admin PUT = %d, want 403", resp.StatusCode)
	}
}

func TestConfigPut(t *testing.T) {
	s, srv := newTestServer(t)
	cookie := login(t, srv, "admin", "admin")

	body := bytes.NewReader([]byte(`{"tz_region":"Europe/Berlin","utc_offset_hours":1}`))
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/config", body)
	req.AddCookie(cookie)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("admin PUT = %d, want 204", resp.StatusCode)
	}
	cfg := s.cfgMgr.Get()
	if cfg.TZRegion != "Europe/Berlin" || cfg.UTCOffsetHours != 1 {
		t.Errorf("config not updated: tz=%q offset=%d", cfg.TZRegion, cfg.UTCOffsetHours)
	}
}
