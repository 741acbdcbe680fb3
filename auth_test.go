package main

import (
	"testing"
	"time"
)

func TestSessionLifecycle(t *testing.T) {
	sm := NewSessionManager()
	id, sess, err := sm.Create("admin", time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.Username != "admin" {
		t.Errorf("session user = %q", sess.Username)
	}
	got, ok := sm.Get(id)
	if !ok || got.Username != "admin" {
		t.Fatalf("Get = %v, %v", got, ok)
	}
	if !sm.Delete(id) {
		t.Error("Delete returned false for live session")
	}
	if _, ok := sm.Get(id); ok {
		t.Error("session still retrievable after Delete")
	}
}

func TestSessionExpiry(t *testing.T) {
	sm := NewSessionManager()
	id, _, err := sm.Create("admin", -time.Second)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := sm.Get(id); ok {
		t.Error("expired session retrievable")
	}
	sm.Purge()
	if _, ok := sm.sessions[id]; ok {
		t.Error("Purge left expired session in store")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash := hashPassword("hunter2")
	if err := checkPasswordHash("hunter2", hash); err != nil {
		t.Errorf("matching password rejected: %v", err)
	}
	if err := checkPasswordHash("hunter3", hash); err == nil {
		t.Error("wrong password accepted")
	}
}
