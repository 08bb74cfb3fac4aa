// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

package formaudit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func listerForServer(t *testing.T, url string) *CHTFormLister {
	t.Helper()
	t.Setenv("TEST_CHT_USER", "admin")
	t.Setenv("TEST_CHT_PASS", "secret")
	return NewCHTFormLister(InstanceConfig{
		BaseURLs:     map[string]string{"MALI": url},
		UsernameEnvs: map[string]string{"MALI": "TEST_CHT_USER"},
		PasswordEnvs: map[string]string{"MALI": "TEST_CHT_PASS"},
	}, nil)
}

// --- Form listing tests ---

func TestCHTFormLister_ListInstalledForms(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/forms" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode([]string{
			"fp_follow_up.xml",
			"contact:person:create.xml",
			"pnc.xml",
		})
	}))
	defer srv.Close()

	forms, err := listerForServer(t, srv.URL).ListInstalledForms(context.Background(), "mali")
	if err != nil {
		t.Fatalf("ListInstalledForms failed: %v", err)
	}
	want := []string{"fp_follow_up", "pnc"}
	if len(forms) != len(want) {
		t.Fatalf("forms = %v, want %v", forms, want)
	}
	for i := range want {
		if forms[i] != want[i] {
			t.Errorf("forms[%d] = %q, want %q", i, forms[i], want[i])
		}
	}
}

func TestCHTFormLister_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := listerForServer(t, srv.URL).ListInstalledForms(context.Background(), "MALI"); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestCHTFormLister_UnknownCountry(t *testing.T) {
	l := NewCHTFormLister(InstanceConfig{}, nil)
	if _, err := l.ListInstalledForms(context.Background(), "MALI"); err == nil {
		t.Fatal("expected error for unconfigured country")
	}
}

func TestCHTFormLister_MissingCredentials(t *testing.T) {
	l := NewCHTFormLister(InstanceConfig{
		BaseURLs:     map[string]string{"MALI": "http://localhost"},
		UsernameEnvs: map[string]string{"MALI": "UNSET_USER_VAR"},
		PasswordEnvs: map[string]string{"MALI": "UNSET_PASS_VAR"},
	}, nil)
	if _, err := l.ListInstalledForms(context.Background(), "MALI"); err == nil {
		t.Fatal("expected error when credentials are unset")
	}
}
