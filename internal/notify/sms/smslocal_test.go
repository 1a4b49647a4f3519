package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	codedomain "loginus/internal/code/domain"
)

func TestNewSMSLocalClientDefaults(t *testing.T) {
	client := NewSMSLocalClient("api-key", "", "")
	if client.APIKey != "api-key" {
		t.Errorf("APIKey = %q, want %q", client.APIKey, "api-key")
	}
	if client.BaseURL != "https://www.smslocal.com/dev/bulkV2" {
		t.Errorf("BaseURL = %q, want default", client.BaseURL)
	}
	if client.HTTPClient == nil || client.HTTPClient.Timeout != defaultTimeout {
		t.Fatal("HTTPClient should be set with default timeout")
	}
}

func TestSendPostsCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if r.Header.Get("Authorization") != "test-api-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["numbers"] != "79991234567" || body["variables"] != "123456" {
			t.Errorf("body = %v", body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewSMSLocalClient("test-api-key", server.URL, "")
	if err := client.Send(context.Background(), "79991234567", "123456", codedomain.PurposeTwoFactorSMS); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestSendFailsOnNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewSMSLocalClient("k", server.URL, "")
	if err := client.Send(context.Background(), "79991234567", "123456", codedomain.PurposeTwoFactorSMS); err == nil {
		t.Fatal("non-200 must fail")
	}
}

func TestSendRequiresAPIKey(t *testing.T) {
	client := NewSMSLocalClient("", "", "")
	if err := client.Send(context.Background(), "79991234567", "123456", codedomain.PurposeTwoFactorSMS); err == nil {
		t.Fatal("missing API key must fail")
	}
}
