package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"
)

func TestGenerateToken(t *testing.T) {
	data := &EngineData{
		JobID:     7,
		Result:    "ok",
		ExitCode:  0,
		TimeMS:    42,
		MemoryKB:  2048,
		Timestamp: 1700000000,
	}
	payload, err := GenerateToken(data, "secret")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if payload.Data != data {
		t.Fatal("payload does not carry the verdict data")
	}

	// The receiver recomputes the MAC over the serialized data.
	message, err := json.Marshal(payload.Data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write(message)
	want := hex.EncodeToString(mac.Sum(nil))
	if payload.AccessToken != want {
		t.Fatalf("access token mismatch: %s != %s", payload.AccessToken, want)
	}
}

func TestGenerateTokenKeyMatters(t *testing.T) {
	data := &EngineData{JobID: 1, Result: "re"}
	a, err := GenerateToken(data, "key-a")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := GenerateToken(data, "key-b")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if a.AccessToken == b.AccessToken {
		t.Fatal("different keys produced the same token")
	}
}
