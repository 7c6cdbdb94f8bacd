package cursor

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func validState() State {
	return State{
		From:          1_000_000,
		Path:          "/data/feeds/a",
		Recursive:     true,
		ChunkSizeHint: 100,
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	s := validState()
	to := int64(2_000_000)
	s.ToOpt = &to
	s.WithHistory = true

	token, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if token == "" {
		t.Fatal("Encode returned empty token")
	}

	got, err := Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.From != s.From || got.Path != s.Path || got.Recursive != s.Recursive ||
		got.ChunkSizeHint != s.ChunkSizeHint || got.WithHistory != s.WithHistory {
		t.Errorf("Decode() = %+v, want %+v", got, s)
	}
	if got.ToOpt == nil || *got.ToOpt != to {
		t.Errorf("Decode().ToOpt = %v, want %d", got.ToOpt, to)
	}
}

func TestEncodeDecode_NilToOpt(t *testing.T) {
	s := validState()
	token, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.ToOpt != nil {
		t.Errorf("Decode().ToOpt = %v, want nil", got.ToOpt)
	}
}

func TestDecode_EmptyToken(t *testing.T) {
	if _, err := Decode(""); err == nil {
		t.Error("Decode(\"\") should fail")
	}
}

func TestDecode_InvalidBase64(t *testing.T) {
	if _, err := Decode("not valid base64!!!"); err == nil {
		t.Error("Decode of invalid base64 should fail")
	}
}

func TestDecode_InvalidJSON(t *testing.T) {
	// "not json" base64url-encoded without padding.
	token := "bm90IGpzb24"
	if _, err := Decode(token); err == nil {
		t.Error("Decode of non-JSON payload should fail")
	}
}

func TestDecode_WrongVersion(t *testing.T) {
	env := wireEnvelope{Version: "v99", State: validState()}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	token := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(data)

	if _, err := Decode(token); err == nil {
		t.Error("Decode of mismatched version should fail")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*State)
		wantErr bool
	}{
		{"valid", func(s *State) {}, false},
		{"negative from", func(s *State) { s.From = -1 }, true},
		{"toOpt equal from", func(s *State) { to := s.From; s.ToOpt = &to }, true},
		{"toOpt less than from", func(s *State) { to := s.From - 1; s.ToOpt = &to }, true},
		{"toOpt greater than from", func(s *State) { to := s.From + 1; s.ToOpt = &to }, false},
		{"zero chunkSizeHint", func(s *State) { s.ChunkSizeHint = 0 }, true},
		{"negative chunkSizeHint", func(s *State) { s.ChunkSizeHint = -5 }, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := validState()
			c.mutate(&s)
			err := s.Validate()
			if (err != nil) != c.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, c.wantErr)
			}
		})
	}
}
