package principal

import (
	"testing"
	"time"
)

func samplePrincipal() Principal {
	return Principal{
		SubjectID:   "u-42",
		TenantID:    "tenant-a",
		TokenID:     "c1f3a2b4",
		Authorities: []string{"ROLE_ADMIN", "ROLE_BILLING"},
		Scopes:      []string{"read", "write"},
		IssuedAt:    time.Now().Unix(),
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	}
}

func TestCodecRoundTrip(t *testing.T) {
	want := samplePrincipal()

	data, err := Encode(want)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if got.SubjectID != want.SubjectID || got.TenantID != want.TenantID || got.TokenID != want.TokenID {
		t.Fatalf("identity fields mismatch: got %+v", got)
	}
	if len(got.Authorities) != 2 || got.Authorities[0] != "ROLE_ADMIN" || got.Authorities[1] != "ROLE_BILLING" {
		t.Fatalf("authorities mismatch: %v", got.Authorities)
	}
	if len(got.Scopes) != 2 {
		t.Fatalf("scopes mismatch: %v", got.Scopes)
	}
	if got.IssuedAt != want.IssuedAt || got.ExpiresAt != want.ExpiresAt {
		t.Fatalf("timestamps mismatch: got iat=%d exp=%d", got.IssuedAt, got.ExpiresAt)
	}
}

func TestCodecEmptyLists(t *testing.T) {
	p := samplePrincipal()
	p.Authorities = nil
	p.Scopes = nil

	data, err := Encode(p)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Authorities != nil || got.Scopes != nil {
		t.Fatalf("expected nil lists, got %v / %v", got.Authorities, got.Scopes)
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	data, err := Encode(samplePrincipal())
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	data[0] = 99

	if _, err := Decode(data); err != ErrCorruptRecord {
		t.Fatalf("expected ErrCorruptRecord, got %v", err)
	}
}

func TestDecodeRejectsTruncatedBlob(t *testing.T) {
	data, err := Encode(samplePrincipal())
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	for _, cut := range []int{1, 3, len(data) / 2, len(data) - 1} {
		if _, err := Decode(data[:cut]); err == nil {
			t.Fatalf("expected error for blob truncated at %d bytes", cut)
		}
	}
}

func TestExpiredAt(t *testing.T) {
	now := time.Now()

	p := samplePrincipal()
	if p.ExpiredAt(now) {
		t.Fatal("fresh principal reported expired")
	}

	p.ExpiresAt = now.Add(-time.Second).Unix()
	if !p.ExpiredAt(now) {
		t.Fatal("stale principal reported valid")
	}

	p.ExpiresAt = 0
	if !p.ExpiredAt(now) {
		t.Fatal("zero expiry must be treated as expired")
	}
}

func TestHasAnyAuthority(t *testing.T) {
	p := samplePrincipal()

	if !p.HasAnyAuthority([]string{"ROLE_SYSTEM_ADMIN", "ROLE_ADMIN"}) {
		t.Fatal("expected OR-semantics match on ROLE_ADMIN")
	}
	if p.HasAnyAuthority([]string{"ROLE_SYSTEM_ADMIN"}) {
		t.Fatal("unexpected match on authority the principal lacks")
	}
	if p.HasAnyAuthority(nil) {
		t.Fatal("empty required set must never match")
	}
}
