package password

import (
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("correct horse battery")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$") {
		t.Fatalf("unexpected encoding %q", encoded)
	}
	if !Verify("correct horse battery", encoded) {
		t.Fatalf("expected password to verify")
	}
	if Verify("wrong", encoded) {
		t.Fatalf("expected wrong password to fail")
	}
	if NeedsRehash(encoded) {
		t.Fatalf("fresh hash should not need rehash")
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	for _, encoded := range []string{"", "plain", "$argon2i$v=19$m=1,t=1,p=1$AA$AA", "$argon2id$v=19$m=x$AA$AA"} {
		if Verify("pw", encoded) {
			t.Fatalf("expected %q to be rejected", encoded)
		}
	}
}

func TestNeedsRehashWeakParams(t *testing.T) {
	weak := Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}
	encoded, err := HashWith("pw", weak)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !Verify("pw", encoded) {
		t.Fatalf("weak hash should still verify")
	}
	if !NeedsRehash(encoded) {
		t.Fatalf("expected weak hash to need rehash")
	}
}
