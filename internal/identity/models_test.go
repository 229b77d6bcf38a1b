package identity

import "testing"

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "" || hash == "correct-horse-battery-staple" {
		t.Fatalf("HashPassword did not produce a distinct hash: %q", hash)
	}

	hash2, err := HashPassword("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == hash2 {
		t.Fatal("HashPassword must salt: two hashes of the same password should differ")
	}
}
