package utils

import (
	"math"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTRoundTrip(t *testing.T) {
	tok, err := SignJWT("secret", "w@x.com", "trabajador", 10)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := ParseJWT("secret", tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Email != "w@x.com" || claims.Role != "trabajador" {
		t.Fatalf("claims: %+v", claims)
	}
	if _, err := ParseJWT("other", tok); err == nil {
		t.Fatalf("wrong secret must fail")
	}
}

func TestParseJWT_RejectsExpiredAndOtherAlgs(t *testing.T) {
	expired, _ := SignJWT("secret", "w@x.com", "trabajador", -1)
	if _, err := ParseJWT("secret", expired); err == nil {
		t.Fatalf("expired token accepted")
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Email: "w@x.com"})
	s, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := ParseJWT("secret", s); err == nil {
		t.Fatalf("alg none accepted")
	}
}

func TestPassword(t *testing.T) {
	h, err := HashPassword("s3creta")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(h, "s3creta") || CheckPassword(h, "otra") {
		t.Fatalf("bcrypt check mismatch")
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		raw, region, want string
		ok                bool
	}{
		{"55 1234 5678", "MX", "+525512345678", true},
		{"+52 55 1234 5678", "US", "+525512345678", true},
		{"123", "MX", "", false},
		{"no es numero", "MX", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.raw, tc.region)
		if (err == nil) != tc.ok || got != tc.want {
			t.Fatalf("NormalizePhone(%q) = %q, %v", tc.raw, got, err)
		}
	}
}

func TestDistanceKm(t *testing.T) {
	// Mexico City to Guadalajara, roughly 460 km
	d := DistanceKm(19.4326, -99.1332, 20.6597, -103.3496)
	if math.Abs(d-461) > 10 {
		t.Fatalf("distance: %.1f", d)
	}
	if DistanceKm(1, 1, 1, 1) != 0 {
		t.Fatalf("same point must be zero")
	}
	if ValidCoordinates(91, 0) || !ValidCoordinates(-90, 180) {
		t.Fatalf("coordinate range")
	}
}
