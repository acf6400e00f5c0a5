package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func signEd(t *testing.T, priv ed25519.PrivateKey, kid string, claims Claims) string {
	t.Helper()
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	s, err := tok.SignedString(priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func validClaims(sub string) Claims {
	return Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   sub,
		Issuer:    "boardguard",
		Audience:  gjwt.ClaimStrings{"api"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
	}}
}

func TestNewVerifierRejectsBadConfig(t *testing.T) {
	pub, _ := newEdKeys(t)
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unknown method", Config{SigningMethod: "rs256", PublicKey: pub}},
		{"ed25519 without key", Config{SigningMethod: MethodEd25519}},
		{"ed25519 garbage key", Config{SigningMethod: MethodEd25519, PublicKey: []byte("nope")}},
		{"hs256 without secret", Config{SigningMethod: MethodHS256}},
		{"hs256 short secret", Config{SigningMethod: MethodHS256, Secret: []byte("short")}},
		{"negative leeway", Config{SigningMethod: MethodEd25519, PublicKey: pub, Leeway: -time.Second}},
		{"huge leeway", Config{SigningMethod: MethodEd25519, PublicKey: pub, Leeway: time.Hour}},
		{"empty kid", Config{SigningMethod: MethodEd25519, VerifyKeys: map[string][]byte{" ": pub}}},
		{"key id not in set", Config{SigningMethod: MethodEd25519, KeyID: "k9", VerifyKeys: map[string][]byte{"k1": pub}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewVerifier(tt.cfg); err == nil {
				t.Fatal("expected config to be rejected")
			}
		})
	}
}

func TestVerifyReturnsActor(t *testing.T) {
	pub, priv := newEdKeys(t)
	v, err := NewVerifier(Config{SigningMethod: MethodEd25519, PublicKey: pub, Issuer: "boardguard", Audience: "api"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	claims, err := v.Verify(signEd(t, priv, "", validClaims("user-1")))
	if err != nil {
		t.Fatalf("expected valid token: %v", err)
	}
	if claims.ActorID() != "user-1" {
		t.Fatalf("expected actor user-1, got %q", claims.ActorID())
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	v, err := NewVerifier(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, validClaims("u"))
	token, err := tok.SignedString([]byte("secret-secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyIssuerAudienceAndLeeway(t *testing.T) {
	pub, priv := newEdKeys(t)
	v, err := NewVerifier(Config{
		SigningMethod: MethodEd25519,
		PublicKey:     pub,
		Issuer:        "boardguard",
		Audience:      "api",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	wrongIssuer := validClaims("u")
	wrongIssuer.Issuer = "other"
	if _, err := v.Verify(signEd(t, priv, "", wrongIssuer)); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}

	wrongAudience := validClaims("u")
	wrongAudience.Audience = gjwt.ClaimStrings{"other-api"}
	if _, err := v.Verify(signEd(t, priv, "", wrongAudience)); err == nil {
		t.Fatal("expected wrong audience to fail")
	}

	withinLeeway := validClaims("u")
	withinLeeway.ExpiresAt = gjwt.NewNumericDate(time.Now().Add(-15 * time.Second))
	withinLeeway.IssuedAt = gjwt.NewNumericDate(time.Now().Add(-time.Minute))
	if _, err := v.Verify(signEd(t, priv, "", withinLeeway)); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}

	expired := validClaims("u")
	expired.ExpiresAt = gjwt.NewNumericDate(time.Now().Add(-2 * time.Minute))
	expired.IssuedAt = gjwt.NewNumericDate(time.Now().Add(-3 * time.Minute))
	if _, err := v.Verify(signEd(t, priv, "", expired)); err == nil {
		t.Fatal("expected expired token to fail")
	}

	noExpiry := validClaims("u")
	noExpiry.ExpiresAt = nil
	if _, err := v.Verify(signEd(t, priv, "", noExpiry)); err == nil {
		t.Fatal("expected token without exp to fail")
	}
}

func TestVerifyRejectsFutureIAT(t *testing.T) {
	pub, priv := newEdKeys(t)
	v, err := NewVerifier(Config{SigningMethod: MethodEd25519, PublicKey: pub, MaxFutureIAT: time.Minute})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	c := validClaims("u")
	c.IssuedAt = gjwt.NewNumericDate(time.Now().Add(time.Hour))
	c.ExpiresAt = gjwt.NewNumericDate(time.Now().Add(2 * time.Hour))
	if _, err := v.Verify(signEd(t, priv, "", c)); err == nil {
		t.Fatal("expected far-future iat to fail")
	}
}

func TestVerifyRequiresSubject(t *testing.T) {
	pub, priv := newEdKeys(t)
	v, err := NewVerifier(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	if _, err := v.Verify(signEd(t, priv, "", validClaims(""))); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
}

func TestVerifyUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	v, err := NewVerifier(Config{
		SigningMethod: MethodEd25519,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub1},
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	if _, err := v.Verify(signEd(t, priv1, "k2", validClaims("u"))); err == nil {
		t.Fatal("expected unknown kid failure")
	}
	if _, err := v.Verify(signEd(t, priv1, "", validClaims("u"))); err == nil {
		t.Fatal("expected missing kid failure")
	}
	good := signEd(t, priv1, "k1", validClaims("u"))
	if _, err := v.Verify(good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	v2, err := NewVerifier(Config{SigningMethod: MethodEd25519, VerifyKeys: map[string][]byte{"k1": pub2}})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := v2.Verify(good); err == nil {
		t.Fatal("expected verification failure with mismatched key set")
	}
}

func TestVerifyHS256(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	v, err := NewVerifier(Config{SigningMethod: MethodHS256, Secret: secret})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, validClaims("user-7"))
	token, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("expected valid token: %v", err)
	}
	if claims.ActorID() != "user-7" {
		t.Fatalf("expected user-7, got %q", claims.ActorID())
	}

	forged, _ := gjwt.NewWithClaims(gjwt.SigningMethodHS256, validClaims("user-7")).
		SignedString([]byte("ffffffffffffffffffffffffffffffff"))
	if _, err := v.Verify(forged); err == nil {
		t.Fatal("expected token signed with another secret to fail")
	}
}
