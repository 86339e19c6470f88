package denylist

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/blulok/blulok-cloud/pkg/access/signing"
)

func newTestSigner(t *testing.T) *signing.Service {
	t.Helper()
	priv, pub, err := signing.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	svc, err := signing.NewService(signing.Config{PrivateKeyB64: priv, PublicKeyB64: pub})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func parseEnvelope(t *testing.T, token string) jwt.MapClaims {
	t.Helper()
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		t.Fatalf("parsing envelope: %v", err)
	}
	return claims
}

func TestBuildAdd(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())
	b := NewCommandBuilder(newTestSigner(t), clock)

	exp := clock.Now().Add(time.Hour).Unix()
	token, err := b.BuildAdd([]string{"gw-1", "gw-2"}, []Entry{{Sub: "user-1", Exp: exp}})
	if err != nil {
		t.Fatalf("BuildAdd failed: %v", err)
	}

	claims := parseEnvelope(t, token)
	if claims["cmd_type"] != CmdTypeAdd {
		t.Errorf("cmd_type = %v, want %s", claims["cmd_type"], CmdTypeAdd)
	}
	targets, ok := claims["targets"].([]any)
	if !ok || len(targets) != 2 || targets[0] != "gw-1" {
		t.Errorf("targets = %v", claims["targets"])
	}
	entries, ok := claims["entries"].([]any)
	if !ok || len(entries) != 1 {
		t.Fatalf("entries = %v", claims["entries"])
	}
	entry, ok := entries[0].(map[string]any)
	if !ok || entry["sub"] != "user-1" || int64(entry["exp"].(float64)) != exp {
		t.Errorf("entry = %v", entries[0])
	}

	// The signer stamps the standard envelope claims.
	if claims["iss"] != signing.DefaultIssuer {
		t.Errorf("iss = %v", claims["iss"])
	}
	iat := int64(claims["iat"].(float64))
	cmdExp := int64(claims["exp"].(float64))
	if iat != clock.Now().Unix() {
		t.Errorf("iat = %d, want %d", iat, clock.Now().Unix())
	}
	if cmdExp-iat != int64(commandTTL.Seconds()) {
		t.Errorf("envelope lifetime = %d seconds, want %d", cmdExp-iat, int64(commandTTL.Seconds()))
	}
	if claims["jti"] == "" || claims["jti"] == nil {
		t.Error("envelope missing jti")
	}
}

func TestBuildRemove(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())
	b := NewCommandBuilder(newTestSigner(t), clock)

	token, err := b.BuildRemove([]string{"gw-1"}, []string{"user-1", "user-2"})
	if err != nil {
		t.Fatalf("BuildRemove failed: %v", err)
	}

	claims := parseEnvelope(t, token)
	if claims["cmd_type"] != CmdTypeRemove {
		t.Errorf("cmd_type = %v, want %s", claims["cmd_type"], CmdTypeRemove)
	}
	subjects, ok := claims["subjects"].([]any)
	if !ok || len(subjects) != 2 || subjects[1] != "user-2" {
		t.Errorf("subjects = %v", claims["subjects"])
	}
}

func TestBuild_EmptyInputsRejected(t *testing.T) {
	b := NewCommandBuilder(newTestSigner(t), clockwork.NewFakeClockAt(time.Now()))

	if _, err := b.BuildAdd(nil, []Entry{{Sub: "user-1", Exp: 1}}); err == nil {
		t.Error("BuildAdd with no targets should fail")
	}
	if _, err := b.BuildAdd([]string{"gw-1"}, nil); err == nil {
		t.Error("BuildAdd with no entries should fail")
	}
	if _, err := b.BuildRemove(nil, []string{"user-1"}); err == nil {
		t.Error("BuildRemove with no targets should fail")
	}
	if _, err := b.BuildRemove([]string{"gw-1"}, nil); err == nil {
		t.Error("BuildRemove with no subjects should fail")
	}
}
