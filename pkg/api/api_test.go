//go:build integration

package api

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/blulok/blulok-cloud/pkg/access/audience"
	"github.com/blulok/blulok-cloud/pkg/access/cascade"
	"github.com/blulok/blulok-cloud/pkg/access/denylist"
	"github.com/blulok/blulok-cloud/pkg/access/gateway"
	"github.com/blulok/blulok-cloud/pkg/access/models"
	"github.com/blulok/blulok-cloud/pkg/access/routepass"
	"github.com/blulok/blulok-cloud/pkg/access/schedule"
	"github.com/blulok/blulok-cloud/pkg/access/signing"
	"github.com/blulok/blulok-cloud/pkg/access/store"
)

// testEnv wires the full API surface around an in-memory store.
type testEnv struct {
	server *httptest.Server
	store  store.Store
	signer *signing.Service
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	priv, pub, err := signing.GenerateKeyPair()
	require.NoError(t, err)
	signer, err := signing.NewService(signing.Config{PrivateKeyB64: priv, PublicKeyB64: pub})
	require.NoError(t, err)

	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err, "creating store")
	t.Cleanup(func() { _ = st.Close() })

	clock := clockwork.NewRealClock()
	issuer := routepass.NewOrchestrator(
		signer, st, st,
		audience.NewResolver(st, clock),
		schedule.NewResolver(st),
		24*time.Hour, clock, nil,
	)
	fallback := routepass.NewFallbackVerifier(signer, st, issuer, 10*time.Second, clock, nil)
	pruner := denylist.NewPruner(st, 0, clock, nil)
	listener := cascade.NewListener(
		st,
		denylist.NewCommandBuilder(signer, clock),
		denylist.NewOptimizer(st, clock),
		gateway.NewLogSink(),
		cascade.Config{RoutePassTTL: 24 * time.Hour},
		clock, nil,
	)
	listener.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = listener.Stop(ctx)
	})

	server := httptest.NewServer(NewRouter(Deps{
		Signer:   signer,
		Store:    st,
		Issuer:   issuer,
		Fallback: fallback,
		Pruner:   pruner,
		Cascade:  listener,
	}))
	t.Cleanup(server.Close)

	token, err := signer.SignCommand(map[string]any{
		"sub": "op-tester",
		"aud": AdminAudience,
	}, time.Hour, time.Now())
	require.NoError(t, err, "minting operator token")

	return &testEnv{server: server, store: st, signer: signer, token: token}
}

// call performs an authenticated request and decodes the response wrapper.
func (env *testEnv) call(t *testing.T, method, path string, body any, headers map[string]string) (int, *Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, env.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+env.token)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "request failed")
	defer resp.Body.Close()

	var wrapper Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&wrapper), "decoding response")
	return resp.StatusCode, &wrapper
}

// decodeData re-marshals the wrapper's data payload into dst.
func decodeData(t *testing.T, resp *Response, dst any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dst))
}

func (env *testEnv) seedUser(t *testing.T, role models.UserRole) *models.User {
	t.Helper()
	user := &models.User{ID: uuid.New().String(), Role: string(role), Active: true}
	require.NoError(t, env.store.CreateUser(context.Background(), user))
	return user
}

// seedDevice enrolls an attested device and returns it with its private key.
func (env *testEnv) seedDevice(t *testing.T, userID string) (*models.UserDevice, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	device := &models.UserDevice{
		ID:          uuid.New().String(),
		UserID:      userID,
		AppDeviceID: "app-" + uuid.New().String(),
		Status:      string(models.DeviceStatusActive),
		PublicKey:   base64.RawURLEncoding.EncodeToString(pub),
	}
	_, err = env.store.CreateDevice(context.Background(), device)
	require.NoError(t, err)
	return device, priv
}

// seedTopology creates facility f, unit u, lock l and returns their IDs.
func (env *testEnv) seedTopology(t *testing.T) (facilityID, unitID, lockID string) {
	t.Helper()
	ctx := context.Background()
	facilityID = uuid.New().String()
	unitID = uuid.New().String()
	lockID = uuid.New().String()
	require.NoError(t, env.store.CreateFacility(ctx, &models.Facility{ID: facilityID}))
	require.NoError(t, env.store.CreateUnit(ctx, &models.Unit{ID: unitID, FacilityID: facilityID}))
	require.NoError(t, env.store.CreateLock(ctx, &models.Lock{ID: lockID, UnitID: unitID}))
	return facilityID, unitID, lockID
}

func TestAPI_AuthRequired(t *testing.T) {
	env := newTestEnv(t)

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/v1/denylist?user_id=u", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAPI_Health(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/health", "/health/ready"} {
		resp, err := http.Get(env.server.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestAPI_IssueRoutePass(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, models.RoleTenant)
	env.seedDevice(t, user.ID)
	_, unitID, lockID := env.seedTopology(t)
	if err := env.store.CreateAssignment(context.Background(), &models.UnitAssignment{
		UnitID: unitID, TenantID: user.ID, Primary: true,
	}); err != nil {
		t.Fatalf("CreateAssignment failed: %v", err)
	}

	status, resp := env.call(t, http.MethodPost, "/api/v1/route-pass",
		map[string]string{"user_id": user.ID}, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, error = %s", status, resp.Error)
	}

	var pass struct {
		RoutePass string   `json:"route_pass"`
		JTI       string   `json:"jti"`
		ExpiresAt int64    `json:"expires_at"`
		Audiences []string `json:"audiences"`
	}
	decodeData(t, resp, &pass)

	if pass.RoutePass == "" || pass.JTI == "" {
		t.Fatal("incomplete pass payload")
	}
	if len(pass.Audiences) != 1 || pass.Audiences[0] != "lock:"+lockID {
		t.Errorf("audiences = %v", pass.Audiences)
	}

	claims, err := env.signer.VerifyRoutePass(pass.RoutePass)
	if err != nil {
		t.Fatalf("VerifyRoutePass failed: %v", err)
	}
	if claims.Subject != user.ID {
		t.Errorf("sub = %s, want %s", claims.Subject, user.ID)
	}

	// The issuance lands in the audit log.
	row, err := env.store.GetIssuance(context.Background(), pass.JTI)
	if err != nil {
		t.Fatalf("GetIssuance failed: %v", err)
	}
	if row.UserID != user.ID {
		t.Errorf("audit user = %s, want %s", row.UserID, user.ID)
	}
}

func TestAPI_IssueRoutePass_Failures(t *testing.T) {
	env := newTestEnv(t)

	t.Run("unknown user", func(t *testing.T) {
		status, _ := env.call(t, http.MethodPost, "/api/v1/route-pass",
			map[string]string{"user_id": "ghost"}, nil)
		if status != http.StatusNotFound {
			t.Errorf("status = %d, want 404", status)
		}
	})

	t.Run("deactivated user", func(t *testing.T) {
		user := env.seedUser(t, models.RoleTenant)
		env.seedDevice(t, user.ID)
		if err := env.store.DeactivateUser(context.Background(), user.ID); err != nil {
			t.Fatalf("DeactivateUser failed: %v", err)
		}
		status, _ := env.call(t, http.MethodPost, "/api/v1/route-pass",
			map[string]string{"user_id": user.ID}, nil)
		if status != http.StatusForbidden {
			t.Errorf("status = %d, want 403", status)
		}
	})

	t.Run("no enrolled device", func(t *testing.T) {
		// The user exists, so this is a conflict directing re-enrollment,
		// not a not-found.
		user := env.seedUser(t, models.RoleTenant)
		status, _ := env.call(t, http.MethodPost, "/api/v1/route-pass",
			map[string]string{"user_id": user.ID}, nil)
		if status != http.StatusConflict {
			t.Errorf("status = %d, want 409", status)
		}
	})

	t.Run("stale device hint", func(t *testing.T) {
		user := env.seedUser(t, models.RoleTenant)
		env.seedDevice(t, user.ID)
		status, _ := env.call(t, http.MethodPost, "/api/v1/route-pass",
			map[string]string{"user_id": user.ID},
			map[string]string{"X-Device-Id": "app-gone"})
		if status != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", status)
		}
	})

	t.Run("missing user_id", func(t *testing.T) {
		status, _ := env.call(t, http.MethodPost, "/api/v1/route-pass",
			map[string]string{}, nil)
		if status != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", status)
		}
	})
}

func TestAPI_FallbackExchange(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, models.RoleTenant)
	device, devicePriv := env.seedDevice(t, user.ID)

	signFallback := func(t *testing.T, iat time.Time, appDeviceID string) string {
		t.Helper()
		token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
			"sub": user.ID,
			"dev": appDeviceID,
			"iss": routepass.FallbackIssuer,
			"aud": routepass.FallbackAudience,
			"iat": iat.Unix(),
		}).SignedString(devicePriv)
		if err != nil {
			t.Fatalf("signing fallback token: %v", err)
		}
		return token
	}

	t.Run("fresh token exchanges", func(t *testing.T) {
		status, resp := env.call(t, http.MethodPost, "/api/v1/route-pass/fallback",
			map[string]string{"token": signFallback(t, time.Now(), device.AppDeviceID)}, nil)
		if status != http.StatusOK {
			t.Fatalf("status = %d, error = %s", status, resp.Error)
		}
		var pass struct {
			RoutePass string   `json:"route_pass"`
			Audiences []string `json:"audiences"`
		}
		decodeData(t, resp, &pass)
		if pass.RoutePass == "" {
			t.Fatal("expected a pass")
		}
		if len(pass.Audiences) != 0 {
			t.Errorf("bootstrap audiences = %v, want empty", pass.Audiences)
		}
	})

	t.Run("stale token rejected", func(t *testing.T) {
		status, _ := env.call(t, http.MethodPost, "/api/v1/route-pass/fallback",
			map[string]string{"token": signFallback(t, time.Now().Add(-time.Minute), device.AppDeviceID)}, nil)
		if status != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", status)
		}
	})

	t.Run("unknown device", func(t *testing.T) {
		status, _ := env.call(t, http.MethodPost, "/api/v1/route-pass/fallback",
			map[string]string{"token": signFallback(t, time.Now(), "app-unenrolled")}, nil)
		if status != http.StatusNotFound {
			t.Errorf("status = %d, want 404", status)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		status, _ := env.call(t, http.MethodPost, "/api/v1/route-pass/fallback",
			map[string]string{"token": "garbage"}, nil)
		if status != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", status)
		}
	})
}

func TestAPI_Denylist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, _, lockID := env.seedTopology(t)
	user := env.seedUser(t, models.RoleTenant)

	if _, err := env.store.UpsertDenylistEntry(ctx, &models.DenylistEntry{
		DeviceID:  lockID,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(time.Hour),
		Source:    string(models.SourceUserDeactivation),
	}); err != nil {
		t.Fatalf("UpsertDenylistEntry failed: %v", err)
	}

	t.Run("list by device", func(t *testing.T) {
		status, resp := env.call(t, http.MethodGet, "/api/v1/denylist?device_id="+lockID, nil, nil)
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		var entries []denylistEntryView
		decodeData(t, resp, &entries)
		if len(entries) != 1 || entries[0].UserID != user.ID {
			t.Errorf("entries = %+v", entries)
		}
	})

	t.Run("list by user", func(t *testing.T) {
		status, resp := env.call(t, http.MethodGet, "/api/v1/denylist?user_id="+user.ID, nil, nil)
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		var entries []denylistEntryView
		decodeData(t, resp, &entries)
		if len(entries) != 1 || entries[0].DeviceID != lockID {
			t.Errorf("entries = %+v", entries)
		}
	})

	t.Run("both selectors rejected", func(t *testing.T) {
		status, _ := env.call(t, http.MethodGet,
			"/api/v1/denylist?device_id=d&user_id=u", nil, nil)
		if status != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", status)
		}
	})

	t.Run("no selector rejected", func(t *testing.T) {
		status, _ := env.call(t, http.MethodGet, "/api/v1/denylist", nil, nil)
		if status != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", status)
		}
	})

	t.Run("prune removes expired entries", func(t *testing.T) {
		if _, err := env.store.UpsertDenylistEntry(ctx, &models.DenylistEntry{
			DeviceID:  lockID,
			UserID:    "expired-user",
			ExpiresAt: time.Now().Add(-time.Hour),
			Source:    string(models.SourceUserDeactivation),
		}); err != nil {
			t.Fatalf("UpsertDenylistEntry failed: %v", err)
		}

		status, resp := env.call(t, http.MethodPost, "/api/v1/denylist/prune", nil, nil)
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		var result struct {
			Removed int64 `json:"removed"`
		}
		decodeData(t, resp, &result)
		if result.Removed != 1 {
			t.Errorf("removed = %d, want 1", result.Removed)
		}
	})
}

func TestAPI_Management(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("deactivate user", func(t *testing.T) {
		user := env.seedUser(t, models.RoleTenant)
		status, _ := env.call(t, http.MethodPost, "/api/v1/users/"+user.ID+"/deactivate", nil, nil)
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		got, err := env.store.GetUserByID(ctx, user.ID)
		if err != nil {
			t.Fatalf("GetUserByID failed: %v", err)
		}
		if got.Active {
			t.Error("user still active after deactivation")
		}
	})

	t.Run("deactivate unknown user", func(t *testing.T) {
		status, _ := env.call(t, http.MethodPost, "/api/v1/users/ghost/deactivate", nil, nil)
		if status != http.StatusNotFound {
			t.Errorf("status = %d, want 404", status)
		}
	})

	t.Run("assignment lifecycle", func(t *testing.T) {
		user := env.seedUser(t, models.RoleTenant)
		_, unitID, _ := env.seedTopology(t)

		status, _ := env.call(t, http.MethodPost, "/api/v1/units/"+unitID+"/assignments",
			map[string]any{"tenant_id": user.ID, "primary": true}, nil)
		if status != http.StatusCreated {
			t.Fatalf("create status = %d", status)
		}
		assignments, err := env.store.ListAssignmentsByTenant(ctx, user.ID)
		if err != nil || len(assignments) != 1 {
			t.Fatalf("assignments = %v, err = %v", assignments, err)
		}

		status, _ = env.call(t, http.MethodDelete,
			"/api/v1/units/"+unitID+"/assignments/"+user.ID+"?fms_sync=true", nil, nil)
		if status != http.StatusOK {
			t.Fatalf("delete status = %d", status)
		}
		assignments, err = env.store.ListAssignmentsByTenant(ctx, user.ID)
		if err != nil || len(assignments) != 0 {
			t.Fatalf("assignments after removal = %v, err = %v", assignments, err)
		}
	})

	t.Run("assignment on unknown unit", func(t *testing.T) {
		status, _ := env.call(t, http.MethodPost, "/api/v1/units/ghost/assignments",
			map[string]any{"tenant_id": "t1"}, nil)
		if status != http.StatusNotFound {
			t.Errorf("status = %d, want 404", status)
		}
	})

	t.Run("revoke key sharing", func(t *testing.T) {
		primary := env.seedUser(t, models.RoleTenant)
		invitee := env.seedUser(t, models.RoleTenant)
		_, unitID, _ := env.seedTopology(t)

		shareID, err := env.store.CreateKeySharing(ctx, &models.KeySharing{
			ID:               uuid.New().String(),
			UnitID:           unitID,
			PrimaryTenantID:  primary.ID,
			SharedWithUserID: invitee.ID,
			IsActive:         true,
		})
		if err != nil {
			t.Fatalf("CreateKeySharing failed: %v", err)
		}

		status, _ := env.call(t, http.MethodPost, "/api/v1/shares/"+shareID+"/revoke", nil, nil)
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		share, err := env.store.GetKeySharing(ctx, shareID)
		if err != nil {
			t.Fatalf("GetKeySharing failed: %v", err)
		}
		if share.IsActive {
			t.Error("share still active after revocation")
		}
	})

	t.Run("revoke unknown share", func(t *testing.T) {
		status, _ := env.call(t, http.MethodPost, "/api/v1/shares/ghost/revoke", nil, nil)
		if status != http.StatusNotFound {
			t.Errorf("status = %d, want 404", status)
		}
	})
}
