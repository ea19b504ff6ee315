// DB-backed store tests. Set XPRESS_TEST_DSN to run them.
package ride

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"xpress/internal/modules/dispatch"
	"xpress/internal/modules/pricing"
	"xpress/internal/modules/scoring"
	"xpress/internal/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("XPRESS_TEST_DSN")
	if dsn == "" {
		t.Skip("XPRESS_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE driver_responses, rides"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	return NewStore(db)
}

func sampleRide(requestID string) *Ride {
	return &Ride{
		ID:           types.NewID(),
		RequestID:    types.ID(requestID),
		RiderID:      "rider_1",
		DriverID:     "d1",
		Pickup:       types.Point{Lat: 14.5995, Lng: 120.9842},
		Destination:  types.Point{Lat: 14.5547, Lng: 121.0244},
		VehicleClass: "standard",
		Fare:         types.Money{Amount: 16500, Currency: "PHP"},
		Surge:        1.0,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestCreateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	r := sampleRide("req_roundtrip")
	if err := store.Create(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RequestID != r.RequestID || got.DriverID != r.DriverID {
		t.Fatalf("unexpected ride: %+v", got)
	}
	if got.Fare.Amount != 16500 || got.Fare.Currency != "PHP" {
		t.Fatalf("unexpected fare: %+v", got.Fare)
	}
}

func TestGetMissing(t *testing.T) {
	store := setupTestStore(t)
	if _, err := store.Get(context.Background(), "ride_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateDuplicateRequest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, sampleRide("req_dup")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := store.Create(ctx, sampleRide("req_dup"))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestAppendResponse(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	responses := []dispatch.DriverResponse{
		{RequestID: "req_audit", DriverID: "d1", Response: dispatch.ResponseRejected, Reason: "too far", Latency: 3 * time.Second, CreatedAt: time.Now().UTC()},
		{RequestID: "req_audit", DriverID: "d2", Response: dispatch.ResponseAccepted, Latency: 5 * time.Second, CreatedAt: time.Now().UTC()},
	}
	for _, r := range responses {
		if err := store.AppendResponse(ctx, r); err != nil {
			t.Fatalf("append %s: %v", r.DriverID, err)
		}
	}

	var count int
	err := store.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM driver_responses WHERE request_id = $1", "req_audit",
	).Scan(&count)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 audit rows, got %d", count)
	}
}

func TestMaterializerCreatesOneRidePerRequest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	mat := NewMaterializer(store)

	req := &dispatch.MatchingRequest{
		ID:           "req_mat",
		RiderID:      "rider_1",
		Pickup:       types.Point{Lat: 14.5995, Lng: 120.9842},
		Destination:  types.Point{Lat: 14.5547, Lng: 121.0244},
		VehicleClass: "standard",
	}
	winner := scoring.Candidate{DriverID: "d1"}
	fare := pricing.Estimate{
		Total:           types.Money{Amount: 16500, Currency: "PHP"},
		SurgeMultiplier: 1.0,
	}

	rideID, err := mat.Materialize(ctx, req, winner, fare)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	got, err := store.Get(ctx, rideID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DriverID != "d1" || got.RequestID != "req_mat" {
		t.Fatalf("unexpected ride: %+v", got)
	}

	// A retry for the same request must not produce a second ride.
	if _, err := mat.Materialize(ctx, req, winner, fare); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on retry, got %v", err)
	}
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}

	cleaned := stripSQLComments(string(content))
	for _, stmt := range splitSQL(cleaned) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
