package plan

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/planvault/planvault/pkg/schema"
	"github.com/planvault/planvault/pkg/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	validator, err := schema.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}

	svc, err := NewService(store.NewRedisStore(client), validator)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func testPlan(objectID string) []byte {
	return []byte(`{
		"objectId": "` + objectID + `",
		"objectType": "plan",
		"planType": "inNetwork",
		"creationDate": "12-12-2017",
		"planCostShares": {
			"objectId": "cs-` + objectID + `",
			"objectType": "membercostshare",
			"deductible": 2000,
			"copay": 23
		}
	}`)
}

func TestNewService_RequiresDeps(t *testing.T) {
	validator, err := schema.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}

	if _, err := NewService(nil, validator); err == nil {
		t.Error("expected error for nil store")
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	if _, err := NewService(store.NewRedisStore(client), nil); err == nil {
		t.Error("expected error for nil validator")
	}
}

func TestCreateThenGet_RoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, testPlan("plan-1"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Key != "plan-1" {
		t.Errorf("Key = %q, want plan-1", created.Key)
	}
	if created.Tag == "" {
		t.Error("created record has no tag")
	}

	got, notModified, err := svc.Get(ctx, "plan-1", "")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if notModified {
		t.Error("unconditional Get reported notModified")
	}
	if got.Tag != created.Tag {
		t.Errorf("Get tag %s != Create tag %s", got.Tag, created.Tag)
	}
	if string(got.Data) != string(created.Data) {
		t.Errorf("Get body mismatch: %s vs %s", got.Data, created.Data)
	}
}

func TestCreate_FieldOrderDoesNotChurnTag(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, testPlan("plan-1"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Same content, different field order: same canonical form, same tag.
	reordered := []byte(`{
		"creationDate": "12-12-2017",
		"planType": "inNetwork",
		"objectType": "plan",
		"planCostShares": {
			"copay": 23,
			"deductible": 2000,
			"objectType": "membercostshare",
			"objectId": "cs-plan-2"
		},
		"objectId": "plan-2"
	}`)
	other, err := svc.Create(ctx, reordered)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, _, err := svc.Get(ctx, "plan-2", "")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Tag != other.Tag {
		t.Errorf("stored tag %s != create tag %s", got.Tag, other.Tag)
	}
	if created.Tag == other.Tag {
		t.Error("different documents produced identical tags")
	}
}

func TestCreate_DuplicateRejected(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, testPlan("plan-1"))
	if err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	_, err = svc.Create(ctx, testPlan("plan-1"))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatal("error is not a *ConflictError")
	}
	if conflict.Existing.Tag != first.Tag {
		t.Errorf("conflict carries tag %s, want %s", conflict.Existing.Tag, first.Tag)
	}
	if string(conflict.Existing.Data) != string(first.Data) {
		t.Error("conflict does not carry the originally stored document")
	}
}

func TestCreate_SchemaFailure(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), []byte(`{"objectType":"plan"}`))
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatal("error is not a *ValidationError")
	}
	if len(ve.Violations) == 0 {
		t.Error("validation error carries no violations")
	}
}

func TestGet_NotModified(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, testPlan("plan-1"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	rec, notModified, err := svc.Get(ctx, "plan-1", created.Tag)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !notModified {
		t.Error("matching If-None-Match did not report notModified")
	}
	if rec.Data != nil {
		t.Error("notModified record should carry no body")
	}
	if rec.Tag != created.Tag {
		t.Errorf("notModified tag %s, want %s", rec.Tag, created.Tag)
	}

	_, notModified, err = svc.Get(ctx, "plan-1", `"stale"`)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if notModified {
		t.Error("stale If-None-Match reported notModified")
	}
}

func TestGet_NotFound(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.Get(context.Background(), "absent", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReplace_OptimisticUpdate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, testPlan("plan-1"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	replacement := []byte(`{
		"objectId": "plan-1",
		"objectType": "plan",
		"planType": "outOfNetwork",
		"creationDate": "01-01-2018"
	}`)

	updated, err := svc.Replace(ctx, "plan-1", created.Tag, replacement)
	if err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if updated.Tag == created.Tag {
		t.Error("replace did not change the tag")
	}

	// Replaying with the now-stale tag must fail.
	_, err = svc.Replace(ctx, "plan-1", created.Tag, replacement)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("stale replay: expected ErrPreconditionFailed, got %v", err)
	}
}

func TestReplace_Failures(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, testPlan("plan-1"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	tests := []struct {
		name    string
		key     string
		ifMatch string
		doc     []byte
		wantErr error
	}{
		{name: "absent key", key: "ghost", ifMatch: created.Tag, doc: testPlan("ghost"), wantErr: ErrNotFound},
		{name: "missing if-match", key: "plan-1", ifMatch: "", doc: testPlan("plan-1"), wantErr: ErrPreconditionFailed},
		{name: "stale if-match", key: "plan-1", ifMatch: `"stale"`, doc: testPlan("plan-1"), wantErr: ErrPreconditionFailed},
		{name: "schema failure", key: "plan-1", ifMatch: created.Tag, doc: []byte(`{"objectId":"plan-1"}`), wantErr: ErrValidationFailed},
		{name: "key mismatch", key: "plan-1", ifMatch: created.Tag, doc: testPlan("plan-9"), wantErr: ErrValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Replace(ctx, tt.key, tt.ifMatch, tt.doc)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	// Every failed replace must leave the stored record untouched.
	got, _, err := svc.Get(ctx, "plan-1", "")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Tag != created.Tag {
		t.Error("failed replace mutated the stored record")
	}
}

func TestPatch_ShallowMerge(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, testPlan("plan-1"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// planType overwritten, planCostShares replaced wholesale: the copay
	// field of the stored object must be gone, not merged in.
	patch := []byte(`{
		"planType": "outOfNetwork",
		"planCostShares": {
			"objectId": "cs-new",
			"objectType": "membercostshare",
			"deductible": 500
		}
	}`)

	updated, err := svc.Patch(ctx, "plan-1", created.Tag, patch)
	if err != nil {
		t.Fatalf("Patch failed: %v", err)
	}
	if updated.Tag == created.Tag {
		t.Error("patch did not change the tag")
	}

	var doc map[string]any
	if err := json.Unmarshal(updated.Data, &doc); err != nil {
		t.Fatalf("unmarshal patched document: %v", err)
	}
	if doc["planType"] != "outOfNetwork" {
		t.Errorf("planType = %v, want outOfNetwork", doc["planType"])
	}
	if doc["creationDate"] != "12-12-2017" {
		t.Error("untouched top-level field lost by merge")
	}

	costShares, ok := doc["planCostShares"].(map[string]any)
	if !ok {
		t.Fatal("planCostShares missing after merge")
	}
	if _, hasCopay := costShares["copay"]; hasCopay {
		t.Error("nested object was deep-merged, expected wholesale replacement")
	}
	if costShares["objectId"] != "cs-new" {
		t.Errorf("nested objectId = %v, want cs-new", costShares["objectId"])
	}
}

func TestPatch_ValidationFailureLeavesStoreUntouched(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, testPlan("plan-1"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Correct If-Match, but the merge result violates the schema.
	_, err = svc.Patch(ctx, "plan-1", created.Tag, []byte(`{"planType":"sideways"}`))
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}

	got, _, err := svc.Get(ctx, "plan-1", "")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Tag != created.Tag {
		t.Error("failed patch mutated the stored record")
	}
	if string(got.Data) != string(created.Data) {
		t.Error("failed patch changed the stored document")
	}
}

func TestPatch_CannotChangeKey(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, testPlan("plan-1"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = svc.Patch(ctx, "plan-1", created.Tag, []byte(`{"objectId":"plan-2"}`))
	if !errors.Is(err, ErrValidationFailed) {
		t.Errorf("expected ErrValidationFailed for key change, got %v", err)
	}
}

func TestPatch_NonObjectPatch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, testPlan("plan-1"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = svc.Patch(ctx, "plan-1", created.Tag, []byte(`[1,2,3]`))
	if !errors.Is(err, ErrValidationFailed) {
		t.Errorf("expected ErrValidationFailed for array patch, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, testPlan("plan-1"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Stale If-Match blocks the delete.
	if err := svc.Delete(ctx, "plan-1", `"stale"`); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed, got %v", err)
	}

	// Matching If-Match deletes.
	if err := svc.Delete(ctx, "plan-1", created.Tag); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	// Absence after delete.
	if _, _, err := svc.Get(ctx, "plan-1", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting again is ErrNotFound, never a silent success.
	if err := svc.Delete(ctx, "plan-1", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for repeated delete, got %v", err)
	}
}

func TestDelete_Unconditional(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, testPlan("plan-1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.Delete(ctx, "plan-1", ""); err != nil {
		t.Fatalf("unconditional Delete failed: %v", err)
	}
}
