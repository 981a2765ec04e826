package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mhrabal/photovault/internal/database"
	"github.com/mhrabal/photovault/internal/dedupe"
)

func newDuplicatesFixture() (*DuplicatesHandler, *memStore) {
	store := newMemStore()
	checked := time.Now()
	store.assets["asset-1"] = database.Asset{
		ID:              "asset-1",
		OwnerID:         "user-1",
		Type:            database.AssetTypeImage,
		DuplicateID:     "group-1",
		DedupeCheckedAt: &checked,
	}
	store.assets["asset-2"] = database.Asset{
		ID:              "asset-2",
		OwnerID:         "user-1",
		Type:            database.AssetTypeImage,
		DuplicateID:     "group-1",
		DedupeCheckedAt: &checked,
	}
	store.assets["asset-3"] = database.Asset{
		ID:              "asset-3",
		OwnerID:         "user-1",
		Type:            database.AssetTypeImage,
		DedupeCheckedAt: &checked,
	}

	svc := dedupe.NewService(assetStore{store}, embStore{store}, dupStore{store}, testConfig())
	handler := NewDuplicatesHandler(dupStore{store}, assetStore{store}, svc)
	return handler, store
}

func TestDuplicatesHandler_List(t *testing.T) {
	handler, _ := newDuplicatesFixture()

	req := withUser(httptest.NewRequest("GET", "/api/v1/duplicates", nil), "user-1")
	recorder := httptest.NewRecorder()

	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp []DuplicateGroupResponse
	parseJSONResponse(t, recorder, &resp)
	if len(resp) != 1 {
		t.Fatalf("expected 1 group, got %d", len(resp))
	}
	if resp[0].DuplicateID != "group-1" {
		t.Errorf("expected group-1, got '%s'", resp[0].DuplicateID)
	}
	if len(resp[0].Assets) != 2 {
		t.Errorf("expected 2 assets in group, got %d", len(resp[0].Assets))
	}
}

func TestDuplicatesHandler_Resolve(t *testing.T) {
	handler, store := newDuplicatesFixture()

	req := withUser(httptest.NewRequest("POST", "/api/v1/duplicates/group-1/resolve",
		strings.NewReader(`{"keep_asset_id": "asset-1"}`)), "user-1")
	req = requestWithChiParams(req, map[string]string{"id": "group-1"})
	recorder := httptest.NewRecorder()

	handler.Resolve(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp struct {
		Kept     string `json:"kept"`
		Archived int    `json:"archived"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.Kept != "asset-1" {
		t.Errorf("expected 'asset-1' kept, got '%s'", resp.Kept)
	}
	if resp.Archived != 1 {
		t.Errorf("expected 1 archived, got %d", resp.Archived)
	}

	if store.assets["asset-1"].IsArchived {
		t.Error("expected kept asset to stay visible")
	}
	if !store.assets["asset-2"].IsArchived {
		t.Error("expected losing asset to be archived")
	}
	if store.assets["asset-1"].DuplicateID != "" || store.assets["asset-2"].DuplicateID != "" {
		t.Error("expected the group to be dissolved")
	}
}

func TestDuplicatesHandler_Resolve_KeepNotInGroup(t *testing.T) {
	handler, _ := newDuplicatesFixture()

	req := withUser(httptest.NewRequest("POST", "/api/v1/duplicates/group-1/resolve",
		strings.NewReader(`{"keep_asset_id": "asset-3"}`)), "user-1")
	req = requestWithChiParams(req, map[string]string{"id": "group-1"})
	recorder := httptest.NewRecorder()

	handler.Resolve(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "keep_asset_id is not part of the group")
}

func TestDuplicatesHandler_Resolve_UnknownGroup(t *testing.T) {
	handler, _ := newDuplicatesFixture()

	req := withUser(httptest.NewRequest("POST", "/api/v1/duplicates/nope/resolve",
		strings.NewReader(`{"keep_asset_id": "asset-1"}`)), "user-1")
	req = requestWithChiParams(req, map[string]string{"id": "nope"})
	recorder := httptest.NewRecorder()

	handler.Resolve(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "duplicate group not found")
}

func TestDuplicatesHandler_Dismiss(t *testing.T) {
	handler, store := newDuplicatesFixture()

	req := withUser(httptest.NewRequest("DELETE", "/api/v1/duplicates/group-1", nil), "user-1")
	req = requestWithChiParams(req, map[string]string{"id": "group-1"})
	recorder := httptest.NewRecorder()

	handler.Dismiss(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	// The group is gone but nothing got archived
	if store.assets["asset-1"].DuplicateID != "" || store.assets["asset-2"].DuplicateID != "" {
		t.Error("expected the group to be dissolved")
	}
	if store.assets["asset-1"].IsArchived || store.assets["asset-2"].IsArchived {
		t.Error("expected assets to stay visible")
	}
}

func TestDuplicatesHandler_StartDetection(t *testing.T) {
	handler, _ := newDuplicatesFixture()

	req := withUser(httptest.NewRequest("POST", "/api/v1/duplicates/detect", nil), "user-1")
	recorder := httptest.NewRecorder()

	handler.StartDetection(recorder, req)

	assertStatusCode(t, recorder, http.StatusAccepted)

	var resp map[string]string
	parseJSONResponse(t, recorder, &resp)
	jobID := resp["job_id"]
	if jobID == "" {
		t.Fatal("expected a job id")
	}

	// The run has no unchecked assets so it finishes almost immediately
	deadline := time.Now().Add(2 * time.Second)
	for {
		job := handler.jobManager.GetJob(jobID)
		if job == nil {
			t.Fatal("expected job to be tracked")
		}
		status := job.GetStatus()
		if status == JobStatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not complete, status %s", status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	statusReq := withUser(httptest.NewRequest("GET", "/api/v1/duplicates/detect/"+jobID, nil), "user-1")
	statusReq = requestWithChiParams(statusReq, map[string]string{"jobId": jobID})
	statusRecorder := httptest.NewRecorder()

	handler.DetectionStatus(statusRecorder, statusReq)

	assertStatusCode(t, statusRecorder, http.StatusOK)
}

func TestDuplicatesHandler_DetectionStatus_UnknownJob(t *testing.T) {
	handler, _ := newDuplicatesFixture()

	req := withUser(httptest.NewRequest("GET", "/api/v1/duplicates/detect/ghost", nil), "user-1")
	req = requestWithChiParams(req, map[string]string{"jobId": "ghost"})
	recorder := httptest.NewRecorder()

	handler.DetectionStatus(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "job not found")
}

func TestDuplicatesHandler_CancelDetection_UnknownJob(t *testing.T) {
	handler, _ := newDuplicatesFixture()

	req := withUser(httptest.NewRequest("DELETE", "/api/v1/duplicates/detect/ghost", nil), "user-1")
	req = requestWithChiParams(req, map[string]string{"jobId": "ghost"})
	recorder := httptest.NewRecorder()

	handler.CancelDetection(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}
