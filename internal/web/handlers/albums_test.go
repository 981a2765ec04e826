package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mhrabal/photovault/internal/database"
)

func newAlbumsFixture() (*AlbumsHandler, *memStore) {
	store := newMemStore()
	store.assets["asset-1"] = database.Asset{ID: "asset-1", OwnerID: "user-1", Type: database.AssetTypeImage}
	store.assets["asset-2"] = database.Asset{ID: "asset-2", OwnerID: "user-1", Type: database.AssetTypeImage}
	store.albums["album-1"] = database.Album{
		ID:            "album-1",
		OwnerID:       "user-1",
		Name:          "Holidays",
		SharedUserIDs: []string{"user-2"},
	}
	store.albumLinks["album-1"] = map[string]bool{"asset-1": true}

	handler := NewAlbumsHandler(albumStore{store}, assetStore{store})
	return handler, store
}

func TestAlbumsHandler_List(t *testing.T) {
	handler, _ := newAlbumsFixture()

	req := withUser(httptest.NewRequest("GET", "/api/v1/albums", nil), "user-1")
	recorder := httptest.NewRecorder()

	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp []AlbumResponse
	parseJSONResponse(t, recorder, &resp)
	if len(resp) != 1 {
		t.Fatalf("expected 1 album, got %d", len(resp))
	}
	if resp[0].AssetCount != 1 {
		t.Errorf("expected asset count 1, got %d", resp[0].AssetCount)
	}
}

func TestAlbumsHandler_List_SharedUser(t *testing.T) {
	handler, _ := newAlbumsFixture()

	req := withUser(httptest.NewRequest("GET", "/api/v1/albums", nil), "user-2")
	recorder := httptest.NewRecorder()

	handler.List(recorder, req)

	var resp []AlbumResponse
	parseJSONResponse(t, recorder, &resp)
	if len(resp) != 1 {
		t.Errorf("expected shared album to be listed, got %d albums", len(resp))
	}
}

func TestAlbumsHandler_Get_NoAccess(t *testing.T) {
	handler, _ := newAlbumsFixture()

	req := withUser(httptest.NewRequest("GET", "/api/v1/albums/album-1", nil), "user-3")
	req = requestWithChiParams(req, map[string]string{"id": "album-1"})
	recorder := httptest.NewRecorder()

	handler.Get(recorder, req)

	// Inaccessible albums look like missing ones
	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "album not found")
}

func TestAlbumsHandler_Create(t *testing.T) {
	handler, store := newAlbumsFixture()

	req := withUser(httptest.NewRequest("POST", "/api/v1/albums",
		strings.NewReader(`{"name": "Trips", "description": "Road trips"}`)), "user-1")
	recorder := httptest.NewRecorder()

	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusCreated)

	var resp AlbumResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Name != "Trips" {
		t.Errorf("expected name 'Trips', got '%s'", resp.Name)
	}
	if resp.OwnerID != "user-1" {
		t.Errorf("expected owner 'user-1', got '%s'", resp.OwnerID)
	}
	if _, exists := store.albums[resp.ID]; !exists {
		t.Error("expected album to be persisted")
	}
}

func TestAlbumsHandler_Create_MissingName(t *testing.T) {
	handler, _ := newAlbumsFixture()

	req := withUser(httptest.NewRequest("POST", "/api/v1/albums",
		strings.NewReader(`{"description": "no name"}`)), "user-1")
	recorder := httptest.NewRecorder()

	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "name is required")
}

func TestAlbumsHandler_Update_SharedUserForbidden(t *testing.T) {
	handler, _ := newAlbumsFixture()

	req := withUser(httptest.NewRequest("PUT", "/api/v1/albums/album-1",
		strings.NewReader(`{"name": "Renamed"}`)), "user-2")
	req = requestWithChiParams(req, map[string]string{"id": "album-1"})
	recorder := httptest.NewRecorder()

	handler.Update(recorder, req)

	assertStatusCode(t, recorder, http.StatusForbidden)
	assertJSONError(t, recorder, "only the album owner may do this")
}

func TestAlbumsHandler_Update(t *testing.T) {
	handler, store := newAlbumsFixture()

	req := withUser(httptest.NewRequest("PUT", "/api/v1/albums/album-1",
		strings.NewReader(`{"name": "Renamed", "description": "New"}`)), "user-1")
	req = requestWithChiParams(req, map[string]string{"id": "album-1"})
	recorder := httptest.NewRecorder()

	handler.Update(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if store.albums["album-1"].Name != "Renamed" {
		t.Errorf("expected name 'Renamed', got '%s'", store.albums["album-1"].Name)
	}
}

func TestAlbumsHandler_Delete_KeepsAssets(t *testing.T) {
	handler, store := newAlbumsFixture()

	req := withUser(httptest.NewRequest("DELETE", "/api/v1/albums/album-1", nil), "user-1")
	req = requestWithChiParams(req, map[string]string{"id": "album-1"})
	recorder := httptest.NewRecorder()

	handler.Delete(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if _, exists := store.albums["album-1"]; exists {
		t.Error("expected album to be deleted")
	}
	if _, exists := store.assets["asset-1"]; !exists {
		t.Error("expected assets to survive album deletion")
	}
}

func TestAlbumsHandler_GetAssets(t *testing.T) {
	handler, _ := newAlbumsFixture()

	req := withUser(httptest.NewRequest("GET", "/api/v1/albums/album-1/assets", nil), "user-2")
	req = requestWithChiParams(req, map[string]string{"id": "album-1"})
	recorder := httptest.NewRecorder()

	handler.GetAssets(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp struct {
		Assets []AssetResponse `json:"assets"`
	}
	parseJSONResponse(t, recorder, &resp)
	if len(resp.Assets) != 1 || resp.Assets[0].ID != "asset-1" {
		t.Errorf("expected album to contain asset-1, got %+v", resp.Assets)
	}
}

func TestAlbumsHandler_AddAssets(t *testing.T) {
	handler, store := newAlbumsFixture()

	req := withUser(httptest.NewRequest("POST", "/api/v1/albums/album-1/assets",
		strings.NewReader(`{"asset_ids": ["asset-1", "asset-2"]}`)), "user-1")
	req = requestWithChiParams(req, map[string]string{"id": "album-1"})
	recorder := httptest.NewRecorder()

	handler.AddAssets(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp map[string]int
	parseJSONResponse(t, recorder, &resp)
	// asset-1 is already in the album so only asset-2 counts
	if resp["added"] != 1 {
		t.Errorf("expected 1 added, got %d", resp["added"])
	}
	if !store.albumLinks["album-1"]["asset-2"] {
		t.Error("expected asset-2 to be linked")
	}
}

func TestAlbumsHandler_AddAssets_EmptyList(t *testing.T) {
	handler, _ := newAlbumsFixture()

	req := withUser(httptest.NewRequest("POST", "/api/v1/albums/album-1/assets",
		strings.NewReader(`{"asset_ids": []}`)), "user-1")
	req = requestWithChiParams(req, map[string]string{"id": "album-1"})
	recorder := httptest.NewRecorder()

	handler.AddAssets(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "asset_ids is required")
}

func TestAlbumsHandler_RemoveAssets(t *testing.T) {
	handler, store := newAlbumsFixture()

	req := withUser(httptest.NewRequest("DELETE", "/api/v1/albums/album-1/assets",
		strings.NewReader(`{"asset_ids": ["asset-1"]}`)), "user-1")
	req = requestWithChiParams(req, map[string]string{"id": "album-1"})
	recorder := httptest.NewRecorder()

	handler.RemoveAssets(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp map[string]int
	parseJSONResponse(t, recorder, &resp)
	if resp["removed"] != 1 {
		t.Errorf("expected 1 removed, got %d", resp["removed"])
	}
	if store.albumLinks["album-1"]["asset-1"] {
		t.Error("expected asset-1 to be unlinked")
	}
}

func TestAlbumsHandler_AddAssets_SharedUserForeignAsset(t *testing.T) {
	handler, store := newAlbumsFixture()
	store.assets["private-1"] = database.Asset{ID: "private-1", OwnerID: "user-3", Type: database.AssetTypeImage}

	req := withUser(httptest.NewRequest("POST", "/api/v1/albums/album-1/assets",
		strings.NewReader(`{"asset_ids": ["private-1"]}`)), "user-2")
	req = requestWithChiParams(req, map[string]string{"id": "album-1"})
	recorder := httptest.NewRecorder()

	handler.AddAssets(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp map[string]int
	parseJSONResponse(t, recorder, &resp)
	if resp["added"] != 0 {
		t.Errorf("expected 0 added, got %d", resp["added"])
	}
	if store.albumLinks["album-1"]["private-1"] {
		t.Error("expected foreign asset to stay out of the album")
	}
}

func TestAlbumsHandler_RemoveAssets_SharedUserForeignAsset(t *testing.T) {
	handler, store := newAlbumsFixture()

	req := withUser(httptest.NewRequest("DELETE", "/api/v1/albums/album-1/assets",
		strings.NewReader(`{"asset_ids": ["asset-1"]}`)), "user-2")
	req = requestWithChiParams(req, map[string]string{"id": "album-1"})
	recorder := httptest.NewRecorder()

	handler.RemoveAssets(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp map[string]int
	parseJSONResponse(t, recorder, &resp)
	if resp["removed"] != 0 {
		t.Errorf("expected 0 removed, got %d", resp["removed"])
	}
	if !store.albumLinks["album-1"]["asset-1"] {
		t.Error("expected the owner's asset to stay linked")
	}
}

func TestAlbumsHandler_ClearAssets_SharedUserForbidden(t *testing.T) {
	handler, store := newAlbumsFixture()

	req := withUser(httptest.NewRequest("DELETE", "/api/v1/albums/album-1/assets/all", nil), "user-2")
	req = requestWithChiParams(req, map[string]string{"id": "album-1"})
	recorder := httptest.NewRecorder()

	handler.ClearAssets(recorder, req)

	assertStatusCode(t, recorder, http.StatusForbidden)
	if len(store.albumLinks["album-1"]) != 1 {
		t.Error("expected the album to keep its assets")
	}
}

func TestAlbumsHandler_ClearAssets(t *testing.T) {
	handler, store := newAlbumsFixture()

	req := withUser(httptest.NewRequest("DELETE", "/api/v1/albums/album-1/assets/all", nil), "user-1")
	req = requestWithChiParams(req, map[string]string{"id": "album-1"})
	recorder := httptest.NewRecorder()

	handler.ClearAssets(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp map[string]int
	parseJSONResponse(t, recorder, &resp)
	if resp["removed"] != 1 {
		t.Errorf("expected 1 removed, got %d", resp["removed"])
	}
	if len(store.albumLinks["album-1"]) != 0 {
		t.Error("expected album-1 to be empty")
	}
}

func TestAlbumsHandler_Share(t *testing.T) {
	handler, store := newAlbumsFixture()

	req := withUser(httptest.NewRequest("POST", "/api/v1/albums/album-1/share",
		strings.NewReader(`{"user_id": "user-3"}`)), "user-1")
	req = requestWithChiParams(req, map[string]string{"id": "album-1"})
	recorder := httptest.NewRecorder()

	handler.Share(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if !contains(store.albums["album-1"].SharedUserIDs, "user-3") {
		t.Error("expected album to be shared with user-3")
	}
}

func TestAlbumsHandler_Share_WithOwner(t *testing.T) {
	handler, _ := newAlbumsFixture()

	req := withUser(httptest.NewRequest("POST", "/api/v1/albums/album-1/share",
		strings.NewReader(`{"user_id": "user-1"}`)), "user-1")
	req = requestWithChiParams(req, map[string]string{"id": "album-1"})
	recorder := httptest.NewRecorder()

	handler.Share(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "cannot share an album with its owner")
}

func TestAlbumsHandler_Unshare(t *testing.T) {
	handler, store := newAlbumsFixture()

	req := withUser(httptest.NewRequest("DELETE", "/api/v1/albums/album-1/share/user-2", nil), "user-1")
	req = requestWithChiParams(req, map[string]string{"id": "album-1", "userId": "user-2"})
	recorder := httptest.NewRecorder()

	handler.Unshare(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if contains(store.albums["album-1"].SharedUserIDs, "user-2") {
		t.Error("expected user-2 to lose access")
	}
}
