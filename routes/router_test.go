package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"civicguardian-be/repository"
	"civicguardian-be/services"
	"civicguardian-be/storage"
	authUtils "civicguardian-be/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	dir    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	issues := repository.NewMemoryIssueRepository()
	users := repository.NewMemoryUserRepository()
	tokens := authUtils.NewTokenManager("router-test-secret-123", time.Hour)
	ledger := services.NewLedger(users, time.Now)

	dir := t.TempDir()
	uploader, err := storage.NewDiskUploader(dir, "/uploads")
	require.NoError(t, err)

	r := NewRouter(Deps{
		Engine:         services.NewEngine(issues, ledger),
		Analytics:      services.NewAnalytics(issues, users, time.Now),
		Identity:       services.NewIdentity(users, ledger, tokens, time.Now),
		Tokens:         tokens,
		Uploader:       uploader,
		AllowOrigins:   []string{"*"},
		UploadDir:      dir,
		RequestTimeout: 5 * time.Second,
	})
	return &testServer{t: t, router: r, dir: dir}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []any {
	t.Helper()
	var out []any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// register creates an account and returns its token.
func (s *testServer) register(name, role, department string) string {
	s.t.Helper()
	body := gin.H{"name": name, "email": name + "@example.com", "password": "secret123"}
	if role != "" {
		body["role"] = role
		body["department"] = department
	}
	w := s.do(http.MethodPost, "/api/auth/register", "", body)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decode(s.t, w)["token"].(string)
}

func (s *testServer) report(token, category string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/issues", token, gin.H{
		"title":       "Pothole on MG Road",
		"description": "Deep pothole near the bus stop",
		"category":    category,
		"latitude":    28.6139,
		"longitude":   77.2090,
		"address":     "MG Road",
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	issue := decode(s.t, w)["issue"].(map[string]any)
	return issue["id"].(string)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", decode(t, w)["status"])
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "http_requests_total")
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.register("asha", "", "")

	w := s.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode(t, w)
	require.Equal(t, "asha@example.com", me["email"])
	require.NotContains(t, me, "password")
	badges := me["badges"].([]any)
	require.Len(t, badges, 1)
	require.Equal(t, "Civic Starter", badges[0].(map[string]any)["name"])

	w = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "ASHA@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotEmpty(t, decode(t, w)["token"])

	w = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "asha@example.com", "password": "wrong-pass"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/auth/register", "", gin.H{"name": "asha", "email": "asha@example.com", "password": "secret123"})
	require.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/auth/register", "", gin.H{"name": "root", "email": "root@example.com", "password": "secret123", "role": "superuser"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIssueLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	reporter := s.register("reporter", "", "")
	officer := s.register("officer", "authority", "Roads")

	id := s.report(reporter, "road")

	w := s.do(http.MethodGet, "/api/issues/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	issue := decode(t, w)
	require.Equal(t, "pending", issue["status"])
	require.EqualValues(t, 5, issue["priority"])
	populated := issue["reporter"].(map[string]any)
	require.Equal(t, "reporter", populated["name"])
	require.EqualValues(t, 10, populated["civicPoints"])
	require.Len(t, issue["timeline"].([]any), 1)

	// upvote toggles
	w = s.do(http.MethodPost, "/api/issues/"+id+"/upvote", officer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"upvoted":true,"upvoteCount":1}`, w.Body.String())
	w = s.do(http.MethodPost, "/api/issues/"+id+"/upvote", officer, nil)
	require.JSONEq(t, `{"upvoted":false,"upvoteCount":0}`, w.Body.String())

	// three positive verifications promote the issue
	for i := 0; i < 3; i++ {
		verifier := s.register(fmt.Sprintf("verifier%d", i), "", "")
		w = s.do(http.MethodPost, "/api/issues/"+id+"/verify", verifier, gin.H{"verified": true, "comment": "seen it"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		if i == 2 {
			body := decode(t, w)
			require.EqualValues(t, 3, body["verificationCount"])
			require.Equal(t, "verified", body["status"])
		}
	}

	w = s.do(http.MethodPost, "/api/issues/"+id+"/verify", reporter, gin.H{"verified": true})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodPost, "/api/issues/"+id+"/verify", reporter, gin.H{"verified": false})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "conflict", decode(t, w)["kind"])

	w = s.do(http.MethodPost, "/api/issues/"+id+"/verify", reporter, gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/issues/"+id+"/comment", officer, gin.H{"text": "crew dispatched"})
	require.Equal(t, http.StatusCreated, w.Code)
	comments := decode(t, w)["comments"].([]any)
	require.Len(t, comments, 1)
	require.Equal(t, "officer", comments[0].(map[string]any)["user"].(map[string]any)["name"])

	// status override is authority only
	w = s.do(http.MethodPut, "/api/issues/"+id+"/status", reporter, gin.H{"status": "resolved"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPut, "/api/issues/"+id+"/status", officer, gin.H{"status": "closed"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/api/issues/"+id+"/status", officer, gin.H{"status": "resolved", "assignedDepartment": "Roads"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode(t, w)["issue"].(map[string]any)
	require.Equal(t, "resolved", updated["status"])
	require.Equal(t, "Roads", updated["assignedDepartment"])
	require.NotNil(t, updated["resolvedAt"])

	w = s.do(http.MethodGet, "/api/issues/"+id, "", nil)
	detail := decode(t, w)
	require.Len(t, detail["verifications"].([]any), 4)
	require.EqualValues(t, 4, detail["verificationCount"])
	require.Len(t, detail["timeline"].([]any), 3)

	w = s.do(http.MethodGet, "/api/analytics/departments", officer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	departments := decodeList(t, w)
	require.Len(t, departments, 1)
	require.EqualValues(t, 100, departments[0].(map[string]any)["resolutionRate"])
}

func TestIssueValidationAndLookup(t *testing.T) {
	s := newTestServer(t)
	token := s.register("asha", "", "")

	w := s.do(http.MethodPost, "/api/issues", "", gin.H{"title": "x"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/issues", token, gin.H{
		"title": "Broken light", "description": "Dark street", "category": "lighting",
		"latitude": 12.97, "longitude": 77.59,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "validation", decode(t, w)["kind"])

	w = s.do(http.MethodPost, "/api/issues", token, gin.H{
		"title": "Broken light", "description": "Dark street", "category": "electricity",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/issues/not-an-id", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/issues/65f000000000000000000000", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "not_found", decode(t, w)["kind"])
}

func TestListingAndMyIssues(t *testing.T) {
	s := newTestServer(t)
	asha := s.register("asha", "", "")
	ravi := s.register("ravi", "", "")

	s.report(asha, "road")
	s.report(asha, "water")
	s.report(ravi, "water")

	w := s.do(http.MethodGet, "/api/issues?category=water&limit=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Len(t, body["issues"].([]any), 1)
	pagination := body["pagination"].(map[string]any)
	require.EqualValues(t, 2, pagination["total"])
	require.EqualValues(t, 2, pagination["pages"])

	w = s.do(http.MethodGet, "/api/issues?lat=28.6139&lng=77.2090&radius=1000", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 3, decode(t, w)["pagination"].(map[string]any)["total"])

	w = s.do(http.MethodGet, "/api/issues?lat=28.6", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/issues?page=abc", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/issues?page=922337203685477580&limit=100", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, decode(t, w)["issues"].([]any))

	w = s.do(http.MethodGet, "/api/issues?lat=NaN&lng=0&radius=1", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/issues?lat=1000&lng=0", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/issues/user/my-issues", asha, nil)
	require.Equal(t, http.StatusOK, w.Code)
	mine := decodeList(t, w)
	require.Len(t, mine, 2)
	require.Equal(t, "asha", mine[0].(map[string]any)["reporter"].(map[string]any)["name"])

	w = s.do(http.MethodGet, "/api/users/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	leaders := decodeList(t, w)
	require.Len(t, leaders, 2)
	require.Equal(t, "asha", leaders[0].(map[string]any)["name"])
	require.EqualValues(t, 20, leaders[0].(map[string]any)["civicPoints"])
}

func TestAnalyticsRoutes(t *testing.T) {
	s := newTestServer(t)
	citizen := s.register("asha", "", "")
	officer := s.register("officer", "authority", "Water")
	s.report(citizen, "water")
	s.report(citizen, "water")

	w := s.do(http.MethodGet, "/api/analytics/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	overview := decode(t, w)["overview"].(map[string]any)
	require.EqualValues(t, 2, overview["totalIssues"])
	require.EqualValues(t, 1, overview["totalUsers"])

	w = s.do(http.MethodGet, "/api/analytics/priority-queue", citizen, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/analytics/priority-queue?limit=1", officer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeList(t, w), 1)

	w = s.do(http.MethodGet, "/api/analytics/priority-queue?limit=500", officer, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/analytics/activity", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeList(t, w), 2)

	w = s.do(http.MethodGet, "/api/analytics/activity?limit=100000", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/analytics/heatmap", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	heatmap := decode(t, w)
	require.Len(t, heatmap["points"].([]any), 2)
	hotspots := heatmap["hotspots"].([]any)
	require.Len(t, hotspots, 1)
	require.Equal(t, "water", hotspots[0].(map[string]any)["dominantCategory"])
}

func (s *testServer) upload(token string, files map[string][]byte) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile("images", name)
		require.NoError(s.t, err)
		_, err = part.Write(content)
		require.NoError(s.t, err)
	}
	require.NoError(s.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestUploadImages(t *testing.T) {
	s := newTestServer(t)
	token := s.register("asha", "", "")

	w := s.upload(token, map[string][]byte{"pothole.png": pngHeader})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	images := decode(t, w)["images"].([]any)
	require.Len(t, images, 1)
	url := images[0].(map[string]any)["url"].(string)
	require.Regexp(t, `^/uploads/[0-9a-f-]{36}\.png$`, url)

	w = s.do(http.MethodGet, url, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, pngHeader, w.Body.Bytes())

	w = s.upload(token, map[string][]byte{"notes.txt": []byte("hello there")})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.upload(token, map[string][]byte{})
	require.Equal(t, http.StatusBadRequest, w.Code)

	many := map[string][]byte{}
	for i := 0; i < 6; i++ {
		many[fmt.Sprintf("%d.png", i)] = pngHeader
	}
	w = s.upload(token, many)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
