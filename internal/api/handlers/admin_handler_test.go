package handlers_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pcba-mpi-api-server/internal/testutil"
)

func TestEngineerManagement(t *testing.T) {
	env := testutil.NewTestEnv(t)
	adminToken, _ := env.SignupAdmin("root@example.com", "Root")
	_, engineerID := env.SignupEngineer("eve@example.com", "Eve")

	w := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/admin/engineers", nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, testutil.ParseList(w), 1)

	w = testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/admin/engineers/"+engineerID+"/status", map[string]interface{}{}, adminToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/admin/engineers/"+engineerID+"/status", map[string]bool{"isActive": false}, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, testutil.ParseResponse(w)["isActive"])

	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "eve@example.com", "password": testutil.Password, "userType": "engineer",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = testutil.DoRequest(env.Router, http.MethodDelete, "/api/v1/admin/engineers/"+engineerID, nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	w = testutil.DoRequest(env.Router, http.MethodDelete, "/api/v1/admin/engineers/"+engineerID, nil, adminToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminMPIReview(t *testing.T) {
	env := testutil.NewTestEnv(t)
	adminToken, _ := env.SignupAdmin("root@example.com", "Root")
	engineerToken, _ := env.SignupEngineer("eve@example.com", "Eve")
	companyID := createCompany(t, env, engineerToken, "Acme")
	id := createMPI(t, env, engineerToken, companyID, "U000001", "MPI-000001")["id"].(string)
	createMPI(t, env, engineerToken, companyID, "U000002", "MPI-000002")

	w := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/admin/mpis", nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, testutil.ParseList(w), 2)

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/admin/mpis/"+id, nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)

	w = testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/admin/mpis/"+id+"/status", map[string]string{"status": "published"}, adminToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/admin/mpis/"+id+"/status", map[string]string{"status": "approved"}, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "approved", testutil.ParseResponse(w)["status"])

	// Any status can follow any other.
	w = testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/admin/mpis/"+id+"/status", map[string]string{"status": "draft"}, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	w = testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/admin/mpis/"+id+"/status", map[string]string{"status": "approved"}, adminToken)
	require.Equal(t, http.StatusOK, w.Code)

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/admin/mpis?status=approved", nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	approved := testutil.ParseList(w)
	require.Len(t, approved, 1)
	assert.Equal(t, id, approved[0]["id"])

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/admin/mpis?status=bogus", nil, adminToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/admin/mpis/reconcile", nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	report := testutil.ParseResponse(w)
	assert.EqualValues(t, 2, report["scanned"])
	assert.EqualValues(t, 0, report["failures"])
}

func TestExportMPIs(t *testing.T) {
	env := testutil.NewTestEnv(t)
	adminToken, _ := env.SignupAdmin("root@example.com", "Root")
	engineerToken, _ := env.SignupEngineer("eve@example.com", "Eve")
	companyID := createCompany(t, env, engineerToken, "Acme")
	createMPI(t, env, engineerToken, companyID, "U000001", "MPI-000001")

	w := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/admin/mpis/export", nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), `attachment; filename="mpi-register-`))

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("MPIs")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "U000001", rows[1][0])
	assert.Equal(t, "Acme", rows[1][3])
	assert.Equal(t, "Eve", rows[1][10])
}

func TestStatusChangePushedOverWebsocket(t *testing.T) {
	env := testutil.NewTestEnv(t)
	adminToken, _ := env.SignupAdmin("root@example.com", "Root")
	engineerToken, engineerID := env.SignupEngineer("eve@example.com", "Eve")
	companyID := createCompany(t, env, engineerToken, "Acme")
	id := createMPI(t, env, engineerToken, companyID, "U000001", "MPI-000001")["id"].(string)

	srv := httptest.NewServer(env.Router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?token=" + engineerToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return env.Hub.Online(engineerID) }, time.Second, 10*time.Millisecond)

	w := testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/admin/mpis/"+id+"/status", map[string]string{"status": "in-review"}, adminToken)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event map[string]interface{}
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "mpi_status_changed", event["event"])
	assert.Equal(t, id, event["mpiId"])
	assert.Equal(t, "in-review", event["status"])
}

func TestWebsocketRejectsMissingToken(t *testing.T) {
	env := testutil.NewTestEnv(t)

	w := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/ws", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/ws?token=garbage", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_token", testutil.ParseResponse(w)["code"])
}
