package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcba-mpi-api-server/internal/testutil"
)

func TestMPILifecycle(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token, engineerID := env.SignupEngineer("eve@example.com", "Eve")
	companyID := createCompany(t, env, token, "Acme")

	mpi := createMPI(t, env, token, companyID, "U000001", "MPI-000001")
	id := mpi["id"].(string)
	assert.Equal(t, "draft", mpi["status"])
	assert.Equal(t, engineerID, mpi["engineerId"])
	assert.Len(t, mpi["sections"], 20)
	assert.Equal(t, "2024-01-01", mpi["kitReceivedDate"])
	history := mpi["versionHistory"].([]interface{})
	require.Len(t, history, 1)
	assert.Equal(t, "Rev A", history[0].(map[string]interface{})["version"])
	assert.NotEmpty(t, mpi["docsId"])
	assert.NotEmpty(t, mpi["customerId"])

	w := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/mpi/"+id, nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/mpi/"+id, map[string]interface{}{
		"drawingRev":         "2",
		"mpiVersion":         "Rev B",
		"versionDescription": "Drawing update",
	}, token)
	require.Equal(t, http.StatusOK, w.Code)
	updated := testutil.ParseResponse(w)
	assert.Equal(t, "2", updated["drawingRev"])
	assert.Equal(t, "BoardA", updated["customerAssemblyName"])

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/mpi", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, testutil.ParseList(w), 1)

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/docs", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	docs := testutil.ParseList(w)
	require.Len(t, docs, 1)
	assert.Equal(t, "U000001", docs[0]["jobNo"])

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/customers", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	customers := testutil.ParseList(w)
	require.Len(t, customers, 1)
	assert.Equal(t, "2", customers[0]["drawingRev"])

	w = testutil.DoRequest(env.Router, http.MethodDelete, "/api/v1/mpi/"+id, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/mpi/"+id, nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMPIOwnership(t *testing.T) {
	env := testutil.NewTestEnv(t)
	eve, _ := env.SignupEngineer("eve@example.com", "Eve")
	bob, _ := env.SignupEngineer("bob@example.com", "Bob")
	companyID := createCompany(t, env, eve, "Acme")
	id := createMPI(t, env, eve, companyID, "U000001", "MPI-000001")["id"].(string)

	w := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/mpi/"+id, nil, bob)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/mpi/"+id, map[string]string{"drawingRev": "9"}, bob)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = testutil.DoRequest(env.Router, http.MethodDelete, "/api/v1/mpi/"+id, nil, bob)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/mpi", nil, bob)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, testutil.ParseList(w))
}

func TestMPIDuplicateNumbers(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token, _ := env.SignupEngineer("eve@example.com", "Eve")
	companyID := createCompany(t, env, token, "Acme")
	createMPI(t, env, token, companyID, "U000001", "MPI-000001")

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/mpi", map[string]interface{}{
		"customerCompanyId": companyID,
		"jobNumber":         "U000001",
		"mpiNumber":         "MPI-000002",
	}, token)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/mpi", map[string]interface{}{
		"customerCompanyId": companyID,
	}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNextNumbers(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token, _ := env.SignupEngineer("eve@example.com", "Eve")

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/mpi/job-numbers", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "U000001", testutil.ParseResponse(w)["jobNumber"])

	companyID := createCompany(t, env, token, "Acme")
	createMPI(t, env, token, companyID, "U000001", "MPI-000001")

	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/mpi/job-numbers", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "U000002", testutil.ParseResponse(w)["jobNumber"])

	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/mpi/mpi-numbers", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MPI-000002", testutil.ParseResponse(w)["mpiNumber"])

	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/mpi", map[string]interface{}{
		"customerCompanyId": companyID,
		"autoAssignNumbers": true,
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := testutil.ParseResponse(w)
	assert.Equal(t, "U000002", created["jobNumber"])
	assert.Equal(t, "MPI-000002", created["mpiNumber"])
}

func TestUploadSectionImage(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token, _ := env.SignupEngineer("eve@example.com", "Eve")
	companyID := createCompany(t, env, token, "Acme")
	mpi := createMPI(t, env, token, companyID, "U000001", "MPI-000001")
	id := mpi["id"].(string)
	sectionID := mpi["sections"].([]interface{})[0].(map[string]interface{})["id"].(string)
	path := "/api/v1/mpi/" + id + "/sections/" + sectionID + "/images"

	w := uploadFile(t, env, path, token, "board.PNG", "image/png", []byte("\x89PNG fake"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	section := testutil.ParseResponse(w)["sections"].([]interface{})[0].(map[string]interface{})
	images := section["images"].([]interface{})
	require.Len(t, images, 1)
	assert.Contains(t, images[0], "https://cdn.test/mpi/"+id+"/"+sectionID+"/")
	assert.Contains(t, images[0], ".png")
	require.Len(t, env.Images.Keys, 1)

	w = uploadFile(t, env, path, token, "notes.txt", "text/plain", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = uploadFile(t, env, "/api/v1/mpi/"+id+"/sections/missing/images", token, "a.png", "image/png", []byte("x"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
