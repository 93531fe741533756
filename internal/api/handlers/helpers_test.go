package handlers_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/require"

	"pcba-mpi-api-server/internal/testutil"
)

// doRaw sends the token as the whole Authorization header, without the Bearer scheme.
func doRaw(env *testutil.TestEnv, method, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, http.NoBody)
	req.Header.Set("Authorization", authorization)
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	return w
}

func uploadFile(t *testing.T, env *testutil.TestEnv, path, token, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	return w
}

// createCompany adds a customer company through the API and returns its id.
func createCompany(t *testing.T, env *testutil.TestEnv, token, name string) string {
	t.Helper()
	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/customer-companies", map[string]string{
		"companyName": name,
		"city":        "Springfield",
		"state":       "IL",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return testutil.ParseResponse(w)["id"].(string)
}

// createMPI posts a minimal MPI with explicit numbers and returns the decoded body.
func createMPI(t *testing.T, env *testutil.TestEnv, token, companyID, jobNumber, mpiNumber string) map[string]interface{} {
	t.Helper()
	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/mpi", map[string]interface{}{
		"customerCompanyId":    companyID,
		"jobNumber":            jobNumber,
		"mpiNumber":            mpiNumber,
		"customerAssemblyName": "BoardA",
		"assemblyRev":          "A",
		"drawingName":          "DwgA",
		"drawingRev":           "1",
		"assemblyQuantity":     10,
		"kitReceivedDate":      "2024-01-01",
		"processItem":          "SMT",
		"docId":                "DOC-1",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return testutil.ParseResponse(w)
}
