package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcba-mpi-api-server/internal/testutil"
)

func TestCompanyCRUD(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token, _ := env.SignupEngineer("eve@example.com", "Eve")

	id := createCompany(t, env, token, "Acme")

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/customer-companies", map[string]string{
		"companyName": "ACME", "city": "Elsewhere", "state": "CA",
	}, token)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Customer company already exists", testutil.ParseResponse(w)["error"])

	w = testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/customer-companies/"+id, map[string]string{
		"city": "Shelbyville",
	}, token)
	require.Equal(t, http.StatusOK, w.Code)
	resp := testutil.ParseResponse(w)
	assert.Equal(t, "Shelbyville", resp["city"])
	assert.Equal(t, "Acme", resp["companyName"])

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/customer-companies", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, testutil.ParseList(w), 1)

	w = testutil.DoRequest(env.Router, http.MethodDelete, "/api/v1/customer-companies/"+id, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Customer company deleted successfully", testutil.ParseResponse(w)["message"])

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/customer-companies", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, testutil.ParseList(w))

	// A soft-deleted name is free again.
	createCompany(t, env, token, "acme")
}

func TestRegistryValidation(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token, _ := env.SignupEngineer("eve@example.com", "Eve")

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/customer-companies", map[string]string{
		"companyName": "Acme",
	}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", testutil.ParseResponse(w)["code"])

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/forms/not-an-id", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid ID format", testutil.ParseResponse(w)["error"])

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/forms/507f1f77bcf86cd799439011", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFormCompositeKey(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token, _ := env.SignupEngineer("eve@example.com", "Eve")

	post := func(formID, rev string) int {
		return testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/forms", map[string]string{
			"formId": formID, "formRev": rev,
		}, token).Code
	}
	assert.Equal(t, http.StatusCreated, post("QF-100", "A"))
	assert.Equal(t, http.StatusCreated, post("QF-100", "B"))
	assert.Equal(t, http.StatusConflict, post("qf-100", "a"))
}

func TestCategoryStepsAndTasks(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token, _ := env.SignupEngineer("eve@example.com", "Eve")

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/categories", map[string]string{
		"categoryName": "SMT",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	categoryID := testutil.ParseResponse(w)["id"].(string)

	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/categories/"+categoryID+"/steps", map[string]interface{}{
		"title": "Print paste", "content": "Use stencil 4 mil",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	steps := testutil.ParseResponse(w)["steps"].([]interface{})
	require.Len(t, steps, 1)
	stepID := steps[0].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(env.Router, http.MethodDelete, "/api/v1/categories/"+categoryID, nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "has_dependents", testutil.ParseResponse(w)["code"])

	w = testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/categories/"+categoryID+"/steps/"+stepID, map[string]interface{}{
		"title": "Print solder paste",
	}, token)
	require.Equal(t, http.StatusOK, w.Code)
	step := testutil.ParseResponse(w)["steps"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Print solder paste", step["title"])
	assert.Equal(t, "Use stencil 4 mil", step["content"])

	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/tasks", map[string]string{
		"step": "Inspect paste deposit", "processItem": categoryID,
	}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "SMT", testutil.ParseResponse(w)["categoryName"])

	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/tasks", map[string]string{
		"step": strings.Repeat("word ", 151), "processItem": categoryID,
	}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "step must be at most 150 words", testutil.ParseResponse(w)["error"])

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/categories/"+categoryID, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, testutil.ParseResponse(w)["usageCount"])

	w = testutil.DoRequest(env.Router, http.MethodDelete, "/api/v1/categories/"+categoryID+"/steps/"+stepID, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	w = testutil.DoRequest(env.Router, http.MethodDelete, "/api/v1/categories/"+categoryID, nil, token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTaskUnknownCategory(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token, _ := env.SignupEngineer("eve@example.com", "Eve")

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/tasks", map[string]string{
		"step": "Inspect", "processItem": "507f1f77bcf86cd799439011",
	}, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRegistryListIncludesInactive(t *testing.T) {
	env := testutil.NewTestEnv(t)
	adminToken, _ := env.SignupAdmin("root@example.com", "Root")
	engineerToken, _ := env.SignupEngineer("eve@example.com", "Eve")

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/document-ids", map[string]string{"docId": "DOC-1"}, engineerToken)
	require.Equal(t, http.StatusCreated, w.Code)
	id := testutil.ParseResponse(w)["id"].(string)
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/document-ids", map[string]string{"docId": "DOC-2"}, engineerToken)
	require.Equal(t, http.StatusCreated, w.Code)

	w = testutil.DoRequest(env.Router, http.MethodDelete, "/api/v1/document-ids/"+id, nil, engineerToken)
	require.Equal(t, http.StatusOK, w.Code)

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/document-ids", nil, engineerToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, testutil.ParseList(w), 1)

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/admin/document-ids", nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, testutil.ParseList(w), 2)

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/admin/document-ids", nil, engineerToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Direct lookup still finds the soft-deleted row.
	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/document-ids/"+id, nil, engineerToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, testutil.ParseResponse(w)["isActive"])
}

func TestCompanyUpdateClearsOptionalField(t *testing.T) {
	env := testutil.NewTestEnv(t)
	token, _ := env.SignupEngineer("eve@example.com", "Eve")

	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/customer-companies", map[string]string{
		"companyName": "Acme", "city": "Springfield", "state": "IL", "contactPerson": "Bob", "phone": "555-0100",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := testutil.ParseResponse(w)["id"].(string)

	w = testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/customer-companies/"+id, map[string]string{
		"contactPerson": "",
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/customer-companies/"+id, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	resp := testutil.ParseResponse(w)
	assert.NotContains(t, resp, "contactPerson")
	assert.Equal(t, "555-0100", resp["phone"])
}
