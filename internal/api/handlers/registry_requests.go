package handlers

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pcba-mpi-api-server/internal/apperr"
	"pcba-mpi-api-server/internal/models"
)

type CompanyRequest struct {
	CompanyName   string `json:"companyName" binding:"required,notblank"`
	City          string `json:"city" binding:"required,notblank"`
	State         string `json:"state" binding:"required,notblank"`
	ContactPerson string `json:"contactPerson"`
	Email         string `json:"email" binding:"omitempty,email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
}

func (r CompanyRequest) Model() (*models.CustomerCompany, error) {
	return &models.CustomerCompany{
		CompanyName:   r.CompanyName,
		City:          r.City,
		State:         r.State,
		ContactPerson: r.ContactPerson,
		Email:         r.Email,
		Phone:         r.Phone,
		Address:       r.Address,
	}, nil
}

type CompanyUpdate struct {
	CompanyName   *string `json:"companyName"`
	City          *string `json:"city"`
	State         *string `json:"state"`
	ContactPerson *string `json:"contactPerson"`
	Email         *string `json:"email" binding:"omitempty,email"`
	Phone         *string `json:"phone"`
	Address       *string `json:"address"`
}

func (r CompanyUpdate) Apply(m *models.CustomerCompany) error {
	set(&m.CompanyName, r.CompanyName)
	set(&m.City, r.City)
	set(&m.State, r.State)
	set(&m.ContactPerson, r.ContactPerson)
	set(&m.Email, r.Email)
	set(&m.Phone, r.Phone)
	set(&m.Address, r.Address)
	return nil
}

type FormRequest struct {
	FormID      string `json:"formId" binding:"required,notblank"`
	FormRev     string `json:"formRev" binding:"required,notblank"`
	Description string `json:"description"`
}

func (r FormRequest) Model() (*models.Form, error) {
	return &models.Form{FormID: r.FormID, FormRev: r.FormRev, Description: r.Description}, nil
}

type FormUpdate struct {
	FormID      *string `json:"formId"`
	FormRev     *string `json:"formRev"`
	Description *string `json:"description"`
}

func (r FormUpdate) Apply(m *models.Form) error {
	set(&m.FormID, r.FormID)
	set(&m.FormRev, r.FormRev)
	set(&m.Description, r.Description)
	return nil
}

type DocumentIDRequest struct {
	DocID       string `json:"docId" binding:"required,notblank"`
	Description string `json:"description"`
}

func (r DocumentIDRequest) Model() (*models.DocumentID, error) {
	return &models.DocumentID{DocID: r.DocID, Description: r.Description}, nil
}

type DocumentIDUpdate struct {
	DocID       *string `json:"docId"`
	Description *string `json:"description"`
}

func (r DocumentIDUpdate) Apply(m *models.DocumentID) error {
	set(&m.DocID, r.DocID)
	set(&m.Description, r.Description)
	return nil
}

type CategoryRequest struct {
	CategoryName string `json:"categoryName" binding:"required,notblank"`
}

func (r CategoryRequest) Model() (*models.ProcessItem, error) {
	return &models.ProcessItem{CategoryName: r.CategoryName, Steps: []models.ProcessStep{}}, nil
}

type CategoryUpdate struct {
	CategoryName *string `json:"categoryName"`
}

func (r CategoryUpdate) Apply(m *models.ProcessItem) error {
	set(&m.CategoryName, r.CategoryName)
	return nil
}

type TaskRequest struct {
	Step        string `json:"step" binding:"required,notblank,maxwords=150"`
	ProcessItem string `json:"processItem" binding:"required"`
}

func (r TaskRequest) Model() (*models.Task, error) {
	oid, err := objectID(r.ProcessItem)
	if err != nil {
		return nil, err
	}
	return &models.Task{Step: r.Step, ProcessItem: oid}, nil
}

type TaskUpdate struct {
	Step        *string `json:"step" binding:"omitempty,maxwords=150"`
	ProcessItem *string `json:"processItem"`
}

func (r TaskUpdate) Apply(m *models.Task) error {
	set(&m.Step, r.Step)
	if r.ProcessItem != nil {
		oid, err := objectID(*r.ProcessItem)
		if err != nil {
			return err
		}
		m.ProcessItem = oid
	}
	return nil
}

func set(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func objectID(hex string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("Invalid ID format")
	}
	return oid, nil
}
