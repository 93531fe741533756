// internal/models/mpi.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MPIStatus string

const (
	StatusDraft    MPIStatus = "draft"
	StatusInReview MPIStatus = "in-review"
	StatusApproved MPIStatus = "approved"
	StatusRejected MPIStatus = "rejected"
	StatusArchived MPIStatus = "archived"
)

func (s MPIStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusInReview, StatusApproved, StatusRejected, StatusArchived:
		return true
	}
	return false
}

type Section struct {
	ID          string   `bson:"id" json:"id"`
	Title       string   `bson:"title" json:"title"`
	Content     string   `bson:"content" json:"content"`
	Order       int      `bson:"order" json:"order"`
	IsCollapsed bool     `bson:"isCollapsed" json:"isCollapsed"`
	Images      []string `bson:"images" json:"images"`
}

type VersionEntry struct {
	Version      string    `bson:"version" json:"version"`
	Date         time.Time `bson:"date" json:"date"`
	Description  string    `bson:"description" json:"description"`
	EngineerName string    `bson:"engineerName" json:"engineerName"`
}

// MPI is the Manufacturing Process Instructions aggregate. DocsID and CustomerID point at the
// mirror records written alongside it.
type MPI struct {
	ID                   primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	JobNumber            string              `bson:"jobNumber" json:"jobNumber"`
	OldJobNumber         string              `bson:"oldJobNumber,omitempty" json:"oldJobNumber,omitempty"`
	MpiNumber            string              `bson:"mpiNumber" json:"mpiNumber"`
	MpiVersion           string              `bson:"mpiVersion,omitempty" json:"mpiVersion,omitempty"`
	EngineerID           primitive.ObjectID  `bson:"engineerId" json:"engineerId"`
	CustomerCompanyID    primitive.ObjectID  `bson:"customerCompanyId" json:"customerCompanyId"`
	FormID               string              `bson:"formId,omitempty" json:"formId,omitempty"`
	FormRev              string              `bson:"formRev,omitempty" json:"formRev,omitempty"`
	CustomerAssemblyName string              `bson:"customerAssemblyName" json:"customerAssemblyName"`
	AssemblyRev          string              `bson:"assemblyRev" json:"assemblyRev"`
	DrawingName          string              `bson:"drawingName" json:"drawingName"`
	DrawingRev           string              `bson:"drawingRev" json:"drawingRev"`
	AssemblyQuantity     int                 `bson:"assemblyQuantity" json:"assemblyQuantity"`
	KitReceivedDate      Date                `bson:"kitReceivedDate" json:"kitReceivedDate"`
	DateReleased         *Date               `bson:"dateReleased,omitempty" json:"dateReleased,omitempty"`
	Pages                int                 `bson:"pages,omitempty" json:"pages,omitempty"`
	Sections             []Section           `bson:"sections" json:"sections"`
	Status               MPIStatus           `bson:"status" json:"status"`
	VersionHistory       []VersionEntry      `bson:"versionHistory" json:"versionHistory"`
	DocsID               *primitive.ObjectID `bson:"docsId,omitempty" json:"docsId,omitempty"`
	CustomerID           *primitive.ObjectID `bson:"customerId,omitempty" json:"customerId,omitempty"`
	IsActive             bool                `bson:"isActive" json:"isActive"`
	CreatedAt            time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// Docs is the document-control mirror of an MPI.
type Docs struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	JobNo       string              `bson:"jobNo,omitempty" json:"jobNo,omitempty"`
	OldJobNo    string              `bson:"oldJobNo,omitempty" json:"oldJobNo,omitempty"`
	MpiNo       string              `bson:"mpiNo,omitempty" json:"mpiNo,omitempty"`
	MpiRev      string              `bson:"mpiRev,omitempty" json:"mpiRev,omitempty"`
	ProcessItem string              `bson:"processItem" json:"processItem"`
	DocID       string              `bson:"docId" json:"docId"`
	FormID      string              `bson:"formId" json:"formId"`
	FormRev     string              `bson:"formRev" json:"formRev"`
	MpiID       *primitive.ObjectID `bson:"mpiId,omitempty" json:"mpiId,omitempty"`
	IsActive    bool                `bson:"isActive" json:"isActive"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// Customer is the assembly-tracking mirror of an MPI.
type Customer struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	CustomerCompanyID primitive.ObjectID  `bson:"customerCompanyId" json:"customerCompanyId"`
	AssemblyName      string              `bson:"assemblyName" json:"assemblyName"`
	AssemblyRev       string              `bson:"assemblyRev" json:"assemblyRev"`
	DrawingName       string              `bson:"drawingName" json:"drawingName"`
	DrawingRev        string              `bson:"drawingRev" json:"drawingRev"`
	AssemblyQuantity  int                 `bson:"assemblyQuantity" json:"assemblyQuantity"`
	KitReceivedDate   Date                `bson:"kitReceivedDate" json:"kitReceivedDate"`
	KitCompleteDate   *Date               `bson:"kitCompleteDate,omitempty" json:"kitCompleteDate,omitempty"`
	Comments          string              `bson:"comments,omitempty" json:"comments,omitempty"`
	EngineerID        primitive.ObjectID  `bson:"engineerId" json:"engineerId"`
	MpiID             *primitive.ObjectID `bson:"mpiId,omitempty" json:"mpiId,omitempty"`
	IsActive          bool                `bson:"isActive" json:"isActive"`
	CreatedAt         time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time           `bson:"updatedAt" json:"updatedAt"`
}
