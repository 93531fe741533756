package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pcba-mpi-api-server/internal/apperr"
	"pcba-mpi-api-server/internal/logger"
	"pcba-mpi-api-server/internal/models"
	"pcba-mpi-api-server/internal/store"
)

const (
	initialVersion     = "Rev A"
	initialDescription = "Initial creation"
)

// ImageStore persists uploaded section images and returns their public URL.
type ImageStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

// Notifier pushes an event to a connected user. It reports whether anyone received it.
type Notifier interface {
	SendToUser(userID string, payload interface{}) bool
}

type CreateMPIRequest struct {
	JobNumber            string       `json:"jobNumber"`
	OldJobNumber         string       `json:"oldJobNumber"`
	MpiNumber            string       `json:"mpiNumber"`
	MpiVersion           string       `json:"mpiVersion"`
	CustomerCompanyID    string       `json:"customerCompanyId"`
	FormID               string       `json:"formId"`
	FormRev              string       `json:"formRev"`
	CustomerAssemblyName string       `json:"customerAssemblyName"`
	AssemblyRev          string       `json:"assemblyRev"`
	DrawingName          string       `json:"drawingName"`
	DrawingRev           string       `json:"drawingRev"`
	AssemblyQuantity     int          `json:"assemblyQuantity" binding:"gte=0"`
	KitReceivedDate      models.Date  `json:"kitReceivedDate"`
	DateReleased         *models.Date `json:"dateReleased"`
	Pages                int          `json:"pages" binding:"gte=0"`
	// Mirror-only fields.
	ProcessItem     string       `json:"processItem"`
	DocID           string       `json:"docId"`
	KitCompleteDate *models.Date `json:"kitCompleteDate"`
	Comments        string       `json:"comments"`
	// AutoAssignNumbers allocates jobNumber and/or mpiNumber when they are left empty.
	AutoAssignNumbers bool `json:"autoAssignNumbers"`
}

// UpdateMPIRequest only writes the fields that are present.
type UpdateMPIRequest struct {
	JobNumber            *string           `json:"jobNumber"`
	OldJobNumber         *string           `json:"oldJobNumber"`
	MpiNumber            *string           `json:"mpiNumber"`
	MpiVersion           *string           `json:"mpiVersion"`
	VersionDescription   *string           `json:"versionDescription"`
	CustomerCompanyID    *string           `json:"customerCompanyId"`
	FormID               *string           `json:"formId"`
	FormRev              *string           `json:"formRev"`
	CustomerAssemblyName *string           `json:"customerAssemblyName"`
	AssemblyRev          *string           `json:"assemblyRev"`
	DrawingName          *string           `json:"drawingName"`
	DrawingRev           *string           `json:"drawingRev"`
	AssemblyQuantity     *int              `json:"assemblyQuantity" binding:"omitempty,gte=0"`
	KitReceivedDate      *models.Date      `json:"kitReceivedDate"`
	DateReleased         *models.Date      `json:"dateReleased"`
	Pages                *int              `json:"pages" binding:"omitempty,gte=0"`
	Sections             *[]models.Section `json:"sections"`
	ProcessItem          *string           `json:"processItem"`
	DocID                *string           `json:"docId"`
	KitCompleteDate      *models.Date      `json:"kitCompleteDate"`
	Comments             *string           `json:"comments"`
}

type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// StatusEvent is pushed to the owning engineer when an admin changes an MPI's status.
type StatusEvent struct {
	Event     string           `json:"event"`
	MpiID     string           `json:"mpiId"`
	MpiNumber string           `json:"mpiNumber"`
	Status    models.MPIStatus `json:"status"`
}

// ReconcileReport summarizes a mirror repair sweep.
type ReconcileReport struct {
	Scanned          int `json:"scanned"`
	DocsCreated      int `json:"docsCreated"`
	CustomersCreated int `json:"customersCreated"`
	RefsRepaired     int `json:"refsRepaired"`
	Failures         int `json:"failures"`
}

// RegisterEntry is one MPI with its display names resolved.
type RegisterEntry struct {
	MPI          models.MPI
	CustomerName string
	EngineerName string
}

// MPIService manages MPIs and the Docs/Customer mirror records written alongside them.
// Mirror writes are best effort: failures are logged and never fail the MPI operation.
type MPIService struct {
	mpis      store.Collection
	docs      store.Collection
	customers store.Collection
	companies store.Collection
	engineers store.Collection
	alloc     *Allocator
	images    ImageStore
	notifier  Notifier
	log       *logger.Logger
	now       func() time.Time
}

func NewMPIService(db store.Database, alloc *Allocator, images ImageStore, notifier Notifier, log *logger.Logger) *MPIService {
	return &MPIService{
		mpis:      db.Collection(store.MPIs),
		docs:      db.Collection(store.Docs),
		customers: db.Collection(store.Customers),
		companies: db.Collection(store.CustomerCompanies),
		engineers: db.Collection(store.Engineers),
		alloc:     alloc,
		images:    images,
		notifier:  notifier,
		log:       log,
		now:       utcNow,
	}
}

func (s *MPIService) Create(ctx context.Context, actor Actor, req CreateMPIRequest) (*models.MPI, error) {
	jobNumber := strings.TrimSpace(req.JobNumber)
	mpiNumber := strings.TrimSpace(req.MpiNumber)
	if blank(req.CustomerCompanyID) {
		return nil, apperr.Validation("customerCompanyId is required")
	}
	var auto []NumberKind
	if jobNumber == "" {
		auto = append(auto, JobNumber)
	}
	if mpiNumber == "" {
		auto = append(auto, MpiNumber)
	}
	if len(auto) > 0 && !req.AutoAssignNumbers {
		return nil, apperr.Validation("customerCompanyId, jobNumber and mpiNumber are required")
	}

	companyID, err := s.activeCompany(ctx, req.CustomerCompanyID)
	if err != nil {
		return nil, err
	}
	if jobNumber != "" {
		if err := s.checkNumberFree(ctx, "jobNumber", jobNumber, nil); err != nil {
			return nil, err
		}
	}
	if mpiNumber != "" {
		if err := s.checkNumberFree(ctx, "mpiNumber", mpiNumber, nil); err != nil {
			return nil, err
		}
	}

	now := s.now()
	version := strings.TrimSpace(req.MpiVersion)
	historyVersion := version
	if historyVersion == "" {
		historyVersion = initialVersion
	}
	m := &models.MPI{
		JobNumber:            jobNumber,
		OldJobNumber:         strings.TrimSpace(req.OldJobNumber),
		MpiNumber:            mpiNumber,
		MpiVersion:           version,
		EngineerID:           actor.ID,
		CustomerCompanyID:    companyID,
		FormID:               strings.TrimSpace(req.FormID),
		FormRev:              strings.TrimSpace(req.FormRev),
		CustomerAssemblyName: strings.TrimSpace(req.CustomerAssemblyName),
		AssemblyRev:          strings.TrimSpace(req.AssemblyRev),
		DrawingName:          strings.TrimSpace(req.DrawingName),
		DrawingRev:           strings.TrimSpace(req.DrawingRev),
		AssemblyQuantity:     req.AssemblyQuantity,
		KitReceivedDate:      req.KitReceivedDate,
		DateReleased:         req.DateReleased,
		Pages:                req.Pages,
		Sections:             DefaultSections(),
		Status:               models.StatusDraft,
		VersionHistory: []models.VersionEntry{{
			Version:      historyVersion,
			Date:         now,
			Description:  initialDescription,
			EngineerName: actor.FullName,
		}},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// A collision on a number the caller chose is reported as such, not retried.
	insert := func() error {
		id, err := s.mpis.InsertOne(ctx, m)
		if errors.Is(err, store.ErrDuplicateKey) {
			if jobNumber != "" {
				if taken := s.checkNumberFree(ctx, "jobNumber", jobNumber, nil); taken != nil {
					return taken
				}
			}
			if mpiNumber != "" {
				if taken := s.checkNumberFree(ctx, "mpiNumber", mpiNumber, nil); taken != nil {
					return taken
				}
			}
		}
		if err != nil {
			return err
		}
		m.ID = id
		return nil
	}
	if len(auto) > 0 {
		_, err = s.alloc.Claim(ctx, func(n Numbers) error {
			if n.JobNumber != "" {
				m.JobNumber = n.JobNumber
			}
			if n.MpiNumber != "" {
				m.MpiNumber = n.MpiNumber
			}
			return insert()
		}, auto...)
	} else {
		err = insert()
	}
	if err != nil {
		if apperr.KindOf(err) == apperr.KindDuplicateKey {
			return nil, err
		}
		return nil, storeErr(err, "", "Job number or MPI number already exists", "Failed to create MPI")
	}

	s.log.Info("mpi created", "mpiId", m.ID.Hex(), "jobNumber", m.JobNumber, "mpiNumber", m.MpiNumber)
	s.createMirrors(ctx, m, req)
	return m, nil
}

func (s *MPIService) createMirrors(ctx context.Context, m *models.MPI, req CreateMPIRequest) {
	refs := bson.M{}

	docs := s.docsFor(m, strings.TrimSpace(req.ProcessItem), strings.TrimSpace(req.DocID))
	if id, err := s.docs.InsertOne(ctx, docs); err != nil {
		s.log.Warn("docs mirror not created", "mpiId", m.ID.Hex(), "error", err)
	} else {
		m.DocsID = &id
		refs["docsId"] = id
	}

	customer := s.customerFor(m, req.KitCompleteDate, req.Comments)
	if id, err := s.customers.InsertOne(ctx, customer); err != nil {
		s.log.Warn("customer mirror not created", "mpiId", m.ID.Hex(), "error", err)
	} else {
		m.CustomerID = &id
		refs["customerId"] = id
	}

	if len(refs) == 0 {
		return
	}
	if _, err := s.mpis.UpdateOne(ctx, bson.M{"_id": m.ID}, bson.M{"$set": refs}); err != nil {
		s.log.Warn("mirror references not stored", "mpiId", m.ID.Hex(), "error", err)
	}
}

func (s *MPIService) docsFor(m *models.MPI, processItem, docID string) *models.Docs {
	id := m.ID
	return &models.Docs{
		JobNo:       m.JobNumber,
		OldJobNo:    m.OldJobNumber,
		MpiNo:       m.MpiNumber,
		MpiRev:      m.MpiVersion,
		ProcessItem: processItem,
		DocID:       docID,
		FormID:      m.FormID,
		FormRev:     m.FormRev,
		MpiID:       &id,
		IsActive:    true,
		CreatedAt:   m.UpdatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func (s *MPIService) customerFor(m *models.MPI, kitComplete *models.Date, comments string) *models.Customer {
	id := m.ID
	return &models.Customer{
		CustomerCompanyID: m.CustomerCompanyID,
		AssemblyName:      m.CustomerAssemblyName,
		AssemblyRev:       m.AssemblyRev,
		DrawingName:       m.DrawingName,
		DrawingRev:        m.DrawingRev,
		AssemblyQuantity:  m.AssemblyQuantity,
		KitReceivedDate:   m.KitReceivedDate,
		KitCompleteDate:   kitComplete,
		Comments:          comments,
		EngineerID:        m.EngineerID,
		MpiID:             &id,
		IsActive:          true,
		CreatedAt:         m.UpdatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func (s *MPIService) activeCompany(ctx context.Context, id string) (primitive.ObjectID, error) {
	oid, err := parseID(id)
	if err != nil {
		return primitive.NilObjectID, err
	}
	count, err := s.companies.CountDocuments(ctx, bson.M{"_id": oid, "isActive": true})
	if err != nil {
		return primitive.NilObjectID, apperr.Internal(err, "Failed to check customer company")
	}
	if count == 0 {
		return primitive.NilObjectID, apperr.NotFound("Customer company not found")
	}
	return oid, nil
}

func (s *MPIService) checkNumberFree(ctx context.Context, field, value string, self *primitive.ObjectID) error {
	filter := bson.M{field: value}
	if self != nil {
		filter["_id"] = bson.M{"$ne": *self}
	}
	count, err := s.mpis.CountDocuments(ctx, filter)
	if err != nil {
		return apperr.Internal(err, "Failed to check "+field)
	}
	if count > 0 {
		if field == "jobNumber" {
			return apperr.Duplicate("Job number already exists")
		}
		return apperr.Duplicate("MPI number already exists")
	}
	return nil
}

// owned loads an active MPI belonging to the caller. Someone else's MPI is reported as not found.
func (s *MPIService) owned(ctx context.Context, actor Actor, id string) (*models.MPI, bson.M, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, nil, err
	}
	filter := bson.M{"_id": oid, "engineerId": actor.ID, "isActive": true}
	var m models.MPI
	if err := s.mpis.FindOne(ctx, filter, &m); err != nil {
		return nil, nil, storeErr(err, "MPI not found", "", "Failed to fetch MPI")
	}
	return &m, filter, nil
}

func (s *MPIService) Get(ctx context.Context, actor Actor, id string) (*models.MPI, error) {
	m, _, err := s.owned(ctx, actor, id)
	return m, err
}

// List returns the caller's active MPIs, most recently updated first.
func (s *MPIService) List(ctx context.Context, actor Actor) ([]models.MPI, error) {
	return s.find(ctx, bson.M{"engineerId": actor.ID, "isActive": true})
}

func (s *MPIService) find(ctx context.Context, filter bson.M) ([]models.MPI, error) {
	var out []models.MPI
	opts := store.FindOptions{Sort: bson.D{{Key: "updatedAt", Value: -1}}}
	if err := s.mpis.Find(ctx, filter, opts, &out); err != nil {
		return nil, apperr.Internal(err, "Failed to fetch MPIs")
	}
	if out == nil {
		out = []models.MPI{}
	}
	return out, nil
}

func (s *MPIService) Update(ctx context.Context, actor Actor, id string, req UpdateMPIRequest) (*models.MPI, error) {
	m, filter, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	prev := *m

	if req.JobNumber != nil {
		v := strings.TrimSpace(*req.JobNumber)
		if v == "" {
			return nil, apperr.Validation("jobNumber cannot be empty")
		}
		if v != m.JobNumber {
			if err := s.checkNumberFree(ctx, "jobNumber", v, &m.ID); err != nil {
				return nil, err
			}
		}
		m.JobNumber = v
	}
	if req.MpiNumber != nil {
		v := strings.TrimSpace(*req.MpiNumber)
		if v == "" {
			return nil, apperr.Validation("mpiNumber cannot be empty")
		}
		if v != m.MpiNumber {
			if err := s.checkNumberFree(ctx, "mpiNumber", v, &m.ID); err != nil {
				return nil, err
			}
		}
		m.MpiNumber = v
	}
	if req.CustomerCompanyID != nil {
		companyID, err := s.activeCompany(ctx, *req.CustomerCompanyID)
		if err != nil {
			return nil, err
		}
		m.CustomerCompanyID = companyID
	}
	assign(&m.OldJobNumber, req.OldJobNumber)
	assign(&m.FormID, req.FormID)
	assign(&m.FormRev, req.FormRev)
	assign(&m.CustomerAssemblyName, req.CustomerAssemblyName)
	assign(&m.AssemblyRev, req.AssemblyRev)
	assign(&m.DrawingName, req.DrawingName)
	assign(&m.DrawingRev, req.DrawingRev)
	if req.AssemblyQuantity != nil {
		m.AssemblyQuantity = *req.AssemblyQuantity
	}
	if req.KitReceivedDate != nil {
		m.KitReceivedDate = *req.KitReceivedDate
	}
	if req.DateReleased != nil {
		m.DateReleased = req.DateReleased
	}
	if req.Pages != nil {
		m.Pages = *req.Pages
	}
	if req.Sections != nil {
		sections, err := normalizeSections(*req.Sections)
		if err != nil {
			return nil, err
		}
		m.Sections = sections
	}

	now := s.now()
	if req.MpiVersion != nil {
		v := strings.TrimSpace(*req.MpiVersion)
		if v != m.MpiVersion {
			description := "Version updated"
			if req.VersionDescription != nil && !blank(*req.VersionDescription) {
				description = strings.TrimSpace(*req.VersionDescription)
			}
			m.VersionHistory = append(m.VersionHistory, models.VersionEntry{
				Version:      v,
				Date:         now,
				Description:  description,
				EngineerName: actor.FullName,
			})
		}
		m.MpiVersion = v
	}
	m.UpdatedAt = now

	// Status and mirror references have their own writers.
	update, err := updateDoc(m, "status", "docsId", "customerId")
	if err != nil {
		return nil, apperr.Internal(err, "Failed to encode MPI")
	}
	matched, err := s.mpis.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, storeErr(err, "MPI not found", "Job number or MPI number already exists", "Failed to update MPI")
	}
	if matched == 0 {
		return nil, apperr.NotFound("MPI not found")
	}

	s.syncMirrors(ctx, &prev, m, req)
	return m, nil
}

func assign(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// normalizeSections fills in missing ids and images and keeps the list ordered.
func normalizeSections(in []models.Section) ([]models.Section, error) {
	out := make([]models.Section, len(in))
	seen := make(map[string]bool, len(in))
	for i, sec := range in {
		if blank(sec.Title) {
			return nil, apperr.Validation("section title is required")
		}
		if sec.ID == "" {
			sec.ID = uuid.NewString()
		}
		if seen[sec.ID] {
			return nil, apperr.Validation("duplicate section id %s", sec.ID)
		}
		seen[sec.ID] = true
		if sec.Images == nil {
			sec.Images = []string{}
		}
		out[i] = sec
	}
	return out, nil
}

// syncMirrors copies the MPI's current values onto its Docs and Customer records. Records are
// found by stored reference, falling back to the pre-update values for rows written before
// references existed.
func (s *MPIService) syncMirrors(ctx context.Context, prev, m *models.MPI, req UpdateMPIRequest) {
	refs := bson.M{}

	var docs models.Docs
	if err := s.docs.FindOne(ctx, docsFilter(prev), &docs); err != nil {
		s.log.Warn("docs mirror not found for sync", "mpiId", m.ID.Hex(), "error", err)
	} else {
		set := bson.M{
			"jobNo":     m.JobNumber,
			"oldJobNo":  m.OldJobNumber,
			"mpiNo":     m.MpiNumber,
			"mpiRev":    m.MpiVersion,
			"formId":    m.FormID,
			"formRev":   m.FormRev,
			"mpiId":     m.ID,
			"updatedAt": m.UpdatedAt,
		}
		if req.ProcessItem != nil {
			set["processItem"] = strings.TrimSpace(*req.ProcessItem)
		}
		if req.DocID != nil {
			set["docId"] = strings.TrimSpace(*req.DocID)
		}
		if _, err := s.docs.UpdateOne(ctx, bson.M{"_id": docs.ID}, bson.M{"$set": set}); err != nil {
			s.log.Warn("docs mirror not synced", "mpiId", m.ID.Hex(), "docsId", docs.ID.Hex(), "error", err)
		} else if m.DocsID == nil || *m.DocsID != docs.ID {
			id := docs.ID
			m.DocsID = &id
			refs["docsId"] = id
		}
	}

	var customer models.Customer
	if err := s.customers.FindOne(ctx, customerFilter(prev), &customer); err != nil {
		s.log.Warn("customer mirror not found for sync", "mpiId", m.ID.Hex(), "error", err)
	} else {
		set := bson.M{
			"customerCompanyId": m.CustomerCompanyID,
			"assemblyName":      m.CustomerAssemblyName,
			"assemblyRev":       m.AssemblyRev,
			"drawingName":       m.DrawingName,
			"drawingRev":        m.DrawingRev,
			"assemblyQuantity":  m.AssemblyQuantity,
			"kitReceivedDate":   m.KitReceivedDate,
			"engineerId":        m.EngineerID,
			"mpiId":             m.ID,
			"updatedAt":         m.UpdatedAt,
		}
		if req.KitCompleteDate != nil {
			set["kitCompleteDate"] = req.KitCompleteDate
		}
		if req.Comments != nil {
			set["comments"] = *req.Comments
		}
		if _, err := s.customers.UpdateOne(ctx, bson.M{"_id": customer.ID}, bson.M{"$set": set}); err != nil {
			s.log.Warn("customer mirror not synced", "mpiId", m.ID.Hex(), "customerId", customer.ID.Hex(), "error", err)
		} else if m.CustomerID == nil || *m.CustomerID != customer.ID {
			id := customer.ID
			m.CustomerID = &id
			refs["customerId"] = id
		}
	}

	if len(refs) > 0 {
		if _, err := s.mpis.UpdateOne(ctx, bson.M{"_id": m.ID}, bson.M{"$set": refs}); err != nil {
			s.log.Warn("mirror references not stored", "mpiId", m.ID.Hex(), "error", err)
		}
	}
}

func docsFilter(m *models.MPI) bson.M {
	if m.DocsID != nil {
		return bson.M{"_id": *m.DocsID}
	}
	return bson.M{"mpiNo": m.MpiNumber}
}

func customerFilter(m *models.MPI) bson.M {
	if m.CustomerID != nil {
		return bson.M{"_id": *m.CustomerID}
	}
	return bson.M{
		"customerCompanyId": m.CustomerCompanyID,
		"assemblyName":      m.CustomerAssemblyName,
		"engineerId":        m.EngineerID,
	}
}

// Delete removes the MPI and, best effort, its mirrors.
func (s *MPIService) Delete(ctx context.Context, actor Actor, id string) error {
	m, filter, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	if _, err := s.docs.DeleteOne(ctx, docsFilter(m)); err != nil {
		s.log.Warn("docs mirror not deleted", "mpiId", m.ID.Hex(), "error", err)
	}
	if _, err := s.customers.DeleteOne(ctx, customerFilter(m)); err != nil {
		s.log.Warn("customer mirror not deleted", "mpiId", m.ID.Hex(), "error", err)
	}
	deleted, err := s.mpis.DeleteOne(ctx, filter)
	if err != nil {
		return apperr.Internal(err, "Failed to delete MPI")
	}
	if deleted == 0 {
		return apperr.NotFound("MPI not found")
	}
	s.log.Info("mpi deleted", "mpiId", m.ID.Hex(), "engineerId", actor.ID.Hex())
	return nil
}

// AdminList returns every MPI, optionally filtered by status.
func (s *MPIService) AdminList(ctx context.Context, status string) ([]models.MPI, error) {
	filter := bson.M{}
	if status != "" {
		st := models.MPIStatus(status)
		if !st.Valid() {
			return nil, apperr.Validation("Invalid status %q", status)
		}
		filter["status"] = st
	}
	return s.find(ctx, filter)
}

func (s *MPIService) AdminGet(ctx context.Context, id string) (*models.MPI, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var m models.MPI
	if err := s.mpis.FindOne(ctx, bson.M{"_id": oid}, &m); err != nil {
		return nil, storeErr(err, "MPI not found", "", "Failed to fetch MPI")
	}
	return &m, nil
}

// SetStatus accepts any status in the enum regardless of the current one.
func (s *MPIService) SetStatus(ctx context.Context, id, status string) (*models.MPI, error) {
	st := models.MPIStatus(status)
	if !st.Valid() {
		return nil, apperr.Validation("Invalid status %q", status)
	}
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	matched, err := s.mpis.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"status": st, "updatedAt": s.now()}})
	if err != nil {
		return nil, apperr.Internal(err, "Failed to update status")
	}
	if matched == 0 {
		return nil, apperr.NotFound("MPI not found")
	}
	m, err := s.AdminGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		delivered := s.notifier.SendToUser(m.EngineerID.Hex(), StatusEvent{
			Event:     "mpi_status_changed",
			MpiID:     m.ID.Hex(),
			MpiNumber: m.MpiNumber,
			Status:    m.Status,
		})
		s.log.Debug("status change pushed", "mpiId", m.ID.Hex(), "delivered", delivered)
	}
	return m, nil
}

// AddSectionImage uploads an image and appends its URL to the section.
func (s *MPIService) AddSectionImage(ctx context.Context, actor Actor, id, sectionID, filename, contentType string, size int64, body io.Reader) (*models.MPI, error) {
	if s.images == nil {
		return nil, apperr.Validation("Image uploads are not configured")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperr.Validation("Only image files are allowed")
	}
	m, filter, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, sec := range m.Sections {
		if sec.ID == sectionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, apperr.NotFound("Section not found")
	}

	key := fmt.Sprintf("mpi/%s/%s/%s%s", m.ID.Hex(), sectionID, uuid.NewString(), strings.ToLower(path.Ext(filename)))
	url, err := s.images.Upload(ctx, key, body, size, contentType)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to upload image")
	}

	m.Sections[idx].Images = append(m.Sections[idx].Images, url)
	m.UpdatedAt = s.now()
	update := bson.M{"$set": bson.M{"sections": m.Sections, "updatedAt": m.UpdatedAt}}
	if _, err := s.mpis.UpdateOne(ctx, filter, update); err != nil {
		return nil, apperr.Internal(err, "Failed to save image")
	}
	return m, nil
}

// Reconcile recreates missing Docs/Customer mirrors and repairs dangling references.
func (s *MPIService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	all, err := s.find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	report := &ReconcileReport{}
	for i := range all {
		m := &all[i]
		report.Scanned++
		refs := bson.M{}

		var docs models.Docs
		err := s.docs.FindOne(ctx, docsFilter(m), &docs)
		if errors.Is(err, store.ErrNotFound) && m.DocsID != nil {
			err = s.docs.FindOne(ctx, bson.M{"mpiNo": m.MpiNumber}, &docs)
		}
		switch {
		case err == nil:
			if m.DocsID == nil || *m.DocsID != docs.ID {
				refs["docsId"] = docs.ID
				report.RefsRepaired++
			}
		case errors.Is(err, store.ErrNotFound):
			id, err := s.docs.InsertOne(ctx, s.docsFor(m, "", ""))
			if err != nil {
				s.log.Warn("reconcile: docs mirror not created", "mpiId", m.ID.Hex(), "error", err)
				report.Failures++
				break
			}
			refs["docsId"] = id
			report.DocsCreated++
		default:
			s.log.Warn("reconcile: docs lookup failed", "mpiId", m.ID.Hex(), "error", err)
			report.Failures++
		}

		var customer models.Customer
		err = s.customers.FindOne(ctx, customerFilter(m), &customer)
		if errors.Is(err, store.ErrNotFound) && m.CustomerID != nil {
			err = s.customers.FindOne(ctx, bson.M{"mpiId": m.ID}, &customer)
		}
		switch {
		case err == nil:
			if m.CustomerID == nil || *m.CustomerID != customer.ID {
				refs["customerId"] = customer.ID
				report.RefsRepaired++
			}
		case errors.Is(err, store.ErrNotFound):
			id, err := s.customers.InsertOne(ctx, s.customerFor(m, nil, ""))
			if err != nil {
				s.log.Warn("reconcile: customer mirror not created", "mpiId", m.ID.Hex(), "error", err)
				report.Failures++
				break
			}
			refs["customerId"] = id
			report.CustomersCreated++
		default:
			s.log.Warn("reconcile: customer lookup failed", "mpiId", m.ID.Hex(), "error", err)
			report.Failures++
		}

		if len(refs) == 0 {
			continue
		}
		if _, err := s.mpis.UpdateOne(ctx, bson.M{"_id": m.ID}, bson.M{"$set": refs}); err != nil {
			s.log.Warn("reconcile: references not stored", "mpiId", m.ID.Hex(), "error", err)
			report.Failures++
		}
	}
	s.log.Info("mirror reconcile finished",
		"scanned", report.Scanned,
		"docsCreated", report.DocsCreated,
		"customersCreated", report.CustomersCreated,
		"refsRepaired", report.RefsRepaired,
		"failures", report.Failures,
	)
	return report, nil
}

// ListDocs returns the Docs mirrors of the caller's MPIs.
func (s *MPIService) ListDocs(ctx context.Context, actor Actor) ([]models.Docs, error) {
	own, err := s.List(ctx, actor)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, len(own))
	for i, m := range own {
		ids[i] = m.ID
	}
	out := []models.Docs{}
	if len(ids) == 0 {
		return out, nil
	}
	opts := store.FindOptions{Sort: bson.D{{Key: "jobNo", Value: 1}}}
	if err := s.docs.Find(ctx, bson.M{"mpiId": bson.M{"$in": ids}}, opts, &out); err != nil {
		return nil, apperr.Internal(err, "Failed to fetch docs")
	}
	return out, nil
}

// ListCustomers returns the Customer mirrors belonging to the caller.
func (s *MPIService) ListCustomers(ctx context.Context, actor Actor) ([]models.Customer, error) {
	out := []models.Customer{}
	opts := store.FindOptions{Sort: bson.D{{Key: "assemblyName", Value: 1}}}
	if err := s.customers.Find(ctx, bson.M{"engineerId": actor.ID, "isActive": true}, opts, &out); err != nil {
		return nil, apperr.Internal(err, "Failed to fetch customers")
	}
	return out, nil
}

// RegisterEntries lists MPIs for export with customer and engineer names resolved.
func (s *MPIService) RegisterEntries(ctx context.Context, status string) ([]RegisterEntry, error) {
	mpis, err := s.AdminList(ctx, status)
	if err != nil {
		return nil, err
	}
	var companies []models.CustomerCompany
	if err := s.companies.Find(ctx, bson.M{}, store.FindOptions{}, &companies); err != nil {
		return nil, apperr.Internal(err, "Failed to fetch customer companies")
	}
	var engineers []models.Principal
	if err := s.engineers.Find(ctx, bson.M{}, store.FindOptions{}, &engineers); err != nil {
		return nil, apperr.Internal(err, "Failed to fetch engineers")
	}
	companyNames := make(map[primitive.ObjectID]string, len(companies))
	for _, c := range companies {
		companyNames[c.ID] = c.CompanyName
	}
	engineerNames := make(map[primitive.ObjectID]string, len(engineers))
	for _, e := range engineers {
		engineerNames[e.ID] = e.FullName
	}

	out := make([]RegisterEntry, len(mpis))
	for i, m := range mpis {
		out[i] = RegisterEntry{
			MPI:          m,
			CustomerName: companyNames[m.CustomerCompanyID],
			EngineerName: engineerNames[m.EngineerID],
		}
	}
	return out, nil
}
