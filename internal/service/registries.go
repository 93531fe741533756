package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pcba-mpi-api-server/internal/apperr"
	"pcba-mpi-api-server/internal/cache"
	"pcba-mpi-api-server/internal/logger"
	"pcba-mpi-api-server/internal/models"
	"pcba-mpi-api-server/internal/store"
	"pcba-mpi-api-server/internal/validation"
)

const maxTaskWords = 150

type (
	CompanyRegistry    = Registry[models.CustomerCompany, *models.CustomerCompany]
	FormRegistry       = Registry[models.Form, *models.Form]
	DocumentIDRegistry = Registry[models.DocumentID, *models.DocumentID]
	CategoryRegistry   = Registry[models.ProcessItem, *models.ProcessItem]
	TaskRegistry       = Registry[models.Task, *models.Task]
)

// Registries bundles one registry per reference entity.
type Registries struct {
	Companies   *CompanyRegistry
	Forms       *FormRegistry
	DocumentIDs *DocumentIDRegistry
	Categories  *CategoryService
	Tasks       *TaskRegistry
}

func NewRegistries(db store.Database, c cache.Cache, log *logger.Logger) *Registries {
	companies := NewRegistry[models.CustomerCompany](db, c, log, RegistrySpec[models.CustomerCompany]{
		Name:       "Customer company",
		Collection: store.CustomerCompanies,
		KeyFields:  []string{"companyName"},
		Key:        func(m *models.CustomerCompany) []interface{} { return []interface{}{m.CompanyName} },
		SortField:  "companyName",
		Validate: func(m *models.CustomerCompany) error {
			trim(&m.CompanyName, &m.City, &m.State, &m.ContactPerson, &m.Email, &m.Phone, &m.Address)
			if m.CompanyName == "" || m.City == "" || m.State == "" {
				return apperr.Validation("companyName, city and state are required")
			}
			return nil
		},
		Delete: SoftDelete,
	})

	forms := NewRegistry[models.Form](db, c, log, RegistrySpec[models.Form]{
		Name:       "Form",
		Collection: store.Forms,
		KeyFields:  []string{"formId", "formRev"},
		Key:        func(m *models.Form) []interface{} { return []interface{}{m.FormID, m.FormRev} },
		SortField:  "formId",
		Validate: func(m *models.Form) error {
			trim(&m.FormID, &m.FormRev, &m.Description)
			if m.FormID == "" || m.FormRev == "" {
				return apperr.Validation("formId and formRev are required")
			}
			return nil
		},
		Delete: SoftDelete,
	})

	docIDs := NewRegistry[models.DocumentID](db, c, log, RegistrySpec[models.DocumentID]{
		Name:       "Document ID",
		Collection: store.DocumentIDs,
		KeyFields:  []string{"docId"},
		Key:        func(m *models.DocumentID) []interface{} { return []interface{}{m.DocID} },
		SortField:  "docId",
		Validate: func(m *models.DocumentID) error {
			trim(&m.DocID, &m.Description)
			if m.DocID == "" {
				return apperr.Validation("docId is required")
			}
			return nil
		},
		Delete: SoftDelete,
	})

	categoryColl := db.Collection(store.ProcessItems)
	taskColl := db.Collection(store.Tasks)
	taskLog := log.With("registry", store.Tasks)
	var tasks *TaskRegistry

	categories := NewRegistry[models.ProcessItem](db, c, log, RegistrySpec[models.ProcessItem]{
		Name:       "Category",
		Collection: store.ProcessItems,
		KeyFields:  []string{"categoryName"},
		Key:        func(m *models.ProcessItem) []interface{} { return []interface{}{m.CategoryName} },
		SortField:  "categoryName",
		Validate: func(m *models.ProcessItem) error {
			trim(&m.CategoryName)
			if m.CategoryName == "" {
				return apperr.Validation("categoryName is required")
			}
			if m.Steps == nil {
				m.Steps = []models.ProcessStep{}
			}
			return nil
		},
		Prepare: stampCreator[models.ProcessItem](func(m *models.ProcessItem) (*primitive.ObjectID, *string) {
			return &m.CreatedBy, &m.CreatedByModel
		}),
		// Tasks carry a copy of the category name.
		AfterUpdate: func(ctx context.Context, prev, cur *models.ProcessItem) {
			if prev.CategoryName == cur.CategoryName {
				return
			}
			_, err := taskColl.UpdateMany(ctx, bson.M{"processItem": cur.ID}, bson.M{"$set": bson.M{"categoryName": cur.CategoryName}})
			if err != nil {
				taskLog.Warn("task category names not updated", "category", cur.ID.Hex(), "error", err)
				return
			}
			tasks.invalidate(ctx)
		},
		Delete: HardDelete,
		CanDelete: func(_ context.Context, m *models.ProcessItem) error {
			if len(m.Steps) > 0 {
				return apperr.New(apperr.KindHasDependents, "Cannot delete a category that still has steps")
			}
			return nil
		},
		Derived: []string{"steps", "usageCount"},
	})

	categorySvc := &CategoryService{CategoryRegistry: categories}

	// adjustUsage keeps a category's usageCount in step with its tasks. It never goes below zero.
	adjustUsage := func(ctx context.Context, category primitive.ObjectID, delta int) {
		filter := bson.M{"_id": category}
		if delta < 0 {
			filter["usageCount"] = bson.M{"$gt": 0}
		}
		if _, err := categoryColl.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"usageCount": delta}}); err != nil {
			taskLog.Warn("category usage count not adjusted", "category", category.Hex(), "delta", delta, "error", err)
			return
		}
		categorySvc.invalidate(ctx)
	}

	creator := stampCreator[models.Task](func(m *models.Task) (*primitive.ObjectID, *string) {
		return &m.CreatedBy, &m.CreatedByModel
	})
	tasks = NewRegistry[models.Task](db, c, log, RegistrySpec[models.Task]{
		Name:       "Task",
		Collection: store.Tasks,
		KeyFields:  []string{"processItem", "step"},
		Key:        func(m *models.Task) []interface{} { return []interface{}{m.ProcessItem, m.Step} },
		SortField:  "step",
		Validate: func(m *models.Task) error {
			trim(&m.Step)
			if m.Step == "" {
				return apperr.Validation("step is required")
			}
			if m.ProcessItem.IsZero() {
				return apperr.Validation("processItem is required")
			}
			if validation.WordCount(m.Step) > maxTaskWords {
				return apperr.Validation("step must be at most %d words", maxTaskWords)
			}
			return nil
		},
		// The category name is copied onto the task so lists need no join.
		Prepare: func(ctx context.Context, actor Actor, m *models.Task) error {
			var category models.ProcessItem
			err := categoryColl.FindOne(ctx, bson.M{"_id": m.ProcessItem, "isActive": true}, &category)
			if err != nil {
				return storeErr(err, "Category not found", "", "Failed to fetch category")
			}
			m.CategoryName = category.CategoryName
			return creator(ctx, actor, m)
		},
		AfterCreate: func(ctx context.Context, m *models.Task) {
			adjustUsage(ctx, m.ProcessItem, 1)
		},
		AfterUpdate: func(ctx context.Context, prev, cur *models.Task) {
			if prev.ProcessItem == cur.ProcessItem {
				return
			}
			adjustUsage(ctx, prev.ProcessItem, -1)
			adjustUsage(ctx, cur.ProcessItem, 1)
		},
		AfterDelete: func(ctx context.Context, m *models.Task) {
			adjustUsage(ctx, m.ProcessItem, -1)
		},
		Delete:  HardDelete,
		Derived: []string{"usageCount"},
	})

	return &Registries{
		Companies:   companies,
		Forms:       forms,
		DocumentIDs: docIDs,
		Categories:  categorySvc,
		Tasks:       tasks,
	}
}

// stampCreator records who created a record, leaving existing values alone on update.
func stampCreator[T any](fields func(*T) (*primitive.ObjectID, *string)) func(context.Context, Actor, *T) error {
	return func(_ context.Context, actor Actor, m *T) error {
		by, model := fields(m)
		if by.IsZero() {
			*by = actor.ID
			*model = actor.ModelName()
		}
		return nil
	}
}

func trim(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}

// CategoryService adds step management to the category registry.
type CategoryService struct {
	*CategoryRegistry
}

type StepRequest struct {
	Title    string `json:"title" binding:"required,notblank"`
	Content  string `json:"content"`
	Order    *int   `json:"order"`
	IsActive *bool  `json:"isActive"`
}

type StepUpdateRequest struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	Order    *int    `json:"order"`
	IsActive *bool   `json:"isActive"`
}

// AddStep appends a step. Without an explicit order it goes last.
func (s *CategoryService) AddStep(ctx context.Context, actor Actor, categoryID string, req StepRequest) (*models.ProcessItem, error) {
	if blank(req.Title) {
		return nil, apperr.Validation("title is required")
	}
	category, err := s.Get(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	step := models.ProcessStep{
		ID:       uuid.NewString(),
		Title:    strings.TrimSpace(req.Title),
		Content:  req.Content,
		Order:    len(category.Steps),
		IsActive: true,
	}
	if req.Order != nil {
		step.Order = *req.Order
	}
	if req.IsActive != nil {
		step.IsActive = *req.IsActive
	}
	return s.writeSteps(ctx, bson.M{"_id": category.ID}, bson.M{
		"$push": bson.M{"steps": bson.M{"$each": []models.ProcessStep{step}, "$sort": bson.D{{Key: "order", Value: 1}}}},
	}, "Category not found")
}

func (s *CategoryService) UpdateStep(ctx context.Context, actor Actor, categoryID, stepID string, req StepUpdateRequest) (*models.ProcessItem, error) {
	category, err := s.Get(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if findStep(category.Steps, stepID) < 0 {
		return nil, apperr.NotFound("Step not found")
	}
	set := bson.M{}
	if req.Title != nil {
		if blank(*req.Title) {
			return nil, apperr.Validation("title cannot be empty")
		}
		set["steps.$.title"] = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		set["steps.$.content"] = *req.Content
	}
	if req.Order != nil {
		set["steps.$.order"] = *req.Order
	}
	if req.IsActive != nil {
		set["steps.$.isActive"] = *req.IsActive
	}

	filter := bson.M{"_id": category.ID, "steps.id": stepID}
	if len(set) == 0 {
		return s.writeSteps(ctx, filter, nil, "Step not found")
	}
	updated, err := s.writeSteps(ctx, filter, bson.M{"$set": set}, "Step not found")
	if err != nil || req.Order == nil {
		return updated, err
	}
	// An empty $each re-sorts the array in place.
	return s.writeSteps(ctx, bson.M{"_id": category.ID}, bson.M{
		"$push": bson.M{"steps": bson.M{"$each": []models.ProcessStep{}, "$sort": bson.D{{Key: "order", Value: 1}}}},
	}, "Category not found")
}

// DeleteStep removes the step outright.
func (s *CategoryService) DeleteStep(ctx context.Context, actor Actor, categoryID, stepID string) (*models.ProcessItem, error) {
	category, err := s.Get(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	return s.writeSteps(ctx, bson.M{"_id": category.ID, "steps.id": stepID}, bson.M{
		"$pull": bson.M{"steps": bson.M{"id": stepID}},
	}, "Step not found")
}

// writeSteps applies a targeted steps update and returns the stored category. A nil update
// only checks that filter still matches.
func (s *CategoryService) writeSteps(ctx context.Context, filter, update bson.M, notFound string) (*models.ProcessItem, error) {
	if update == nil {
		n, err := s.coll.CountDocuments(ctx, filter)
		if err != nil {
			return nil, apperr.Internal(err, "Failed to update category")
		}
		if n == 0 {
			return nil, apperr.NotFound("%s", notFound)
		}
	} else {
		set, _ := update["$set"].(bson.M)
		if set == nil {
			set = bson.M{}
			update["$set"] = set
		}
		set["updatedAt"] = s.now()
		matched, err := s.coll.UpdateOne(ctx, filter, update)
		if err != nil {
			return nil, storeErr(err, notFound, "", "Failed to update category")
		}
		if matched == 0 {
			return nil, apperr.NotFound("%s", notFound)
		}
		s.invalidate(ctx)
	}
	category := new(models.ProcessItem)
	if err := s.coll.FindOne(ctx, bson.M{"_id": filter["_id"]}, category); err != nil {
		return nil, storeErr(err, notFound, "", "Failed to fetch category")
	}
	return category, nil
}

func findStep(steps []models.ProcessStep, id string) int {
	for i, st := range steps {
		if st.ID == id {
			return i
		}
	}
	return -1
}
