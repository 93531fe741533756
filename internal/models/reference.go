// internal/models/reference.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CustomerCompany struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CompanyName   string             `bson:"companyName" json:"companyName"`
	City          string             `bson:"city" json:"city"`
	State         string             `bson:"state" json:"state"`
	ContactPerson string             `bson:"contactPerson,omitempty" json:"contactPerson,omitempty"`
	Email         string             `bson:"email,omitempty" json:"email,omitempty"`
	Phone         string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Address       string             `bson:"address,omitempty" json:"address,omitempty"`
	IsActive      bool               `bson:"isActive" json:"isActive"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (c *CustomerCompany) GetID() primitive.ObjectID   { return c.ID }
func (c *CustomerCompany) SetID(id primitive.ObjectID) { c.ID = id }
func (c *CustomerCompany) SetActive(active bool)       { c.IsActive = active }
func (c *CustomerCompany) Stamp(now time.Time)         { stamp(&c.CreatedAt, &c.UpdatedAt, now) }

// Form is a controlled quality form, unique by (formId, formRev).
type Form struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FormID      string             `bson:"formId" json:"formId"`
	FormRev     string             `bson:"formRev" json:"formRev"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	IsActive    bool               `bson:"isActive" json:"isActive"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (f *Form) GetID() primitive.ObjectID   { return f.ID }
func (f *Form) SetID(id primitive.ObjectID) { f.ID = id }
func (f *Form) SetActive(active bool)       { f.IsActive = active }
func (f *Form) Stamp(now time.Time)         { stamp(&f.CreatedAt, &f.UpdatedAt, now) }

type DocumentID struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DocID       string             `bson:"docId" json:"docId"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	IsActive    bool               `bson:"isActive" json:"isActive"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (d *DocumentID) GetID() primitive.ObjectID   { return d.ID }
func (d *DocumentID) SetID(id primitive.ObjectID) { d.ID = id }
func (d *DocumentID) SetActive(active bool)       { d.IsActive = active }
func (d *DocumentID) Stamp(now time.Time)         { stamp(&d.CreatedAt, &d.UpdatedAt, now) }

// ProcessStep is a reusable instruction owned by a ProcessItem category.
type ProcessStep struct {
	ID       string `bson:"id" json:"id"`
	Title    string `bson:"title" json:"title"`
	Content  string `bson:"content" json:"content"`
	Order    int    `bson:"order" json:"order"`
	IsActive bool   `bson:"isActive" json:"isActive"`
}

// ProcessItem is a process-step category.
type ProcessItem struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CategoryName   string             `bson:"categoryName" json:"categoryName"`
	Steps          []ProcessStep      `bson:"steps" json:"steps"`
	UsageCount     int                `bson:"usageCount" json:"usageCount"`
	CreatedBy      primitive.ObjectID `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedByModel string             `bson:"createdByModel,omitempty" json:"createdByModel,omitempty"`
	IsActive       bool               `bson:"isActive" json:"isActive"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (p *ProcessItem) GetID() primitive.ObjectID   { return p.ID }
func (p *ProcessItem) SetID(id primitive.ObjectID) { p.ID = id }
func (p *ProcessItem) SetActive(active bool)       { p.IsActive = active }
func (p *ProcessItem) Stamp(now time.Time)         { stamp(&p.CreatedAt, &p.UpdatedAt, now) }

// Task is a step instance bound to a category. CategoryName is a denormalized copy.
type Task struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Step           string             `bson:"step" json:"step"`
	CategoryName   string             `bson:"categoryName" json:"categoryName"`
	ProcessItem    primitive.ObjectID `bson:"processItem" json:"processItem"`
	UsageCount     int                `bson:"usageCount" json:"usageCount"`
	CreatedBy      primitive.ObjectID `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedByModel string             `bson:"createdByModel,omitempty" json:"createdByModel,omitempty"`
	IsActive       bool               `bson:"isActive" json:"isActive"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (t *Task) GetID() primitive.ObjectID   { return t.ID }
func (t *Task) SetID(id primitive.ObjectID) { t.ID = id }
func (t *Task) SetActive(active bool)       { t.IsActive = active }
func (t *Task) Stamp(now time.Time)         { stamp(&t.CreatedAt, &t.UpdatedAt, now) }

func stamp(created, updated *time.Time, now time.Time) {
	if created.IsZero() {
		*created = now
	}
	*updated = now
}
