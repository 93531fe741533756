// internal/models/principal.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Principal is an authenticated actor. Admins and engineers live in separate collections
// but share this shape.
type Principal struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName     string             `bson:"fullName" json:"fullName"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password" json:"-"`
	Title        string             `bson:"title,omitempty" json:"title,omitempty"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	Role         string             `bson:"-" json:"role"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}
