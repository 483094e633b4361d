package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an account document in the MongoDB users collection.
type User struct {
	ID        primitive.ObjectID `json:"id"         bson:"_id,omitempty"`
	Username  string             `json:"username"   bson:"username"`
	Email     string             `json:"email"      bson:"email"`
	Password  string             `json:"-"          bson:"password"` // bcrypt hash, never serialize
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

// RegisterRequest is the form body for POST /register.
type RegisterRequest struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// LoginRequest is the form body for POST /login. Identifier is matched
// against both username and email.
type LoginRequest struct {
	Identifier string
	Password   string
}
