package models

import (
	"math"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	UID          string `json:"id,omitempty"`
	MobileNumber string `json:"mobileNumber"`
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	Pass         string `json:"-"`
	Role         string `json:"role"`
}

// Credentials identify a user at login either by mobile number or by email.
type Credentials struct {
	MobileNumber string
	Email        string
	Pass         string
}

// UserUpdate carries the fields to change; nil means "leave as is".
// Pass is plaintext, storage hashes it.
type UserUpdate struct {
	MobileNumber *string
	Email        *string
	Name         *string
	Pass         *string
	Role         *string
}

func (u UserUpdate) Empty() bool {
	return u.MobileNumber == nil && u.Email == nil && u.Name == nil && u.Pass == nil && u.Role == nil
}

type Book struct {
	BID      string `json:"id,omitempty"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Genre    string `json:"genre"`
	Year     int    `json:"year,omitempty"`
	Quantity int    `json:"quantity"`
}

type BookUpdate struct {
	Title    *string
	Author   *string
	Genre    *string
	Year     *int
	Quantity *int
}

func (u BookUpdate) Empty() bool {
	return u.Title == nil && u.Author == nil && u.Genre == nil && u.Year == nil && u.Quantity == nil
}

// BookFilter matches books by exact field values. Zero values match everything.
type BookFilter struct {
	Genre  string
	Title  string
	Author string
	Year   int
	Page   Page
}

type Author struct {
	AID  string `json:"id,omitempty"`
	Name string `json:"name"`
	Bio  string `json:"bio,omitempty"`
}

type AuthorUpdate struct {
	Name *string
	Bio  *string
}

func (u AuthorUpdate) Empty() bool {
	return u.Name == nil && u.Bio == nil
}

type Order struct {
	OID      string    `json:"id,omitempty"`
	OrderNo  string    `json:"orderNo"`
	BookID   string    `json:"bookId"`
	UserID   string    `json:"userId"`
	Quantity int       `json:"quantity"`
	Date     time.Time `json:"date"`
}

type OrderUpdate struct {
	Quantity *int
	Date     *time.Time
}

func (u OrderUpdate) Empty() bool {
	return u.Quantity == nil && u.Date == nil
}

// OrderFilter restricts a listing to one user's orders when UserID is set.
type OrderFilter struct {
	UserID string
	Page   Page
}

// Page is an offset/limit window. Limit 0 means no window at all.
type Page struct {
	Page  int
	Limit int
}

// Offset saturates at math.MaxInt, so a page far past the end is empty
// rather than negative.
func (p Page) Offset() int {
	if p.Limit <= 0 || p.Page <= 1 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}
