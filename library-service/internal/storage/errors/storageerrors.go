package storerrros

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidPassword = errors.New("invalid password")
	ErrUserExists      = errors.New("user already exists")

	ErrBookNoExist   = errors.New("book does not exist")
	ErrAuthorNoExist = errors.New("author does not exist")

	ErrOrderNoExist = errors.New("order does not exist")
	ErrOrderExists  = errors.New("order already exists")
)
