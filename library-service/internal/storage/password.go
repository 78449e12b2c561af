package storage

import (
	"strings"

	"golang.org/x/crypto/bcrypt"

	storerrros "github.com/azaliaz/lms/library-service/internal/storage/errors"
)

func hashPassword(pass string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(hash, pass string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass)); err != nil {
		return storerrros.ErrInvalidPassword
	}
	return nil
}

type Driver string

const (
	DriverMongo    Driver = "mongo"
	DriverPostgres Driver = "postgres"
	DriverMemory   Driver = "memory"
)

// DriverFor picks a backend from the DSN scheme. Anything unrecognised
// lands in memory.
func DriverFor(dsn string) Driver {
	scheme, _, ok := strings.Cut(dsn, "://")
	if !ok {
		return DriverMemory
	}
	switch strings.ToLower(scheme) {
	case "mongodb", "mongodb+srv":
		return DriverMongo
	case "postgres", "postgresql":
		return DriverPostgres
	default:
		return DriverMemory
	}
}
