package db

import "errors"

var (
	// ErrKeyNotFound is returned when a read targets a missing key.
	ErrKeyNotFound = errors.New("db: key not found")
	// ErrIndexNotFound is returned when dropping an index that does not exist.
	ErrIndexNotFound = errors.New("db: index not found")
	// ErrIndexExists is returned by CreateIndex when the name is taken.
	ErrIndexExists = errors.New("db: index already exists")
)

// Op names the Redis command that failed.
type Op string

// Commands issued by the store.
const (
	OpCreateIndex Op = "FT.CREATE"
	OpDropIndex   Op = "FT.DROPINDEX"
	OpSearch      Op = "FT.SEARCH"
	OpDel         Op = "DEL"
	OpHGetAll     Op = "HGETALL"
	OpHSet        Op = "HSET"
	OpGet         Op = "GET"
	OpSet         Op = "SET"
	OpEval        Op = "EVAL"
)

// Error attaches the failed command to a driver error.
type Error struct {
	Op  Op
	Err error
}

func (e *Error) Error() string { return string(e.Op) + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }
