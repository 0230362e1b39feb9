package racedb

import "errors"

// ErrRaceNotFound indicates the referenced race does not exist. Handlers treat
// it as a domain failure (failure event, ack) rather than retrying.
var ErrRaceNotFound = errors.New("race not found")

// ErrRevisionConflict is returned after the optimistic update's single
// internal retry also lost its revision check.
var ErrRevisionConflict = errors.New("race revision conflict")

// ErrNoChange lets a mutation short-circuit an UpdateRace call into a no-op
// read: nothing is written and no conflict can occur.
var ErrNoChange = errors.New("no change")
