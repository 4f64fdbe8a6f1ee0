package inmemdb

import (
	"sync"

	"github.com/trezcool/clubhub/core/event"
)

type (
	DB struct {
		event   *eventTable
		checkIn *checkInTable
	}

	eventTable struct {
		sync.RWMutex
		table map[string]*event.Event
	}

	checkInTable struct {
		sync.RWMutex
		table map[string]*event.CheckIn
	}
)

func Open() *DB {
	return &DB{
		event:   &eventTable{table: make(map[string]*event.Event)},
		checkIn: &checkInTable{table: make(map[string]*event.CheckIn)},
	}
}
