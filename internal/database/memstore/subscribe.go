package memstore

import "github.com/dmelo/painel/internal/database"

type subscription struct {
	table   string
	filters []database.Filter
	fn      func(database.Event)
}

// Subscribe implements database.Watcher. fn is invoked synchronously after a
// mutation commits, once per affected row that matches filters.
func (s *Store) Subscribe(table string, filters []database.Filter, fn func(database.Event)) (func(), error) {
	if table == "" {
		return nil, database.NewError(database.KindValidation, "subscribe requires a table")
	}
	if fn == nil {
		return nil, database.NewError(database.KindValidation, "subscribe requires a callback")
	}

	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = &subscription{table: table, filters: filters, fn: fn}
	s.subsMu.Unlock()

	cancel := func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
	return cancel, nil
}

// notify fans an event out to matching subscribers. Called without s.mu held
// so callbacks may re-enter the store.
func (s *Store) notify(ev database.Event) {
	s.subsMu.Lock()
	var targets []*subscription
	for _, sub := range s.subs {
		if sub.table != ev.Table {
			continue
		}
		ok, err := matchAll(ev.Record, sub.filters)
		if err == nil && ok {
			targets = append(targets, sub)
		}
	}
	s.subsMu.Unlock()

	for _, sub := range targets {
		sub.fn(ev)
	}
}
