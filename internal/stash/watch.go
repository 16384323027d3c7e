package stash

// Watch returns a channel receiving the latest State after every change,
// starting with the current one. Slow readers only miss intermediate
// states, never the latest. The channel is closed by cancel or Close.
func (s *Stash) Watch() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	// Registered before the first snapshot: a change applied after it is
	// published to ch too.
	s.nextWatcher++
	id := s.nextWatcher
	s.watchers[id] = ch
	ch <- s.State()

	return ch, func() {
		s.watchMu.Lock()
		defer s.watchMu.Unlock()
		if c, ok := s.watchers[id]; ok {
			close(c)
			delete(s.watchers, id)
		}
	}
}

// publish hands snap to every watcher, replacing an unread older state.
func (s *Stash) publish(snap State) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	// Snapshots are taken under the model lock but published after it is
	// released, so an older one can arrive late.
	if snap.Version <= s.published {
		return
	}
	s.published = snap.Version

	for _, ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
