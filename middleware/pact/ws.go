package pact

import "net/http"

// handleEventsWS streams ledger events to a websocket client as JSON, one
// message per event. Slow clients fall behind on their subscription buffer
// and are disconnected on the first write failure.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	events, cancel := s.ledger.Events().Subscribe(128)
	defer cancel()
	defer conn.Close()

	// Reader loop only to notice the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
