package session

import (
	"time"

	"github.com/krew-solutions/ascetic-query-go/asceticquery/session/identitymap"
	"github.com/krew-solutions/ascetic-query-go/asceticquery/signals"
)

// Observed carries the identity map and query signals shared by the
// sessions of one unit of work. Session implementations embed it.
type Observed struct {
	identityMap    *identitymap.IdentityMap
	onQueryStarted signals.Signal[QueryStartedEvent]
	onQueryEnded   signals.Signal[QueryEndedEvent]
}

func NewObserved(identityMap *identitymap.IdentityMap) Observed {
	return Observed{
		identityMap:    identityMap,
		onQueryStarted: signals.NewSignal[QueryStartedEvent](),
		onQueryEnded:   signals.NewSignal[QueryEndedEvent](),
	}
}

func (o Observed) IdentityMap() *identitymap.IdentityMap {
	return o.identityMap
}

func (o Observed) OnQueryStarted() signals.Signal[QueryStartedEvent] {
	return o.onQueryStarted
}

func (o Observed) OnQueryEnded() signals.Signal[QueryEndedEvent] {
	return o.onQueryEnded
}

// Track announces query on s and returns the func announcing its end.
func Track(s DbSession, query string, params []any) (end func(err error)) {
	s.OnQueryStarted().Notify(QueryStartedEvent{Query: query, Params: params, Session: s})
	started := time.Now()
	return func(err error) {
		s.OnQueryEnded().Notify(QueryEndedEvent{
			Query:        query,
			Params:       params,
			Session:      s,
			ResponseTime: time.Since(started),
			Err:          err,
		})
	}
}
