package suitefile

import (
	"sync"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Store is the mutable state that suite-file steps act on. It implements testrun.StateProvider;
// every snapshot it returns is immutable, so a test's view of the state does not change when
// a later step updates the store.
type Store struct {
	state ldvalue.Value
	lock  sync.RWMutex
}

// NewStore creates a Store whose state is an object with the given properties.
func NewStore(initial map[string]interface{}) *Store {
	b := ldvalue.ObjectBuild()
	for k, v := range initial {
		b.Set(k, ldvalue.CopyArbitraryValue(v))
	}
	return &Store{state: b.Build()}
}

func (s *Store) State() ldvalue.Value {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state
}

// Set replaces one top-level property.
func (s *Store) Set(key string, value ldvalue.Value) {
	s.lock.Lock()
	s.state = withProperty(s.state, key, value)
	s.lock.Unlock()
}

func withProperty(object ldvalue.Value, key string, value ldvalue.Value) ldvalue.Value {
	b := ldvalue.ObjectBuild()
	for _, k := range object.Keys() {
		b.Set(k, object.GetByKey(k))
	}
	b.Set(key, value)
	return b.Build()
}

// exprEnv converts a state snapshot into the variables visible to expressions.
func exprEnv(state ldvalue.Value) map[string]interface{} {
	if m, ok := state.AsArbitraryValue().(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}
