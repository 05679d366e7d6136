package identitymap

type absentRecord struct{}

var absent = &absentRecord{}

type isolationStrategy interface {
	add(key Key, value any)
	addAbsent(key Key)
	get(key Key) (any, error)
	has(key Key) bool
}

type disabledStrategy struct{}

func (disabledStrategy) add(Key, any)  {}
func (disabledStrategy) addAbsent(Key) {}
func (disabledStrategy) has(Key) bool  { return false }
func (disabledStrategy) get(Key) (any, error) {
	return nil, ErrKeyNotFound
}

// repeatableReadsStrategy caches existent records only.
type repeatableReadsStrategy struct {
	cache *lruCache
}

func (s *repeatableReadsStrategy) add(key Key, value any) {
	s.cache.add(key, value)
}

func (s *repeatableReadsStrategy) addAbsent(Key) {}

func (s *repeatableReadsStrategy) get(key Key) (any, error) {
	value, ok := s.cache.get(key)
	if !ok || value == absent {
		return nil, ErrKeyNotFound
	}
	return value, nil
}

func (s *repeatableReadsStrategy) has(key Key) bool {
	value, ok := s.cache.get(key)
	return ok && value != absent
}

type serializableStrategy struct {
	cache *lruCache
}

func (s *serializableStrategy) add(key Key, value any) {
	s.cache.add(key, value)
}

func (s *serializableStrategy) addAbsent(key Key) {
	s.cache.add(key, absent)
}

func (s *serializableStrategy) get(key Key) (any, error) {
	value, ok := s.cache.get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	if value == absent {
		return nil, ErrObjectNotFound
	}
	return value, nil
}

func (s *serializableStrategy) has(key Key) bool {
	return s.cache.has(key)
}
