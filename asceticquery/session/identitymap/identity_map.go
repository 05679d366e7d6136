package identitymap

// IsolationLevel controls how the identity map caches records.
type IsolationLevel int

const (
	ReadUncommitted IsolationLevel = iota // Identity map is disabled
	ReadCommitted                         // Identity map is disabled
	RepeatableReads                       // Prevents repeated loads of existent records only
	Serializable                          // Prevents repeated loads of both existent and nonexistent records
)

// IdentityMap tracks loaded records so that each one is materialized only
// once per session. Not safe for concurrent use.
type IdentityMap struct {
	cache    *lruCache
	strategy isolationStrategy
}

func New(cacheSize int, level IsolationLevel) *IdentityMap {
	m := &IdentityMap{cache: newLruCache(cacheSize)}
	m.SetIsolationLevel(level)
	return m
}

func (m *IdentityMap) SetIsolationLevel(level IsolationLevel) {
	switch level {
	case ReadUncommitted, ReadCommitted:
		m.strategy = disabledStrategy{}
	case RepeatableReads:
		m.strategy = &repeatableReadsStrategy{cache: m.cache}
	default:
		m.strategy = &serializableStrategy{cache: m.cache}
	}
}

func (m *IdentityMap) SetSize(size int) {
	m.cache.setSize(size)
}

func (m *IdentityMap) Clear() {
	m.cache.clear()
}

// Add stores a loaded record.
func (m *IdentityMap) Add(key Key, record any) {
	m.strategy.add(key, record)
}

// AddAbsent records that key was looked up and does not exist.
// Only effective with the Serializable isolation level.
func (m *IdentityMap) AddAbsent(key Key) {
	m.strategy.addAbsent(key)
}

// Get returns ErrKeyNotFound for unknown keys and ErrObjectNotFound for
// keys recorded as absent.
func (m *IdentityMap) Get(key Key) (any, error) {
	return m.strategy.get(key)
}

func (m *IdentityMap) Has(key Key) bool {
	return m.strategy.has(key)
}

func (m *IdentityMap) Remove(key Key) {
	m.cache.remove(key)
}
