package storage

// Modify is a single change of the underlying storage.
type Modify struct {
	Data interface{}
}

type Put struct {
	Key   []byte
	Value []byte
}

type Delete struct {
	Key []byte
}

func (m *Modify) Key() []byte {
	switch m.Data.(type) {
	case Put:
		return m.Data.(Put).Key
	case Delete:
		return m.Data.(Delete).Key
	}
	return nil
}

func (m *Modify) Value() []byte {
	if putData, ok := m.Data.(Put); ok {
		return putData.Value
	}
	return nil
}

func NewPut(key, value []byte) Modify {
	return Modify{Data: Put{Key: key, Value: value}}
}

func NewDelete(key []byte) Modify {
	return Modify{Data: Delete{Key: key}}
}
