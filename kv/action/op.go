package action

// OpType is the kind of a single step of an action body.
type OpType int

const (
	OpGet OpType = iota
	OpPut
	OpDelete
	// OpAdd treats the stored value as a decimal int64 and adds Delta to it. A missing key counts as zero.
	OpAdd
)

func (t OpType) String() string {
	switch t {
	case OpGet:
		return "get"
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	case OpAdd:
		return "add"
	}
	return "unknown"
}

// ParseOpType returns the OpType whose String is name.
func ParseOpType(name string) (OpType, bool) {
	for t := OpGet; t <= OpAdd; t++ {
		if t.String() == name {
			return t, true
		}
	}
	return 0, false
}

// IsWrite returns true for op types that modify the key.
func (t OpType) IsWrite() bool {
	return t != OpGet
}

type Op struct {
	Type  OpType
	Key   string
	Value []byte
	Delta int64
}

// Result is the outcome of one read op.
type Result struct {
	Key   string
	Value []byte
	Found bool
}

func Get(key string) Op {
	return Op{Type: OpGet, Key: key}
}

func Put(key string, value []byte) Op {
	return Op{Type: OpPut, Key: key, Value: value}
}

func Delete(key string) Op {
	return Op{Type: OpDelete, Key: key}
}

func Add(key string, delta int64) Op {
	return Op{Type: OpAdd, Key: key, Delta: delta}
}
