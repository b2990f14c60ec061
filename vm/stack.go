package vm

const (
	STACK_LIMIT = 256 // Maximum call stack depth
)

// CallStack holds the return addresses pushed by branch-and-link.
type CallStack struct {
	Data []int
}

// Push a return address.
func (s *CallStack) Push(value int) (err error) {
	if s.Full() {
		err = ErrCallStackOverflow
		return
	}
	s.Data = append(s.Data, value)
	return
}

// Pop the most recent return address.
func (s *CallStack) Pop() (value int, err error) {
	value, ok := s.Peek()
	if !ok {
		err = ErrCallStackUnderflow
		return
	}
	s.Data = s.Data[:len(s.Data)-1]
	return
}

func (s *CallStack) Empty() bool {
	return len(s.Data) == 0
}

func (s *CallStack) Full() bool {
	return len(s.Data) == STACK_LIMIT
}

func (s *CallStack) Depth() int {
	return len(s.Data)
}

func (s *CallStack) Peek() (value int, ok bool) {
	if s.Empty() {
		return
	}

	return s.Data[len(s.Data)-1], true
}

func (s *CallStack) Reset() {
	if len(s.Data) > 0 {
		s.Data = s.Data[:0]
	}
}
