package message

// AnyLength accepts an argument of any length in a Shape.
const AnyLength = -1

// Shape describes the arguments a message id is expected to carry.
type Shape struct {
	Variadic bool
	Lengths  []int
}

// Fixed requires exactly len(lengths) arguments. Each entry is the exact
// byte length of the argument at that position, or AnyLength.
func Fixed(lengths ...int) Shape {
	return Shape{Lengths: lengths}
}

// Variadic accepts any number of arguments of any length.
func Variadic() Shape {
	return Shape{Variadic: true}
}

// Conforms reports whether m matches s.
func (m *Message) Conforms(s Shape) bool {
	if s.Variadic {
		return true
	}
	if len(m.args) != len(s.Lengths) {
		return false
	}
	for i, want := range s.Lengths {
		if m.args[i] == nil {
			return false
		}
		if want >= 0 && m.args[i].Len() != want {
			return false
		}
	}
	return true
}
