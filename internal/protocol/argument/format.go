package argument

import (
	"fmt"
	"strings"
)

// Format renders the debug representation of a:
//
//	(005) <68656c6c 6f> (hello)
//
// The trailing text form is only present when every byte is printable.
func (a *Argument) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "(%03d) <", len(a.data))
	printable := true
	for i, c := range a.data {
		fmt.Fprintf(&b, "%02x", c)
		if i%4 == 3 && i != len(a.data)-1 {
			b.WriteByte(' ')
		}
		if c < 0x20 || c > 0x7e {
			printable = false
		}
	}
	b.WriteByte('>')
	if printable {
		b.WriteString(" (")
		b.Write(a.data)
		b.WriteByte(')')
	}
	return b.String()
}

func (a *Argument) String() string {
	return a.Format()
}
