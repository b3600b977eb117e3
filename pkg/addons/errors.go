package addons

import "fmt"

type attrRangeError struct {
	Name  string
	Value float64
}

func (e *attrRangeError) Error() string {
	return fmt.Sprintf("attribute %q: value %g out of range", e.Name, e.Value)
}
