package reflectx

import "strings"

// Segment is one parsed step of a dotted, indexable property path such as "a.b[3].c":
// a name, an optional index, and the remainder of the path below it.
type Segment struct {
	Name     string
	Index    int // -1 when the segment carries no index
	Children string
}

// Tokenize splits expression on its first "." the way §4.2 describes: the part before
// the dot is "name[index?]", the rest is the children expression fed to the next
// recursive call.
func Tokenize(expression string) Segment {
	name := expression
	children := ""
	if i := strings.IndexByte(expression, '.'); i >= 0 {
		name = expression[:i]
		children = expression[i+1:]
	}

	index := -1
	if open := strings.IndexByte(name, '['); open >= 0 {
		if close := strings.IndexByte(name, ']'); close > open {
			idxStr := name[open+1 : close]
			idx := 0
			for _, r := range idxStr {
				if r < '0' || r > '9' {
					idx = -1
					break
				}
				idx = idx*10 + int(r-'0')
			}
			index = idx
			name = name[:open]
		}
	}

	return Segment{Name: name, Index: index, Children: children}
}
