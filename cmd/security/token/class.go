package token

// Class distinguishes the two token kinds.
type Class uint8

const (
	Access Class = iota + 1
	Refresh
)

func (c Class) String() string {
	switch c {
	case Access:
		return "access"
	case Refresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// typ is the JOSE header value bound to the class.
func (c Class) typ() string {
	switch c {
	case Access:
		return "at+jwt"
	case Refresh:
		return "rt+jwt"
	default:
		return ""
	}
}

func (c Class) valid() bool { return c == Access || c == Refresh }
