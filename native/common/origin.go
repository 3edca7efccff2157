package common

import "errors"

// ErrBadOrigin is returned when a call is made by an origin that is not
// allowed to make it.
var ErrBadOrigin = errors.New("bad origin")

// OriginKind enumerates the kinds of dispatch origins.
type OriginKind uint8

const (
	OriginNone OriginKind = iota
	OriginRoot
	OriginSigned
)

// Origin identifies who is invoking a call.
type Origin struct {
	Kind   OriginKind
	Signer [20]byte
}

func RootOrigin() Origin { return Origin{Kind: OriginRoot} }

func NoneOrigin() Origin { return Origin{Kind: OriginNone} }

func SignedOrigin(signer [20]byte) Origin {
	return Origin{Kind: OriginSigned, Signer: signer}
}

// EnsureRoot rejects every origin other than root.
func EnsureRoot(o Origin) error {
	if o.Kind != OriginRoot {
		return ErrBadOrigin
	}
	return nil
}

// EnsureSigned returns the signer of a signed origin.
func EnsureSigned(o Origin) ([20]byte, error) {
	if o.Kind != OriginSigned {
		return [20]byte{}, ErrBadOrigin
	}
	return o.Signer, nil
}

func (o Origin) String() string {
	switch o.Kind {
	case OriginRoot:
		return "root"
	case OriginSigned:
		return "signed"
	default:
		return "none"
	}
}
