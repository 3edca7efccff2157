package router

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxJunctions bounds the interior of a location.
const MaxJunctions = 8

var (
	ErrMultiLocationFull = errors.New("router: location exceeds junction limit")
	ErrInvalidLocation   = errors.New("router: invalid location")
)

// JunctionKind enumerates the supported interior junctions.
type JunctionKind uint8

const (
	JunctionParachain JunctionKind = iota + 1
	JunctionAccountKey20
	JunctionPalletInstance
	JunctionGeneralIndex
)

var junctionNames = map[JunctionKind]string{
	JunctionParachain:      "Parachain",
	JunctionAccountKey20:   "AccountKey20",
	JunctionPalletInstance: "PalletInstance",
	JunctionGeneralIndex:   "GeneralIndex",
}

func (k JunctionKind) String() string {
	if name, ok := junctionNames[k]; ok {
		return name
	}
	return "Unknown(" + strconv.Itoa(int(k)) + ")"
}

func (k JunctionKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *JunctionKind) UnmarshalText(text []byte) error {
	for kind, name := range junctionNames {
		if strings.EqualFold(name, string(text)) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("%w: unknown junction %q", ErrInvalidLocation, text)
}

// Junction is one step into a consensus system.
type Junction struct {
	Kind JunctionKind `json:"kind"`
	ID   uint64       `json:"id,omitempty"`
	Key  []byte       `json:"key,omitempty"`
}

func Parachain(id uint32) Junction { return Junction{Kind: JunctionParachain, ID: uint64(id)} }

func AccountKey20(key [20]byte) Junction {
	return Junction{Kind: JunctionAccountKey20, Key: append([]byte(nil), key[:]...)}
}

func (j Junction) equal(other Junction) bool {
	return j.Kind == other.Kind && j.ID == other.ID && string(j.Key) == string(other.Key)
}

func (j Junction) String() string {
	if j.Kind == JunctionAccountKey20 {
		return j.Kind.String() + ":0x" + hex.EncodeToString(j.Key)
	}
	return j.Kind.String() + ":" + strconv.FormatUint(j.ID, 10)
}

// Location addresses a consensus system relative to the current one.
type Location struct {
	Parents  uint8      `json:"parents"`
	Interior []Junction `json:"interior"`
}

// Here is the current consensus system.
func Here() Location { return Location{} }

// Validate checks the junction bound.
func (l Location) Validate() error {
	if len(l.Interior) > MaxJunctions {
		return ErrMultiLocationFull
	}
	for _, j := range l.Interior {
		if _, ok := junctionNames[j.Kind]; !ok {
			return fmt.Errorf("%w: unknown junction kind %d", ErrInvalidLocation, j.Kind)
		}
		if j.Kind == JunctionAccountKey20 && len(j.Key) != 20 {
			return fmt.Errorf("%w: account key must be 20 bytes", ErrInvalidLocation)
		}
	}
	return nil
}

// String renders the location as "<parents>/<junction>/...".
func (l Location) String() string {
	parts := make([]string, 0, len(l.Interior)+1)
	parts = append(parts, strconv.Itoa(int(l.Parents)))
	for _, j := range l.Interior {
		parts = append(parts, j.String())
	}
	return strings.Join(parts, "/")
}

// ParseLocation parses the String form.
func ParseLocation(raw string) (Location, error) {
	parts := strings.Split(strings.TrimSpace(raw), "/")
	parents, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return Location{}, fmt.Errorf("%w: parents %q", ErrInvalidLocation, parts[0])
	}
	loc := Location{Parents: uint8(parents)}
	for _, part := range parts[1:] {
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			return Location{}, fmt.Errorf("%w: junction %q", ErrInvalidLocation, part)
		}
		var kind JunctionKind
		if err := kind.UnmarshalText([]byte(name)); err != nil {
			return Location{}, err
		}
		j := Junction{Kind: kind}
		if kind == JunctionAccountKey20 {
			key, err := hex.DecodeString(strings.TrimPrefix(value, "0x"))
			if err != nil {
				return Location{}, fmt.Errorf("%w: key %q", ErrInvalidLocation, value)
			}
			j.Key = key
		} else {
			id, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return Location{}, fmt.Errorf("%w: id %q", ErrInvalidLocation, value)
			}
			j.ID = id
		}
		loc.Interior = append(loc.Interior, j)
	}
	if err := loc.Validate(); err != nil {
		return Location{}, err
	}
	return loc, nil
}

// absolute resolves l against the universal location of the current system.
func absolute(universal []Junction, l Location) ([]Junction, error) {
	if int(l.Parents) > len(universal) {
		return nil, ErrMultiLocationFull
	}
	out := append([]Junction(nil), universal[:len(universal)-int(l.Parents)]...)
	return append(out, l.Interior...), nil
}

// Reanchor expresses asset, given relative to the current system whose
// universal location is universal, as seen from target.
func Reanchor(asset, target Location, universal []Junction) (Location, error) {
	assetAbs, err := absolute(universal, asset)
	if err != nil {
		return Location{}, err
	}
	targetAbs, err := absolute(universal, target)
	if err != nil {
		return Location{}, err
	}
	shared := 0
	for shared < len(assetAbs) && shared < len(targetAbs) && assetAbs[shared].equal(targetAbs[shared]) {
		shared++
	}
	parents := len(targetAbs) - shared
	if parents > 255 {
		return Location{}, ErrMultiLocationFull
	}
	out := Location{Parents: uint8(parents), Interior: append([]Junction(nil), assetAbs[shared:]...)}
	if len(out.Interior) > MaxJunctions {
		return Location{}, ErrMultiLocationFull
	}
	return out, nil
}
